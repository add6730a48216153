package service

import "errors"

// Ingest errors. The HTTP layer maps these onto status codes.
var (
	// ErrInvalidDelivery is returned when delivery metadata is missing.
	ErrInvalidDelivery = errors.New("invalid delivery")
	// ErrInvalidPayload is returned when the body is not a JSON document.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrStorage is returned when the event store rejects a read or write.
	ErrStorage = errors.New("storage failure")
)
