// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by stores when a keyed lookup has no row.
var ErrNotFound = errors.New("not found")

// EventType classifies an inbound delivery.
type EventType string

// Known event types. Labels match the X-GitHub-Event header.
const (
	EventPullRequest EventType = "pull_request"
	EventPush        EventType = "push"
	EventReview      EventType = "pull_request_review"
	EventOther       EventType = "other"
)

// ClassifyEventType maps a raw event label onto EventType.
func ClassifyEventType(label string) EventType {
	switch EventType(strings.ToLower(strings.TrimSpace(label))) {
	case EventPullRequest:
		return EventPullRequest
	case EventPush:
		return EventPush
	case EventReview:
		return EventReview
	default:
		return EventOther
	}
}

// InboundEvent is one accepted delivery.
// ProcessedAt is set if and only if Processed is true.
type InboundEvent struct {
	ID           string
	DeliveryID   string // unique, dedup key
	EventType    string // raw label as received
	Payload      []byte // raw JSON body
	RepositoryID *string
	ReceivedAt   time.Time
	Processed    bool
	ProcessedAt  *time.Time

	// Poller retry accounting.
	Attempts    int
	LastError   string
	Quarantined bool
}

// Kind returns the classified event type.
func (e *InboundEvent) Kind() EventType {
	return ClassifyEventType(e.EventType)
}
