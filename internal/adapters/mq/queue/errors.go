package queue

import (
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go/aws/awserr"
)

// Sentinel kinds for dispatch errors.
var (
	ErrUnavailable = errors.New("dispatch queue unavailable")
	ErrQueueFull   = errors.New("dispatch queue full")
	ErrClosed      = errors.New("dispatch queue closed")
	// ErrNoPermission marks a broker rejecting the enqueue for lack of
	// permission on a constrained tier.
	ErrNoPermission = errors.New("NOPERM dispatch not permitted")
)

// IsDegraded reports whether err is a routine permission rejection that
// should be absorbed quietly.
func IsDegraded(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoPermission) {
		return true
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case "AuthorizationError", "AuthorizationErrorException":
			return true
		}
	}
	return strings.Contains(err.Error(), "NOPERM")
}
