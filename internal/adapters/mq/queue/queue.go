// Package queue defines the best-effort dispatch channel for stored events.
//
// A dispatch carries only the stored event id; consumers re-read the payload
// from the event store. Dispatch is an optimization: the poller guarantees
// every stored event is eventually processed even when no Dispatcher works.
package queue

import (
	"context"
	"sync"

	"github.com/okian/hookscore/pkg/metrics"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendSNS    = "sns"
	BackendNone   = "none"
)

const defaultQueueCapacity = 10_000

// Dispatcher announces that a stored event is ready for processing.
type Dispatcher interface {
	// Enqueue never blocks on a full or unreachable backend; it returns an error instead.
	Enqueue(ctx context.Context, eventID string) error
	// Backend names the implementation for logs and metrics.
	Backend() string
	// Close releases backend resources.
	Close() error
}

// InMemoryQueue is a bounded channel consumed by the worker pool.
type InMemoryQueue struct {
	events   chan string
	capacity int

	mu     sync.RWMutex
	closed bool
}

var _ Dispatcher = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan string, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue implements Dispatcher.
func (q *InMemoryQueue) Enqueue(ctx context.Context, eventID string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}
	select {
	case q.events <- eventID:
		metrics.UpdateQueueSize(len(q.events))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Dequeue returns the receive side of the queue. It is closed by Close.
func (q *InMemoryQueue) Dequeue() <-chan string {
	return q.events
}

// Len returns the current number of queued ids.
func (q *InMemoryQueue) Len() int {
	return len(q.events)
}

// Backend implements Dispatcher.
func (q *InMemoryQueue) Backend() string { return BackendMemory }

// Close stops accepting ids and closes the dequeue channel.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Noop is used when dispatch is disabled; every enqueue reports ErrUnavailable.
type Noop struct{}

var _ Dispatcher = Noop{}

// Enqueue implements Dispatcher.
func (Noop) Enqueue(context.Context, string) error { return ErrUnavailable }

// Backend implements Dispatcher.
func (Noop) Backend() string { return BackendNone }

// Close implements Dispatcher.
func (Noop) Close() error { return nil }
