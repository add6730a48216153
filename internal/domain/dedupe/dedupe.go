// Package dedupe keeps a bounded set of recently accepted delivery ids.
//
// The cache is only a fast path in front of the event store: a miss never
// means "new", it means "ask the store". A hit means the delivery was
// accepted by this process and can be answered as a duplicate without I/O.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// DefaultCapacity is used when no capacity option is given.
const DefaultCapacity = 50_000

// Deduper records delivery ids seen by this process.
type Deduper interface {
	// SeenAndRecord reports whether id was already recorded and records it if not.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so that a failed ingest can be retried by the sender.
	Unrecord(ctx context.Context, id string)

	// Len returns the number of ids currently held.
	Len() int
}

// Option configures a RecentDeliveries cache.
type Option func(*RecentDeliveries)

// WithCapacity bounds the cache. Values <= 0 disable eviction.
func WithCapacity(n int) Option {
	return func(r *RecentDeliveries) {
		r.capacity = n
	}
}

// RecentDeliveries is an insertion ordered cache; the oldest id is evicted first.
type RecentDeliveries struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

var _ Deduper = (*RecentDeliveries)(nil)

// NewRecentDeliveries creates an empty cache.
func NewRecentDeliveries(opts ...Option) *RecentDeliveries {
	r := &RecentDeliveries{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(r)
	}
	r.order = list.New()
	r.index = make(map[string]*list.Element)
	return r
}

// SeenAndRecord implements Deduper.
func (r *RecentDeliveries) SeenAndRecord(_ context.Context, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[id]; ok {
		return true
	}
	if r.capacity > 0 && r.order.Len() >= r.capacity {
		oldest := r.order.Front()
		r.order.Remove(oldest)
		delete(r.index, oldest.Value.(string))
	}
	r.index[id] = r.order.PushBack(id)
	return false
}

// Unrecord implements Deduper.
func (r *RecentDeliveries) Unrecord(_ context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.index[id]; ok {
		r.order.Remove(el)
		delete(r.index, id)
	}
}

// Len implements Deduper.
func (r *RecentDeliveries) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}
