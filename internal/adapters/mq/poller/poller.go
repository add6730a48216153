// Package poller periodically drains unprocessed events from the event store.
//
// The poller is the liveness guarantee of the pipeline: whatever happens to
// dispatch, every stored event is picked up here until it is processed.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/hookscore/internal/domain/model"
	"github.com/okian/hookscore/pkg/logger"
	"github.com/okian/hookscore/pkg/metrics"
)

const (
	defaultInterval  = 5 * time.Second
	defaultBatchSize = 10
)

// Store lists unprocessed events oldest first.
type Store interface {
	ListUnprocessed(ctx context.Context, limit int) ([]model.InboundEvent, error)
}

// Handler processes one stored event. A returned error leaves the event
// unprocessed for a later tick.
type Handler interface {
	ProcessEvent(ctx context.Context, ev *model.InboundEvent) error
}

// Report summarizes one tick.
type Report struct {
	Picked    int
	Failed    int
	Skipped   bool
	Duration  time.Duration
	ListError error
}

// Poller runs ticks on an interval.
type Poller struct {
	store     Store
	handler   Handler
	interval  time.Duration
	batchSize int
	logger    logger.Logger

	inFlight atomic.Bool
}

// New creates a poller.
func New(store Store, handler Handler, opts ...Option) *Poller {
	p := &Poller{
		store:     store,
		handler:   handler,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
		logger:    logger.Named("poller"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the configured tick interval.
func (p *Poller) Interval() time.Duration { return p.interval }

// BatchSize returns the configured batch size.
func (p *Poller) BatchSize() int { return p.batchSize }

// Run ticks once immediately and then every interval until ctx is done.
// Ticks run on their own goroutine so a slow batch never delays the
// schedule; an overlapping tick is skipped. A started batch runs to
// completion and Run returns only after every launched tick has finished.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info(ctx, "poller started",
		logger.Duration("interval", p.interval),
		logger.Int("batchSize", p.batchSize),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	tickCtx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	launch := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Tick(tickCtx)
		}()
	}

	launch()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			p.logger.Info(tickCtx, "poller stopped")
			return
		case <-ticker.C:
			launch()
		}
	}
}

// Tick processes one batch. Failures are isolated per event.
func (p *Poller) Tick(ctx context.Context) Report {
	if !p.inFlight.CompareAndSwap(false, true) {
		metrics.RecordPollerTickSkipped()
		p.logger.Debug(ctx, "previous tick still running; skipping")
		return Report{Skipped: true}
	}
	defer p.inFlight.Store(false)

	start := time.Now()
	events, err := p.store.ListUnprocessed(ctx, p.batchSize)
	if err != nil {
		p.logger.Error(ctx, "listing unprocessed events failed", logger.Error(err))
		return Report{ListError: err, Duration: time.Since(start)}
	}

	rep := Report{Picked: len(events)}
	for i := range events {
		ev := &events[i]
		if err := p.handler.ProcessEvent(ctx, ev); err != nil {
			rep.Failed++
			p.logger.Warn(ctx, "event processing failed",
				logger.String("eventId", ev.ID),
				logger.String("deliveryId", ev.DeliveryID),
				logger.Error(err),
			)
		}
	}
	rep.Duration = time.Since(start)
	metrics.RecordPollerTick(rep.Duration, rep.Picked)

	if rep.Picked > 0 {
		p.logger.Info(ctx, "tick finished",
			logger.Int("picked", rep.Picked),
			logger.Int("failed", rep.Failed),
			logger.Duration("duration", rep.Duration),
		)
	}
	return rep
}
