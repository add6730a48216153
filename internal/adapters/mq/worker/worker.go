// Package worker consumes dispatched event ids and hands them to a processor.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/hookscore/pkg/logger"
	"github.com/okian/hookscore/pkg/metrics"
)

const (
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Source yields event ids. The channel is closed when the source shuts down.
type Source interface {
	Dequeue() <-chan string
}

// Processor runs the idempotent processing step for a stored event.
type Processor interface {
	Process(ctx context.Context, eventID string) error
}

// Worker drains a Source one id at a time.
type Worker struct {
	source    Source
	processor Processor
	name      string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// New creates a worker.
func New(source Source, processor Processor, opts ...Option) *Worker {
	w := &Worker{
		source:    source,
		processor: processor,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.With(logger.String("worker", w.name))
	}
	return w
}

// Run processes ids until ctx is canceled, Shutdown is called or the source closes.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	ids := w.source.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case id, ok := <-ids:
			if !ok {
				return
			}
			// Failures stay unprocessed in the store; the poller retries them.
			if err := w.processor.Process(ctx, id); err != nil {
				w.logger.Warn(ctx, "processing failed", logger.String("eventId", id), logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker after its current event.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Pool manages multiple workers over one source.
type Pool struct {
	workers []*Worker
	source  Source
	logger  logger.Logger
}

// NewPool creates a pool; a non-positive count means one worker per CPU.
func NewPool(workerCount int, source Source, processor Processor) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers: make([]*Worker, workerCount),
		source:  source,
		logger:  logger.Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = New(source, processor, WithName("worker-"+strconv.Itoa(i)))
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the source when it supports it and waits for the workers.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.source.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing source", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		wctx, wcancel := context.WithTimeout(shutdownCtx, workerShutdownTimeout)
		if err := w.Shutdown(wctx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
		wcancel()
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
