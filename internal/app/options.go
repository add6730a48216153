package service

import (
	"time"

	"github.com/okian/hookscore/internal/adapters/mq/queue"
	"github.com/okian/hookscore/internal/domain/dedupe"
	"github.com/okian/hookscore/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDeduper replaces the recent delivery cache.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithDispatcher sets the dispatch backend. An *queue.InMemoryQueue is
// consumed by an in-process worker pool.
func WithDispatcher(d queue.Dispatcher) Option {
	return func(s *Service) {
		if d != nil {
			s.dispatcher = d
		}
	}
}

// WithWorkerCount sets the number of in-process dispatch consumers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithPollInterval sets the poller tick interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithPollBatchSize sets the number of events per poller tick.
func WithPollBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pollBatchSize = n
		}
	}
}

// WithMaxAttempts quarantines events after n failed attempts. Zero disables quarantine.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxAttempts = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source for processed_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
