// Package service wires the webhook pipeline: ingestion, dispatch, polling
// and idempotent processing of stored events.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/hookscore/internal/adapters/mq/poller"
	"github.com/okian/hookscore/internal/adapters/mq/queue"
	workerpool "github.com/okian/hookscore/internal/adapters/mq/worker"
	"github.com/okian/hookscore/internal/domain/dedupe"
	"github.com/okian/hookscore/internal/domain/model"
	"github.com/okian/hookscore/internal/domain/payload"
	"github.com/okian/hookscore/internal/domain/router"
	"github.com/okian/hookscore/internal/domain/types"
	"github.com/okian/hookscore/pkg/logger"
	"github.com/okian/hookscore/pkg/metrics"
)

// Ingest statuses.
const (
	StatusSaved     = "saved"
	StatusDuplicate = "duplicate"
)

const topContributors = 5

// Store is the persistence the service needs.
type Store interface {
	EventExists(ctx context.Context, deliveryID string) (bool, error)
	InsertEvent(ctx context.Context, ev *model.InboundEvent) (bool, error)
	GetEvent(ctx context.Context, id string) (*model.InboundEvent, error)
	ListUnprocessed(ctx context.Context, limit int) ([]model.InboundEvent, error)
	MarkProcessed(ctx context.Context, id string, at time.Time) (bool, error)
	RecordFailure(ctx context.Context, id, reason string, maxAttempts int) (int, bool, error)
	FindOrCreateRepository(ctx context.Context, repo *model.Repository) (*model.Repository, error)

	Leaderboard(ctx context.Context, limit int) ([]types.LeaderboardEntry, error)
	ListRepositories(ctx context.Context) ([]types.RepositorySummary, error)
	Totals(ctx context.Context) (types.Totals, error)
}

// Router routes a stored event to its processor.
type Router interface {
	Route(ctx context.Context, ev *model.InboundEvent) (router.Outcome, error)
}

// Delivery is one webhook request after signature verification.
type Delivery struct {
	DeliveryID string
	EventType  string
	Payload    []byte
}

// IngestResult is returned to the sender.
type IngestResult struct {
	Status  string `json:"status"`
	EventID string `json:"eventId,omitempty"`
}

// Service implements the API dependencies for the webhook pipeline.
type Service struct {
	mu sync.Mutex

	store      Store
	router     Router
	deduper    dedupe.Deduper
	dispatcher queue.Dispatcher

	workerCount   int
	pollInterval  time.Duration
	pollBatchSize int
	maxAttempts   int

	pool         *workerpool.Pool
	poller       *poller.Poller
	pollerCancel context.CancelFunc
	pollerDone   chan struct{}
	started      bool

	now    func() time.Time
	logger logger.Logger
}

// New constructs a Service. Without WithDispatcher events are only picked up
// by the poller.
func New(store Store, r Router, opts ...Option) *Service {
	s := &Service{
		store:         store,
		router:        r,
		dispatcher:    queue.Noop{},
		workerCount:   1,
		pollInterval:  5 * time.Second,
		pollBatchSize: 10,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.deduper == nil {
		s.deduper = dedupe.NewRecentDeliveries()
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	s.poller = poller.New(store, s,
		poller.WithInterval(s.pollInterval),
		poller.WithBatchSize(s.pollBatchSize),
	)
	return s
}

// Start launches the dispatch consumers and the poller.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if q, ok := s.dispatcher.(*queue.InMemoryQueue); ok {
		s.pool = workerpool.NewPool(s.workerCount, q, s)
		s.pool.Start(ctx)
	}

	pctx, cancel := context.WithCancel(ctx)
	s.pollerCancel = cancel
	s.pollerDone = make(chan struct{})
	go func() {
		defer close(s.pollerDone)
		s.poller.Run(pctx)
	}()

	s.started = true
	s.logger.Info(ctx, "webhook service started",
		logger.String("dispatch", s.dispatcher.Backend()),
		logger.Int("workers", s.workerCount),
		logger.Duration("pollInterval", s.pollInterval),
		logger.Int("pollBatchSize", s.pollBatchSize),
		logger.Int("maxAttempts", s.maxAttempts),
	)
	return nil
}

// Stop halts the poller after its running tick and drains the dispatch consumers.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping webhook service...")

	s.pollerCancel()
	select {
	case <-s.pollerDone:
	case <-ctx.Done():
		s.logger.Warn(ctx, "poller did not stop in time")
	}

	if s.pool != nil {
		_ = s.pool.Shutdown(ctx)
		s.pool = nil
	} else if err := s.dispatcher.Close(); err != nil {
		s.logger.Warn(ctx, "closing dispatcher failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "webhook service stopped")
}

// Started reports whether Start has run.
func (s *Service) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Ingest stores a verified delivery exactly once and announces it.
func (s *Service) Ingest(ctx context.Context, d Delivery) (IngestResult, error) {
	if d.DeliveryID == "" || d.EventType == "" {
		return IngestResult{}, fmt.Errorf("%w: delivery id and event type are required", ErrInvalidDelivery)
	}
	log := s.logger.With(
		logger.String("deliveryId", d.DeliveryID),
		logger.String("eventType", d.EventType),
	)
	metrics.RecordWebhookReceived(string(model.ClassifyEventType(d.EventType)))

	if s.deduper.SeenAndRecord(ctx, d.DeliveryID) {
		log.Debug(ctx, "duplicate delivery (recent)")
		return s.duplicate(), nil
	}
	metrics.UpdateDedupeCacheSize(s.deduper.Len())

	res, err := s.persist(ctx, log, d)
	if err != nil {
		s.deduper.Unrecord(ctx, d.DeliveryID)
		metrics.UpdateDedupeCacheSize(s.deduper.Len())
		return IngestResult{}, err
	}
	return res, nil
}

func (s *Service) persist(ctx context.Context, log logger.Logger, d Delivery) (IngestResult, error) {
	exists, err := s.store.EventExists(ctx, d.DeliveryID)
	if err != nil {
		return IngestResult{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if exists {
		log.Debug(ctx, "duplicate delivery (stored)")
		return s.duplicate(), nil
	}

	env, err := payload.ParseRepository(d.Payload)
	if err != nil {
		return IngestResult{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	ev := &model.InboundEvent{
		DeliveryID: d.DeliveryID,
		EventType:  d.EventType,
		Payload:    d.Payload,
	}
	if env != nil {
		repo, err := s.store.FindOrCreateRepository(ctx, &model.Repository{
			GitHubID:      env.ID,
			Name:          env.Name,
			FullName:      env.FullName,
			DefaultBranch: env.DefaultBranch,
			IsPrivate:     env.Private,
			Stars:         env.StargazersCount,
		})
		if err != nil {
			return IngestResult{}, fmt.Errorf("%w: %w", ErrStorage, err)
		}
		ev.RepositoryID = &repo.ID
	}

	inserted, err := s.store.InsertEvent(ctx, ev)
	if err != nil {
		return IngestResult{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if !inserted {
		log.Debug(ctx, "duplicate delivery (concurrent insert)")
		return s.duplicate(), nil
	}

	s.dispatch(ctx, log, ev.ID)

	metrics.RecordWebhookOutcome(metrics.OutcomeSaved)
	log.Info(ctx, "delivery saved", logger.String("eventId", ev.ID))
	return IngestResult{Status: StatusSaved, EventID: ev.ID}, nil
}

func (s *Service) duplicate() IngestResult {
	metrics.RecordWebhookOutcome(metrics.OutcomeDuplicate)
	return IngestResult{Status: StatusDuplicate}
}

// dispatch is best effort; the poller picks up whatever is not announced.
func (s *Service) dispatch(ctx context.Context, log logger.Logger, eventID string) {
	backend := s.dispatcher.Backend()
	err := s.dispatcher.Enqueue(ctx, eventID)
	switch {
	case err == nil:
		metrics.RecordDispatch(backend, metrics.DispatchOK)
	case errors.Is(err, queue.ErrUnavailable) || queue.IsDegraded(err):
		metrics.RecordDispatch(backend, metrics.DispatchDegraded)
		log.Debug(ctx, "dispatch skipped", logger.String("eventId", eventID), logger.Error(err))
	default:
		metrics.RecordDispatch(backend, metrics.DispatchFailed)
		log.Warn(ctx, "dispatch failed", logger.String("eventId", eventID), logger.Error(err))
	}
}

// Process loads a stored event and processes it unless already processed.
func (s *Service) Process(ctx context.Context, eventID string) error {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("load event %s: %w", eventID, err)
	}
	return s.ProcessEvent(ctx, ev)
}

// ProcessEvent routes ev and marks it processed. A routing error is recorded
// against the event and returned, leaving it for the next poller tick.
func (s *Service) ProcessEvent(ctx context.Context, ev *model.InboundEvent) error {
	if ev.Processed || ev.Quarantined {
		return nil
	}
	kind := string(ev.Kind())
	start := time.Now()

	outcome, err := s.router.Route(ctx, ev)
	if err != nil {
		attempts, quarantined, ferr := s.store.RecordFailure(ctx, ev.ID, err.Error(), s.maxAttempts)
		result := metrics.ResultFailed
		if quarantined {
			result = metrics.ResultQuarantined
			s.logger.Error(ctx, "event quarantined",
				logger.String("eventId", ev.ID),
				logger.Int("attempts", attempts),
				logger.Error(err),
			)
		}
		metrics.RecordEventProcessed(kind, result, time.Since(start))
		if ferr != nil {
			s.logger.Error(ctx, "recording failure failed", logger.String("eventId", ev.ID), logger.Error(ferr))
		}
		return err
	}

	marked, err := s.store.MarkProcessed(ctx, ev.ID, s.now())
	if err != nil {
		metrics.RecordEventProcessed(kind, metrics.ResultFailed, time.Since(start))
		return fmt.Errorf("mark event %s processed: %w", ev.ID, err)
	}
	if !marked {
		s.logger.Debug(ctx, "event already processed", logger.String("eventId", ev.ID))
		return nil
	}

	result := metrics.ResultProcessed
	if outcome != router.Processed {
		result = metrics.ResultSkipped
	}
	metrics.RecordEventProcessed(kind, result, time.Since(start))
	return nil
}

// ProcessPending runs one poller tick synchronously.
func (s *Service) ProcessPending(ctx context.Context) poller.Report {
	return s.poller.Tick(ctx)
}

// Leaderboard returns contributor scores ordered by score.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	return s.store.Leaderboard(ctx, limit)
}

// Repositories lists known repositories.
func (s *Service) Repositories(ctx context.Context) ([]types.RepositorySummary, error) {
	return s.store.ListRepositories(ctx)
}

// Stats returns pipeline totals and the top contributors.
func (s *Service) Stats(ctx context.Context) (types.Stats, error) {
	totals, err := s.store.Totals(ctx)
	if err != nil {
		return types.Stats{}, err
	}
	top, err := s.store.Leaderboard(ctx, topContributors)
	if err != nil {
		return types.Stats{}, err
	}
	return types.Stats{Totals: totals, TopContributors: top}, nil
}
