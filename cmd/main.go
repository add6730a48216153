package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/okian/hookscore/internal/adapters/http/api"
	"github.com/okian/hookscore/internal/adapters/http/swagger"
	"github.com/okian/hookscore/internal/adapters/mq/queue"
	"github.com/okian/hookscore/internal/adapters/repository"
	app "github.com/okian/hookscore/internal/app"
	"github.com/okian/hookscore/internal/config"
	"github.com/okian/hookscore/internal/domain/dedupe"
	"github.com/okian/hookscore/internal/domain/router"
	"github.com/okian/hookscore/internal/domain/scoring"
	"github.com/okian/hookscore/pkg/logger"
	"github.com/okian/hookscore/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.InitWith(os.Stdout, cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Named("main")
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg); err != nil {
		log.Error(ctx, "hookscore stopped with error", logger.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// application holds the wired components of one process.
type application struct {
	store   *repository.Store
	service *app.Service
	handler http.Handler
}

func (a *application) close() error {
	return a.store.Close()
}

// build opens storage and wires every component. It does not start
// background goroutines.
func build(ctx context.Context, cfg *config.Config) (*application, error) {
	store, err := repository.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	dispatcher, err := newDispatcher(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	engine := scoring.NewEngine(store, scoring.WithWeights(scoring.Weights{
		Merged:         cfg.ScoreWeightMerged,
		BugFix:         cfg.ScoreWeightBugFix,
		ApprovedReview: cfg.ScoreWeightApprovedReview,
		Lines:          cfg.ScoreWeightLines,
	}))
	svc := app.New(store, router.New(store, engine),
		app.WithDispatcher(dispatcher),
		app.WithDeduper(dedupe.NewRecentDeliveries(dedupe.WithCapacity(cfg.DedupeSize))),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithPollInterval(cfg.PollInterval),
		app.WithPollBatchSize(cfg.PollBatchSize),
		app.WithMaxAttempts(cfg.PollMaxAttempts),
	)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, api.Config{
		WebhookSecret:       cfg.WebhookSecret,
		MaxPayloadBytes:     cfg.MaxPayloadBytes,
		MaxLeaderboardLimit: cfg.MaxLeaderboardLimit,
	}).Register(ctx, mux)

	return &application{store: store, service: svc, handler: mux}, nil
}

// newDispatcher selects the dispatch backend.
func newDispatcher(cfg *config.Config) (queue.Dispatcher, error) {
	switch cfg.DispatchBackend {
	case config.DispatchMemory:
		return queue.NewInMemoryQueue(queue.WithCapacity(cfg.EventQueueSize)), nil
	case config.DispatchSNS:
		return queue.NewSNSDispatcher(cfg.SNSRegion, cfg.SNSTopicARN)
	case config.DispatchNone:
		return queue.Noop{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown dispatch_backend %q", config.ErrInvalidConfig, cfg.DispatchBackend)
	}
}

// run serves until ctx is canceled.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Named("main")
	if cfg.WebhookSecret == "" {
		log.Warn(ctx, "webhook_secret is empty; every delivery will be rejected")
	}

	a, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	if err := a.service.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.service.Stop(stopCtx)
	}()

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(context.Background(), "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "server stopped")
	return nil
}

// startSystemMetricsUpdater refreshes process gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	metrics.UpdateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateSystemMetrics()
		}
	}
}
