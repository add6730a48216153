// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load(ctx) layers file and environment overrides on top of New().
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Database drivers understood by the repository adapter.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Dispatch backends.
const (
	DispatchMemory = "memory"
	DispatchSNS    = "sns"
	DispatchNone   = "none"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabaseDriver is either "postgres" or "sqlite3".
	DatabaseDriver string `koanf:"database_driver"`

	// DatabaseURL is the driver specific connection string.
	DatabaseURL string `koanf:"database_url"`

	// WebhookSecret is the shared secret used to sign deliveries.
	WebhookSecret string `koanf:"webhook_secret"`

	// MaxPayloadBytes caps the accepted delivery body size.
	MaxPayloadBytes int64 `koanf:"max_payload_bytes"`

	// DispatchBackend selects the dispatch queue: memory, sns or none.
	DispatchBackend string `koanf:"dispatch_backend"`

	// EventQueueSize bounds the in-memory dispatch queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of dispatch consumers.
	WorkerCount int `koanf:"worker_count"`

	// SNSTopicARN and SNSRegion configure the sns dispatch backend.
	SNSTopicARN string `koanf:"sns_topic_arn"`
	SNSRegion   string `koanf:"sns_region"`

	// PollInterval is the time between poller ticks.
	PollInterval time.Duration `koanf:"poll_interval"`

	// PollBatchSize bounds the number of events handled per tick.
	PollBatchSize int `koanf:"poll_batch_size"`

	// PollMaxAttempts quarantines an event after this many failures. Zero retries forever.
	PollMaxAttempts int `koanf:"poll_max_attempts"`

	// DedupeSize sets the size of the recent delivery cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /contributors?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// Score weights.
	ScoreWeightMerged         float64 `koanf:"score_weight_merged"`
	ScoreWeightBugFix         float64 `koanf:"score_weight_bug_fix"`
	ScoreWeightApprovedReview float64 `koanf:"score_weight_approved_review"`
	ScoreWeightLines          float64 `koanf:"score_weight_lines"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                  "info",
		LogFormat:                 "text",
		Addr:                      ":9080",
		DatabaseDriver:            DriverSQLite,
		DatabaseURL:               "file:hookscore.db?cache=shared&_foreign_keys=on",
		MaxPayloadBytes:           25 << 20,
		DispatchBackend:           DispatchMemory,
		EventQueueSize:            10_000,
		WorkerCount:               runtime.NumCPU(),
		SNSRegion:                 "us-east-1",
		PollInterval:              5 * time.Second,
		PollBatchSize:             10,
		PollMaxAttempts:           0,
		DedupeSize:                50_000,
		MaxLeaderboardLimit:       100,
		ScoreWeightMerged:         3,
		ScoreWeightBugFix:         5,
		ScoreWeightApprovedReview: 2,
		ScoreWeightLines:          1,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DatabaseDriver != DriverPostgres && c.DatabaseDriver != DriverSQLite:
		return fmt.Errorf("%w: unknown database_driver %q", ErrInvalidConfig, c.DatabaseDriver)
	case c.DatabaseURL == "":
		return fmt.Errorf("%w: database_url must not be empty", ErrInvalidConfig)
	case c.PollInterval <= 0:
		return fmt.Errorf("%w: poll_interval must be positive", ErrInvalidConfig)
	case c.PollBatchSize <= 0:
		return fmt.Errorf("%w: poll_batch_size must be positive", ErrInvalidConfig)
	case c.PollMaxAttempts < 0:
		return fmt.Errorf("%w: poll_max_attempts must not be negative", ErrInvalidConfig)
	case c.MaxPayloadBytes <= 0:
		return fmt.Errorf("%w: max_payload_bytes must be positive", ErrInvalidConfig)
	case c.MaxLeaderboardLimit <= 0:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	}

	switch c.DispatchBackend {
	case DispatchMemory, DispatchNone:
	case DispatchSNS:
		if c.SNSTopicARN == "" {
			return fmt.Errorf("%w: sns_topic_arn is required for the sns dispatch backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown dispatch_backend %q", ErrInvalidConfig, c.DispatchBackend)
	}
	return nil
}
