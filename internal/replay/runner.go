package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/hookscore/pkg/logger"
)

// Run generates a history, submits it in two phases and verifies the leaderboard.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Named("replay")

	log.Info(ctx, "starting replay",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("contributors", cfg.Contributors),
		logger.Int("pullRequests", cfg.PullRequests),
		logger.Int("reviewsPerPR", cfg.ReviewsPerPR),
		logger.Int("pushes", cfg.Pushes),
		logger.Int("workers", cfg.Workers),
	)
	if cfg.Contributors < 1 || cfg.Workers < 1 {
		return stats, fmt.Errorf("contributors and workers must be positive")
	}
	if cfg.Contributors > leaderboardLimit {
		return stats, fmt.Errorf("at most %d contributors can be verified", leaderboardLimit)
	}

	history, err := Generate(cfg)
	if err != nil {
		return stats, fmt.Errorf("generate history: %w", err)
	}
	stats.Generated = history.Len()

	c := newClient(cfg)

	submit(ctx, cfg, c, history.PullRequests, stats)
	if err := waitDrained(ctx, c, cfg.DrainTimeout); err != nil {
		return stats, err
	}
	submit(ctx, cfg, c, history.Followups, stats)
	if err := waitDrained(ctx, c, cfg.DrainTimeout); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(stats.StartTime)
	if stats.Failed > 0 {
		return stats, fmt.Errorf("%d deliveries failed", stats.Failed)
	}
	if err := verify(ctx, c, RepositoryFullName(cfg.RepositoryID), history.Expected, stats); err != nil {
		return stats, err
	}

	log.Info(ctx, "replay completed",
		logger.Int("submitted", stats.Submitted),
		logger.Int("saved", stats.Saved),
		logger.Int("duplicates", stats.Duplicates),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}
