package replay

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/okian/hookscore/pkg/logger"
)

const (
	leaderboardLimit = 100
	scoreTolerance   = 1e-6
	drainPoll        = 250 * time.Millisecond
)

// ErrMismatch is returned when the leaderboard disagrees with the history.
var ErrMismatch = errors.New("leaderboard mismatch")

// waitDrained polls /stats until no events are pending.
func waitDrained(ctx context.Context, c *client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		st, err := c.stats(ctx)
		if err == nil && st.Totals.PendingEvents == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("waiting for pending events: %w", err)
			}
			return fmt.Errorf("waiting for pending events: %d still pending: %w", st.Totals.PendingEvents, ctx.Err())
		case <-time.After(drainPoll):
		}
	}
}

// verify compares the leaderboard rows of the replay repository with expected.
func verify(ctx context.Context, c *client, repoFullName string, expected map[string]float64, stats *Stats) error {
	log := logger.Named("replay")

	board, err := c.leaderboard(ctx, leaderboardLimit)
	if err != nil {
		return err
	}
	actual := make(map[string]float64)
	for _, e := range board {
		if e.RepositoryName == repoFullName {
			actual[e.ContributorKey] = e.TotalScore
		}
	}

	for login, want := range expected {
		stats.Checked++
		got, ok := actual[login]
		if !ok || math.Abs(got-want) > scoreTolerance {
			stats.Mismatched++
			log.Warn(ctx, "score mismatch",
				logger.String("contributor", login),
				logger.Float64("expected", want),
				logger.Float64("actual", got),
				logger.Bool("present", ok),
			)
		}
	}
	if stats.Mismatched > 0 {
		return fmt.Errorf("%w: %d of %d contributors", ErrMismatch, stats.Mismatched, stats.Checked)
	}
	log.Info(ctx, "leaderboard verified", logger.Int("contributors", stats.Checked))
	return nil
}
