package router

import (
	"context"

	"github.com/okian/hookscore/internal/domain/payload"
	"github.com/okian/hookscore/pkg/logger"
)

// Commits are observed but not stored.
func (r *Router) push(ctx context.Context, log logger.Logger, ev payload.PushEvent) (Outcome, error) {
	if len(ev.Commits) == 0 {
		log.Info(ctx, "push without commits")
		return Skipped, nil
	}
	repo := ""
	if ev.Repository != nil {
		repo = ev.Repository.FullName
	}
	log.Info(ctx, "push observed",
		logger.String("repository", repo),
		logger.String("ref", ev.Ref),
		logger.Int("commits", len(ev.Commits)),
	)
	return Processed, nil
}
