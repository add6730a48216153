package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/hookscore/internal/domain/model"
	"github.com/okian/hookscore/internal/domain/payload"
	"github.com/okian/hookscore/pkg/logger"
)

func (r *Router) review(ctx context.Context, log logger.Logger, ev payload.ReviewEvent) (Outcome, error) {
	if ev.PullRequest == nil || ev.PullRequest.ID == 0 {
		log.Warn(ctx, "review without pull request", logger.Int64("review_id", ev.Review.ID))
		return Skipped, nil
	}
	pr, err := r.store.FindPullRequestByGitHubID(ctx, ev.PullRequest.ID)
	if errors.Is(err, model.ErrNotFound) {
		log.Warn(ctx, "pull request not found", logger.Int("number", ev.PullRequest.Number))
		return Skipped, nil
	}
	if err != nil {
		return "", fmt.Errorf("find pull request %d: %w", ev.PullRequest.ID, err)
	}

	reviewer := ""
	if ev.Review.User != nil {
		reviewer = ev.Review.User.Login
	}
	submittedAt := r.now().UTC()
	if ev.Review.SubmittedAt != nil {
		submittedAt = *ev.Review.SubmittedAt
	}

	rv := &model.Review{
		GitHubID:      ev.Review.ID,
		PullRequestID: pr.ID,
		ReviewerID:    reviewer,
		State:         ev.Review.State,
		SubmittedAt:   submittedAt,
	}
	if rv.ReviewerID == "" {
		rv.ReviewerID = model.UnknownAuthor
	}
	if err := r.store.UpsertReview(ctx, rv); err != nil {
		return "", fmt.Errorf("upsert review %d: %w", ev.Review.ID, err)
	}
	log.Info(ctx, "review saved",
		logger.Int("number", pr.Number),
		logger.String("reviewer", rv.ReviewerID),
		logger.String("state", rv.State),
	)

	if reviewer == "" {
		return Processed, nil
	}
	if _, err := r.scorer.Recompute(ctx, reviewer, pr.RepositoryID); err != nil {
		return "", fmt.Errorf("recompute score for %s: %w", reviewer, err)
	}
	return Processed, nil
}
