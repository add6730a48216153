package router

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/okian/hookscore/internal/domain/model"
	"github.com/okian/hookscore/internal/domain/payload"
	"github.com/okian/hookscore/pkg/logger"
)

var bugFixPattern = regexp.MustCompile(`(?i)\b(fix|bug|issue|hotfix|patch)\b`)

// IsBugFix reports whether text mentions a bug fix keyword.
func IsBugFix(text string) bool {
	return bugFixPattern.MatchString(text)
}

func (r *Router) pullRequest(ctx context.Context, log logger.Logger, ev payload.PullRequestEvent) (Outcome, error) {
	if ev.Repository == nil {
		log.Warn(ctx, "pull request without repository", logger.Int64("pr_id", ev.PullRequest.ID))
		return Skipped, nil
	}
	repo, err := r.store.FindRepositoryByGitHubID(ctx, ev.Repository.ID)
	if errors.Is(err, model.ErrNotFound) {
		log.Warn(ctx, "repository not found", logger.String("repository", ev.Repository.FullName))
		return Skipped, nil
	}
	if err != nil {
		return "", fmt.Errorf("find repository %d: %w", ev.Repository.ID, err)
	}

	src := ev.PullRequest
	// merged means a merge timestamp is present; the bare flag is ignored.
	state := src.State
	if src.MergedAt != nil {
		state = model.StateMerged
	} else if state == model.StateMerged {
		state = model.StateClosed
	}
	author := src.Author()
	if author == "" {
		author = model.UnknownAuthor
	}
	createdAt := src.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now().UTC()
	}

	pr := &model.PullRequest{
		GitHubID:     src.ID,
		Number:       src.Number,
		RepositoryID: repo.ID,
		AuthorID:     author,
		Title:        src.Title,
		State:        state,
		MergedAt:     src.MergedAt,
		CreatedAt:    createdAt,
		LinesAdded:   max(src.Additions, 0),
		LinesDeleted: max(src.Deletions, 0),
		IsBugFix:     IsBugFix(src.Text()),
	}
	if err := r.store.UpsertPullRequest(ctx, pr); err != nil {
		return "", fmt.Errorf("upsert pull request %d: %w", src.ID, err)
	}
	log.Info(ctx, "pull request saved",
		logger.Int("number", src.Number),
		logger.String("repository", repo.FullName),
		logger.String("state", state),
		logger.Bool("bug_fix", pr.IsBugFix),
	)

	if src.Author() == "" {
		return Processed, nil
	}
	if _, err := r.scorer.Recompute(ctx, author, repo.ID); err != nil {
		return "", fmt.Errorf("recompute score for %s: %w", author, err)
	}
	return Processed, nil
}
