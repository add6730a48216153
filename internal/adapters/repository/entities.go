package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/okian/hookscore/internal/domain/model"
	"github.com/okian/hookscore/pkg/logger"
)

// FindOrCreateRepository inserts repo unless its GitHubID is already known and
// returns the stored row. Existing rows are not modified.
func (s *Store) FindOrCreateRepository(ctx context.Context, repo *model.Repository) (*model.Repository, error) {
	now := s.timestamp()
	rec := &repositoryRecord{
		ID:            uuid.NewString(),
		GitHubID:      repo.GitHubID,
		Name:          repo.Name,
		FullName:      repo.FullName,
		DefaultBranch: repo.DefaultBranch,
		IsPrivate:     repo.IsPrivate,
		Stars:         repo.Stars,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if rec.DefaultBranch == "" {
		rec.DefaultBranch = "main"
	}
	res, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (github_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert repository %d: %w", repo.GitHubID, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		s.log.Info(ctx, "repository created", logger.String("repository", rec.FullName), logger.Int64("github_id", rec.GitHubID))
		return rec.toDomain(), nil
	}
	return s.FindRepositoryByGitHubID(ctx, repo.GitHubID)
}

// FindRepositoryByGitHubID loads a repository by external id.
func (s *Store) FindRepositoryByGitHubID(ctx context.Context, githubID int64) (*model.Repository, error) {
	rec := new(repositoryRecord)
	err := s.db.NewSelect().Model(rec).Where("github_id = ?", githubID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("repository %d: %w", githubID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find repository %d: %w", githubID, err)
	}
	return rec.toDomain(), nil
}

// UpsertPullRequest inserts pr or refreshes its mutable fields (state, merge
// time, line counts) when the GitHubID exists. pr.ID is set to the stored id.
func (s *Store) UpsertPullRequest(ctx context.Context, pr *model.PullRequest) error {
	now := s.timestamp()
	rec := &pullRequestRecord{
		ID:           uuid.NewString(),
		GitHubID:     pr.GitHubID,
		Number:       pr.Number,
		RepositoryID: pr.RepositoryID,
		AuthorID:     pr.AuthorID,
		Title:        pr.Title,
		State:        pr.State,
		MergedAt:     pr.MergedAt,
		CreatedAt:    pr.CreatedAt,
		LinesAdded:   pr.LinesAdded,
		LinesDeleted: pr.LinesDeleted,
		IsBugFix:     pr.IsBugFix,
		UpdatedAt:    now,
	}
	_, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (github_id) DO UPDATE").
		Set("state = EXCLUDED.state").
		Set("merged_at = EXCLUDED.merged_at").
		Set("lines_added = EXCLUDED.lines_added").
		Set("lines_deleted = EXCLUDED.lines_deleted").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert pull request %d: %w", pr.GitHubID, err)
	}
	stored, err := s.FindPullRequestByGitHubID(ctx, pr.GitHubID)
	if err != nil {
		return err
	}
	pr.ID = stored.ID
	pr.UpdatedAt = stored.UpdatedAt
	return nil
}

// FindPullRequestByGitHubID loads a pull request by external id.
func (s *Store) FindPullRequestByGitHubID(ctx context.Context, githubID int64) (*model.PullRequest, error) {
	rec := new(pullRequestRecord)
	err := s.db.NewSelect().Model(rec).Where("github_id = ?", githubID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pull request %d: %w", githubID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find pull request %d: %w", githubID, err)
	}
	pr := rec.toDomain()
	return &pr, nil
}

// ListPullRequestsByAuthor returns every pull request by author in a repository.
func (s *Store) ListPullRequestsByAuthor(ctx context.Context, author, repositoryID string) ([]model.PullRequest, error) {
	var recs []pullRequestRecord
	err := s.db.NewSelect().
		Model(&recs).
		Where("repository_id = ?", repositoryID).
		Where("author_id = ?", author).
		Order("created_at").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pull requests for %s: %w", author, err)
	}
	out := make([]model.PullRequest, len(recs))
	for i := range recs {
		out[i] = recs[i].toDomain()
	}
	return out, nil
}

// UpsertReview inserts review or refreshes its state and submission time.
func (s *Store) UpsertReview(ctx context.Context, review *model.Review) error {
	rec := &reviewRecord{
		ID:            uuid.NewString(),
		GitHubID:      review.GitHubID,
		PullRequestID: review.PullRequestID,
		ReviewerID:    review.ReviewerID,
		State:         review.State,
		SubmittedAt:   review.SubmittedAt.UTC(),
	}
	_, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (github_id) DO UPDATE").
		Set("state = EXCLUDED.state").
		Set("submitted_at = EXCLUDED.submitted_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert review %d: %w", review.GitHubID, err)
	}
	return nil
}

// ListReviewsByReviewer returns reviews given by reviewer on pull requests of
// a repository.
func (s *Store) ListReviewsByReviewer(ctx context.Context, reviewer, repositoryID string) ([]model.Review, error) {
	var recs []reviewRecord
	err := s.db.NewSelect().
		Model(&recs).
		Join("JOIN pull_requests AS pr ON pr.id = rv.pull_request_id").
		Where("pr.repository_id = ?", repositoryID).
		Where("rv.reviewer_id = ?", reviewer).
		Order("rv.submitted_at").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reviews for %s: %w", reviewer, err)
	}
	out := make([]model.Review, len(recs))
	for i := range recs {
		out[i] = recs[i].toDomain()
	}
	return out, nil
}

// UpsertContributorScore overwrites the score row for the contributor and
// repository pair.
func (s *Store) UpsertContributorScore(ctx context.Context, score *model.ContributorScore) error {
	rec := &scoreRecord{
		ID:             uuid.NewString(),
		ContributorKey: score.ContributorKey,
		RepositoryID:   score.RepositoryID,
		TotalScore:     score.TotalScore,
		TotalPRs:       score.TotalPRs,
		MergedPRs:      score.MergedPRs,
		BugFixPRs:      score.BugFixPRs,
		ReviewsGiven:   score.ReviewsGiven,
		CalculatedAt:   score.CalculatedAt,
	}
	if rec.CalculatedAt.IsZero() {
		rec.CalculatedAt = s.timestamp()
	}
	_, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (contributor_key, repository_id) DO UPDATE").
		Set("total_score = EXCLUDED.total_score").
		Set("total_prs = EXCLUDED.total_prs").
		Set("merged_prs = EXCLUDED.merged_prs").
		Set("bug_fix_prs = EXCLUDED.bug_fix_prs").
		Set("reviews_given = EXCLUDED.reviews_given").
		Set("calculated_at = EXCLUDED.calculated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert score for %s: %w", score.ContributorKey, err)
	}
	return nil
}

// GetContributorScore loads the score row for a contributor and repository.
func (s *Store) GetContributorScore(ctx context.Context, contributor, repositoryID string) (*model.ContributorScore, error) {
	rec := new(scoreRecord)
	err := s.db.NewSelect().
		Model(rec).
		Where("contributor_key = ?", contributor).
		Where("repository_id = ?", repositoryID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("score %s/%s: %w", contributor, repositoryID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get score %s: %w", contributor, err)
	}
	return rec.toDomain(), nil
}
