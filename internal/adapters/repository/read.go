package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/hookscore/internal/domain/types"
)

type leaderboardRow struct {
	ContributorKey string    `bun:"contributor_key"`
	RepositoryID   string    `bun:"repository_id"`
	RepositoryName string    `bun:"repository_name"`
	TotalScore     float64   `bun:"total_score"`
	TotalPRs       int       `bun:"total_prs"`
	MergedPRs      int       `bun:"merged_prs"`
	BugFixPRs      int       `bun:"bug_fix_prs"`
	ReviewsGiven   int       `bun:"reviews_given"`
	CalculatedAt   time.Time `bun:"calculated_at"`
}

// Leaderboard returns the top contributor scores across repositories.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	var rows []leaderboardRow
	err := s.db.NewSelect().
		TableExpr("contributor_scores AS cs").
		ColumnExpr("cs.contributor_key, cs.repository_id, r.full_name AS repository_name").
		ColumnExpr("cs.total_score, cs.total_prs, cs.merged_prs, cs.bug_fix_prs, cs.reviews_given, cs.calculated_at").
		Join("JOIN repositories AS r ON r.id = cs.repository_id").
		OrderExpr("cs.total_score DESC, cs.contributor_key ASC").
		Limit(limit).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	out := make([]types.LeaderboardEntry, len(rows))
	for i, r := range rows {
		out[i] = types.LeaderboardEntry{
			ContributorKey: r.ContributorKey,
			RepositoryID:   r.RepositoryID,
			RepositoryName: r.RepositoryName,
			TotalScore:     r.TotalScore,
			TotalPRs:       r.TotalPRs,
			MergedPRs:      r.MergedPRs,
			BugFixPRs:      r.BugFixPRs,
			ReviewsGiven:   r.ReviewsGiven,
			CalculatedAt:   r.CalculatedAt,
		}
	}
	return types.Rank(out), nil
}

type repositoryRow struct {
	ID               string    `bun:"id"`
	GitHubID         int64     `bun:"github_id"`
	Name             string    `bun:"name"`
	FullName         string    `bun:"full_name"`
	DefaultBranch    string    `bun:"default_branch"`
	IsPrivate        bool      `bun:"is_private"`
	Stars            int       `bun:"stars"`
	CreatedAt        time.Time `bun:"created_at"`
	PullRequestCount int       `bun:"pull_request_count"`
	ContributorCount int       `bun:"contributor_count"`
}

// ListRepositories returns repositories newest first with activity counts.
func (s *Store) ListRepositories(ctx context.Context) ([]types.RepositorySummary, error) {
	var rows []repositoryRow
	err := s.db.NewSelect().
		TableExpr("repositories AS r").
		ColumnExpr("r.id, r.github_id, r.name, r.full_name, r.default_branch, r.is_private, r.stars, r.created_at").
		ColumnExpr("(SELECT COUNT(*) FROM pull_requests AS p WHERE p.repository_id = r.id) AS pull_request_count").
		ColumnExpr("(SELECT COUNT(*) FROM contributor_scores AS c WHERE c.repository_id = r.id) AS contributor_count").
		OrderExpr("r.created_at DESC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	out := make([]types.RepositorySummary, len(rows))
	for i, r := range rows {
		out[i] = types.RepositorySummary{
			ID:               r.ID,
			GitHubID:         r.GitHubID,
			Name:             r.Name,
			FullName:         r.FullName,
			DefaultBranch:    r.DefaultBranch,
			IsPrivate:        r.IsPrivate,
			Stars:            r.Stars,
			PullRequestCount: r.PullRequestCount,
			ContributorCount: r.ContributorCount,
			CreatedAt:        r.CreatedAt,
		}
	}
	return out, nil
}

// Totals counts stored entities and event states.
func (s *Store) Totals(ctx context.Context) (types.Totals, error) {
	var t types.Totals
	var err error

	if t.Repositories, err = s.db.NewSelect().Model((*repositoryRecord)(nil)).Count(ctx); err != nil {
		return t, fmt.Errorf("count repositories: %w", err)
	}
	if t.PullRequests, err = s.db.NewSelect().Model((*pullRequestRecord)(nil)).Count(ctx); err != nil {
		return t, fmt.Errorf("count pull requests: %w", err)
	}
	if err = s.db.NewSelect().
		TableExpr("contributor_scores").
		ColumnExpr("COUNT(DISTINCT contributor_key)").
		Scan(ctx, &t.Contributors); err != nil {
		return t, fmt.Errorf("count contributors: %w", err)
	}
	if t.ProcessedEvents, err = s.db.NewSelect().
		Model((*eventRecord)(nil)).
		Where("processed = ?", true).
		Count(ctx); err != nil {
		return t, fmt.Errorf("count processed events: %w", err)
	}
	if t.PendingEvents, err = s.db.NewSelect().
		Model((*eventRecord)(nil)).
		Where("processed = ?", false).
		Where("quarantined = ?", false).
		Count(ctx); err != nil {
		return t, fmt.Errorf("count pending events: %w", err)
	}
	return t, nil
}
