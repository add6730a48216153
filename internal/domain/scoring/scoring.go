// Package scoring recomputes contributor reputation scores.
//
// A score is a pure function of the pull requests and reviews stored for a
// (contributor, repository) pair. Recompute always overwrites the stored row,
// so redundant or concurrent invocations converge on the same result.
package scoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/hookscore/internal/domain/model"
	"github.com/okian/hookscore/pkg/logger"
	"github.com/okian/hookscore/pkg/metrics"
)

// Weights are the per-component multipliers of the score formula.
type Weights struct {
	Merged         float64
	BugFix         float64
	ApprovedReview float64
	Lines          float64
}

// DefaultWeights is 3 per merged PR, 5 per merged bug fix, 2 per approval,
// and 1 times ln(linesAdded+1).
var DefaultWeights = Weights{Merged: 3, BugFix: 5, ApprovedReview: 2, Lines: 1}

// Activity is the persisted history a score is derived from.
type Activity struct {
	PullRequests []model.PullRequest
	Reviews      []model.Review
}

// Result holds the derived score and counts.
type Result struct {
	Score        float64
	TotalPRs     int
	MergedPRs    int
	BugFixPRs    int
	Approved     int
	ReviewsGiven int
	LinesAdded   int
	LinesDeleted int
}

// Compute applies w to a.
func (w Weights) Compute(a Activity) Result {
	var r Result
	r.TotalPRs = len(a.PullRequests)
	for i := range a.PullRequests {
		pr := &a.PullRequests[i]
		if pr.Merged() {
			r.MergedPRs++
			if pr.IsBugFix {
				r.BugFixPRs++
			}
		}
		r.LinesAdded += pr.LinesAdded
		r.LinesDeleted += pr.LinesDeleted
	}
	r.ReviewsGiven = len(a.Reviews)
	for i := range a.Reviews {
		if a.Reviews[i].Approved() {
			r.Approved++
		}
	}

	score := w.Merged*float64(r.MergedPRs) +
		w.BugFix*float64(r.BugFixPRs) +
		w.ApprovedReview*float64(r.Approved) +
		w.Lines*math.Log(float64(max(r.LinesAdded, 0))+1)
	// NaN fails the comparison and is floored too.
	if !(score > 0) {
		score = 0
	}
	r.Score = score
	return r
}

// Compute applies DefaultWeights to a.
func Compute(a Activity) Result {
	return DefaultWeights.Compute(a)
}

// Store is the persistence the engine reads from and writes to.
type Store interface {
	ListPullRequestsByAuthor(ctx context.Context, author, repositoryID string) ([]model.PullRequest, error)
	ListReviewsByReviewer(ctx context.Context, reviewer, repositoryID string) ([]model.Review, error)
	UpsertContributorScore(ctx context.Context, score *model.ContributorScore) error
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithWeights overrides DefaultWeights. Negative weights are ignored.
func WithWeights(w Weights) Option {
	return func(e *Engine) {
		if w.Merged >= 0 && w.BugFix >= 0 && w.ApprovedReview >= 0 && w.Lines >= 0 {
			e.weights = w
		}
	}
}

// WithClock sets the time source used for CalculatedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine recomputes and stores contributor scores.
type Engine struct {
	store   Store
	weights Weights
	now     func() time.Time
	log     logger.Logger
}

// NewEngine creates an Engine backed by store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		weights: DefaultWeights,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Named("scoring")
	}
	return e
}

// Weights returns the weights in use.
func (e *Engine) Weights() Weights { return e.weights }

// Recompute rebuilds the score row for contributor in repositoryID.
func (e *Engine) Recompute(ctx context.Context, contributor, repositoryID string) (_ *model.ContributorScore, err error) {
	start := time.Now()
	defer func() { metrics.RecordScoreRecompute(time.Since(start), err) }()

	prs, err := e.store.ListPullRequestsByAuthor(ctx, contributor, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("load pull requests for %s: %w", contributor, err)
	}
	reviews, err := e.store.ListReviewsByReviewer(ctx, contributor, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("load reviews for %s: %w", contributor, err)
	}

	res := e.weights.Compute(Activity{PullRequests: prs, Reviews: reviews})
	score := &model.ContributorScore{
		ContributorKey: contributor,
		RepositoryID:   repositoryID,
		TotalScore:     res.Score,
		TotalPRs:       res.TotalPRs,
		MergedPRs:      res.MergedPRs,
		BugFixPRs:      res.BugFixPRs,
		ReviewsGiven:   res.ReviewsGiven,
		CalculatedAt:   e.now().UTC(),
	}
	if err := e.store.UpsertContributorScore(ctx, score); err != nil {
		return nil, fmt.Errorf("store score for %s: %w", contributor, err)
	}

	e.log.Debug(ctx, "score recomputed",
		logger.String("contributor", contributor),
		logger.String("repository_id", repositoryID),
		logger.Float64("score", res.Score),
		logger.Int("merged_prs", res.MergedPRs),
		logger.Int("approved_reviews", res.Approved),
	)
	return score, nil
}
