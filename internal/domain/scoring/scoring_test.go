package scoring_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/okian/hookscore/internal/domain/model"
	"github.com/okian/hookscore/internal/domain/scoring"
	"github.com/okian/hookscore/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	m.Run()
}

type fakeStore struct {
	mu      sync.Mutex
	prs     []model.PullRequest
	reviews []model.Review
	scores  map[string]model.ContributorScore
	writes  int
	failPRs error
}

func newFakeStore() *fakeStore {
	return &fakeStore{scores: map[string]model.ContributorScore{}}
}

func (f *fakeStore) ListPullRequestsByAuthor(_ context.Context, author, repo string) ([]model.PullRequest, error) {
	if f.failPRs != nil {
		return nil, f.failPRs
	}
	var out []model.PullRequest
	for _, pr := range f.prs {
		if pr.AuthorID == author && pr.RepositoryID == repo {
			out = append(out, pr)
		}
	}
	return out, nil
}

func (f *fakeStore) ListReviewsByReviewer(_ context.Context, reviewer, _ string) ([]model.Review, error) {
	var out []model.Review
	for _, r := range f.reviews {
		if r.ReviewerID == reviewer {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertContributorScore(_ context.Context, s *model.ContributorScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	f.scores[s.ContributorKey+"/"+s.RepositoryID] = *s
	return nil
}

func mergedAt() *time.Time {
	t := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestCompute(t *testing.T) {
	Convey("Given two merged PRs (one a bug fix), three approvals and 100 lines added", t, func() {
		activity := scoring.Activity{
			PullRequests: []model.PullRequest{
				{MergedAt: mergedAt(), IsBugFix: true, LinesAdded: 60},
				{MergedAt: mergedAt(), LinesAdded: 40, LinesDeleted: 12},
			},
			Reviews: []model.Review{
				{State: "APPROVED"}, {State: "approved"}, {State: "Approved"},
				{State: "COMMENTED"},
			},
		}

		Convey("When computing with default weights", func() {
			res := scoring.Compute(activity)

			Convey("Then the score is 3*2 + 5*1 + 2*3 + ln(101)", func() {
				So(res.Score, ShouldAlmostEqual, 17+math.Log(101), 1e-9)
				So(res.Score, ShouldAlmostEqual, 21.615, 0.001)
				So(res.MergedPRs, ShouldEqual, 2)
				So(res.BugFixPRs, ShouldEqual, 1)
				So(res.Approved, ShouldEqual, 3)
				So(res.ReviewsGiven, ShouldEqual, 4)
				So(res.LinesAdded, ShouldEqual, 100)
				So(res.LinesDeleted, ShouldEqual, 12)
			})
		})
	})

	Convey("Given an unmerged bug fix", t, func() {
		res := scoring.Compute(scoring.Activity{
			PullRequests: []model.PullRequest{{IsBugFix: true}},
		})

		Convey("Then it counts toward neither merged nor bug fix totals", func() {
			So(res.TotalPRs, ShouldEqual, 1)
			So(res.MergedPRs, ShouldEqual, 0)
			So(res.BugFixPRs, ShouldEqual, 0)
			So(res.Score, ShouldEqual, 0)
		})
	})

	Convey("Given no activity", t, func() {
		Convey("Then the score is zero", func() {
			So(scoring.Compute(scoring.Activity{}).Score, ShouldEqual, 0)
		})
	})

	Convey("Given pull requests whose line counts sum below minus one", t, func() {
		res := scoring.Compute(scoring.Activity{
			PullRequests: []model.PullRequest{{LinesAdded: -5}, {LinesAdded: -3}},
		})

		Convey("Then the score stays a finite zero", func() {
			So(math.IsNaN(res.Score), ShouldBeFalse)
			So(res.Score, ShouldEqual, 0)
		})
	})

	Convey("Given custom weights", t, func() {
		w := scoring.Weights{Merged: 1, BugFix: 0, ApprovedReview: 10, Lines: 0}
		res := w.Compute(scoring.Activity{
			PullRequests: []model.PullRequest{{MergedAt: mergedAt(), IsBugFix: true, LinesAdded: 1000}},
			Reviews:      []model.Review{{State: "approved"}},
		})

		Convey("Then each component uses its weight", func() {
			So(res.Score, ShouldEqual, 11)
		})
	})
}

func TestEngineRecompute(t *testing.T) {
	Convey("Given an engine over a store with history", t, func() {
		ctx := context.Background()
		store := newFakeStore()
		store.prs = []model.PullRequest{
			{AuthorID: "octocat", RepositoryID: "repo-1", MergedAt: mergedAt(), IsBugFix: true, LinesAdded: 100},
			{AuthorID: "octocat", RepositoryID: "repo-2", MergedAt: mergedAt(), LinesAdded: 5000},
			{AuthorID: "hubot", RepositoryID: "repo-1", MergedAt: mergedAt()},
		}
		store.reviews = []model.Review{{ReviewerID: "octocat", State: "APPROVED"}}
		fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		engine := scoring.NewEngine(store, scoring.WithClock(func() time.Time { return fixed }))

		Convey("When recomputing a contributor", func() {
			score, err := engine.Recompute(ctx, "octocat", "repo-1")

			Convey("Then only that repository's history is counted", func() {
				So(err, ShouldBeNil)
				So(score.TotalPRs, ShouldEqual, 1)
				So(score.MergedPRs, ShouldEqual, 1)
				So(score.BugFixPRs, ShouldEqual, 1)
				So(score.ReviewsGiven, ShouldEqual, 1)
				So(score.TotalScore, ShouldAlmostEqual, 3+5+2+math.Log(101), 1e-9)
				So(score.CalculatedAt, ShouldEqual, fixed)
				So(store.scores["octocat/repo-1"].TotalScore, ShouldEqual, score.TotalScore)
			})

			Convey("And recomputing again without new activity yields an identical row", func() {
				again, err := engine.Recompute(ctx, "octocat", "repo-1")
				So(err, ShouldBeNil)
				So(*again, ShouldResemble, *score)
				So(store.writes, ShouldEqual, 2)
				So(store.scores, ShouldHaveLength, 1)
			})
		})

		Convey("When recomputing concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = engine.Recompute(ctx, "hubot", "repo-1")
				}()
			}
			wg.Wait()

			Convey("Then a single row with the same value remains", func() {
				So(store.scores, ShouldHaveLength, 1)
				So(store.scores["hubot/repo-1"].TotalScore, ShouldEqual, 3)
			})
		})

		Convey("When the store fails", func() {
			store.failPRs = errors.New("db down")
			_, err := engine.Recompute(ctx, "octocat", "repo-1")

			Convey("Then the error is returned and nothing is written", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, store.failPRs), ShouldBeTrue)
				So(store.writes, ShouldEqual, 0)
			})
		})

		Convey("When negative weights are supplied", func() {
			e := scoring.NewEngine(store, scoring.WithWeights(scoring.Weights{Merged: -1}))

			Convey("Then the defaults are kept", func() {
				So(e.Weights(), ShouldResemble, scoring.DefaultWeights)
			})
		})
	})
}
