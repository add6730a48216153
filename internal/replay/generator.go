package replay

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/hookscore/internal/domain/model"
	"github.com/okian/hookscore/internal/domain/payload"
	"github.com/okian/hookscore/internal/domain/router"
	"github.com/okian/hookscore/internal/domain/scoring"
)

var titles = []string{
	"Add pagination to list endpoint",
	"Fix crash when config is missing",
	"Refactor storage layer",
	"hotfix: nil pointer in handler",
	"Update dependencies",
	"Patch race in cache eviction",
	"Document deployment steps",
	"Bug: wrong timezone in report",
}

var reviewStates = []string{"approved", "commented", "changes_requested", "APPROVED"}

// History is a synthetic activity log split into two phases so that every
// review refers to a pull request that is already stored.
type History struct {
	PullRequests []Delivery
	Followups    []Delivery
	Expected     map[string]float64
}

// Generate builds a deterministic history for cfg.
func Generate(cfg *Config) (*History, error) {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	repo := &payload.Repository{
		ID:            cfg.RepositoryID,
		Name:          "replay",
		FullName:      RepositoryFullName(cfg.RepositoryID),
		DefaultBranch: "main",
	}
	logins := make([]string, cfg.Contributors)
	for i := range logins {
		logins[i] = fmt.Sprintf("dev-%02d", i)
	}

	activity := make(map[string]*scoring.Activity, len(logins))
	track := func(login string) *scoring.Activity {
		if a, ok := activity[login]; ok {
			return a
		}
		a := &scoring.Activity{}
		activity[login] = a
		return a
	}

	h := &History{}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prIDBase := cfg.RepositoryID * 1_000_000

	prs := make([]payload.PullRequest, 0, cfg.PullRequests)
	for i := 0; i < cfg.PullRequests; i++ {
		author := logins[rng.IntN(len(logins))]
		title := titles[rng.IntN(len(titles))]
		created := base.Add(time.Duration(i) * time.Hour)
		pr := payload.PullRequest{
			ID:        prIDBase + int64(i) + 1,
			Number:    i + 1,
			Title:     title,
			State:     model.StateOpen,
			CreatedAt: created,
			Additions: rng.IntN(400),
			Deletions: rng.IntN(120),
			User:      &payload.User{Login: author},
		}
		action := "opened"
		if rng.IntN(3) > 0 {
			merged := created.Add(30 * time.Minute)
			pr.State = model.StateClosed
			pr.Merged = true
			pr.MergedAt = &merged
			action = "closed"
		}
		prs = append(prs, pr)

		body, err := json.Marshal(payload.PullRequestEvent{Action: action, PullRequest: pr, Repository: repo})
		if err != nil {
			return nil, err
		}
		h.PullRequests = append(h.PullRequests, Delivery{ID: uuid.NewString(), Event: "pull_request", Body: body})

		a := track(author)
		a.PullRequests = append(a.PullRequests, model.PullRequest{
			GitHubID:   pr.ID,
			MergedAt:   pr.MergedAt,
			LinesAdded: pr.Additions,
			IsBugFix:   router.IsBugFix(pr.Text()),
		})
	}

	reviewID := prIDBase + 500_000
	for i := range prs {
		pr := prs[i]
		for j := 0; j < cfg.ReviewsPerPR; j++ {
			reviewer := logins[rng.IntN(len(logins))]
			state := reviewStates[rng.IntN(len(reviewStates))]
			reviewID++
			submitted := pr.CreatedAt.Add(time.Duration(j+1) * 10 * time.Minute)
			body, err := json.Marshal(payload.ReviewEvent{
				Action: "submitted",
				Review: payload.Review{
					ID:          reviewID,
					State:       state,
					SubmittedAt: &submitted,
					User:        &payload.User{Login: reviewer},
				},
				PullRequest: &payload.PullRequest{ID: pr.ID, Number: pr.Number, Title: pr.Title},
				Repository:  repo,
			})
			if err != nil {
				return nil, err
			}
			h.Followups = append(h.Followups, Delivery{ID: uuid.NewString(), Event: "pull_request_review", Body: body})

			a := track(reviewer)
			a.Reviews = append(a.Reviews, model.Review{GitHubID: reviewID, State: state})
		}
	}

	for i := 0; i < cfg.Pushes; i++ {
		body, err := json.Marshal(payload.PushEvent{
			Ref:        "refs/heads/main",
			Commits:    []payload.Commit{{ID: uuid.NewString(), Message: titles[rng.IntN(len(titles))]}},
			Repository: repo,
		})
		if err != nil {
			return nil, err
		}
		h.Followups = append(h.Followups, Delivery{ID: uuid.NewString(), Event: "push", Body: body})
	}

	h.PullRequests = withDuplicates(h.PullRequests, cfg.DuplicateEvery)
	h.Followups = withDuplicates(h.Followups, cfg.DuplicateEvery)

	h.Expected = make(map[string]float64, len(activity))
	for login, a := range activity {
		h.Expected[login] = scoring.Compute(*a).Score
	}
	return h, nil
}

// RepositoryFullName is the full name of the synthetic repository.
func RepositoryFullName(githubID int64) string {
	return fmt.Sprintf("replay/repo-%d", githubID)
}

// withDuplicates appends a redelivery of every nth item.
func withDuplicates(in []Delivery, every int) []Delivery {
	if every <= 0 {
		return in
	}
	out := append([]Delivery(nil), in...)
	for i := every - 1; i < len(in); i += every {
		out = append(out, in[i])
	}
	return out
}

// Len returns the number of deliveries in both phases.
func (h *History) Len() int { return len(h.PullRequests) + len(h.Followups) }
