// Package payload parses raw delivery bodies into typed event variants.
//
// Parse returns exactly one of PullRequestEvent, PushEvent, ReviewEvent or
// Unknown. Fields required by a processor are checked here so that
// processors never reach into untyped documents.
package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okian/hookscore/internal/domain/model"
)

// ErrMalformed is returned when a body cannot be decoded into its variant.
var ErrMalformed = errors.New("malformed payload")

// Event is implemented by every payload variant.
type Event interface {
	Type() model.EventType
}

// Repository is the repository envelope common to all deliveries.
type Repository struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	DefaultBranch   string `json:"default_branch"`
	Private         bool   `json:"private"`
	StargazersCount int    `json:"stargazers_count"`
}

// User identifies an account by login.
type User struct {
	Login string `json:"login"`
}

// PullRequest is the pull_request object.
type PullRequest struct {
	ID        int64      `json:"id"`
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Body      *string    `json:"body"`
	State     string     `json:"state"`
	Merged    bool       `json:"merged"`
	MergedAt  *time.Time `json:"merged_at"`
	CreatedAt time.Time  `json:"created_at"`
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
	User      *User      `json:"user"`
}

// Author returns the author login, or "" when absent.
func (p *PullRequest) Author() string {
	if p.User == nil {
		return ""
	}
	return p.User.Login
}

// Text is the title and body joined by a space.
func (p *PullRequest) Text() string {
	if p.Body == nil {
		return p.Title + " "
	}
	return p.Title + " " + *p.Body
}

// Review is the review object.
type Review struct {
	ID          int64      `json:"id"`
	State       string     `json:"state"`
	SubmittedAt *time.Time `json:"submitted_at"`
	User        *User      `json:"user"`
}

// Commit is a pushed commit.
type Commit struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// PullRequestEvent is a pull_request delivery.
type PullRequestEvent struct {
	Action      string      `json:"action"`
	PullRequest PullRequest `json:"pull_request"`
	Repository  *Repository `json:"repository"`
}

// Type implements Event.
func (PullRequestEvent) Type() model.EventType { return model.EventPullRequest }

// PushEvent is a push delivery.
type PushEvent struct {
	Ref        string      `json:"ref"`
	Commits    []Commit    `json:"commits"`
	Repository *Repository `json:"repository"`
}

// Type implements Event.
func (PushEvent) Type() model.EventType { return model.EventPush }

// ReviewEvent is a pull_request_review delivery.
type ReviewEvent struct {
	Action      string       `json:"action"`
	Review      Review       `json:"review"`
	PullRequest *PullRequest `json:"pull_request"`
	Repository  *Repository  `json:"repository"`
}

// Type implements Event.
func (ReviewEvent) Type() model.EventType { return model.EventReview }

// Unknown is any delivery without a dedicated variant.
type Unknown struct {
	Label string
}

// Type implements Event.
func (Unknown) Type() model.EventType { return model.EventOther }

// Parse decodes raw according to the event label.
func Parse(label string, raw []byte) (Event, error) {
	switch model.ClassifyEventType(label) {
	case model.EventPullRequest:
		var ev PullRequestEvent
		if err := decode(raw, &ev); err != nil {
			return nil, err
		}
		if ev.PullRequest.ID == 0 {
			return nil, fmt.Errorf("%w: pull_request.id is required", ErrMalformed)
		}
		return ev, nil

	case model.EventPush:
		var ev PushEvent
		if err := decode(raw, &ev); err != nil {
			return nil, err
		}
		return ev, nil

	case model.EventReview:
		var ev ReviewEvent
		if err := decode(raw, &ev); err != nil {
			return nil, err
		}
		if ev.Review.ID == 0 {
			return nil, fmt.Errorf("%w: review.id is required", ErrMalformed)
		}
		return ev, nil

	default:
		return Unknown{Label: label}, nil
	}
}

// ParseRepository extracts the repository envelope, returning nil when the
// body has none.
func ParseRepository(raw []byte) (*Repository, error) {
	var env struct {
		Repository *Repository `json:"repository"`
	}
	if err := decode(raw, &env); err != nil {
		return nil, err
	}
	if env.Repository == nil || env.Repository.ID == 0 {
		return nil, nil
	}
	return env.Repository, nil
}

func decode(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return nil
}
