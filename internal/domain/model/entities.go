package model

import (
	"strings"
	"time"
)

// Pull request states.
const (
	StateOpen   = "open"
	StateClosed = "closed"
	StateMerged = "merged"
)

// ReviewApproved is the review state counted by scoring.
const ReviewApproved = "approved"

// UnknownAuthor is stored when a pull request carries no author login.
const UnknownAuthor = "unknown"

// Repository is a source repository, created on first sighting.
type Repository struct {
	ID            string
	GitHubID      int64
	Name          string
	FullName      string
	DefaultBranch string
	IsPrivate     bool
	Stars         int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PullRequest is upserted by GitHubID.
type PullRequest struct {
	ID           string
	GitHubID     int64
	Number       int
	RepositoryID string
	AuthorID     string
	Title        string
	State        string
	MergedAt     *time.Time
	CreatedAt    time.Time
	LinesAdded   int
	LinesDeleted int
	IsBugFix     bool
	UpdatedAt    time.Time
}

// Merged reports whether the pull request has a merge timestamp.
func (p *PullRequest) Merged() bool { return p.MergedAt != nil }

// Review is upserted by GitHubID.
type Review struct {
	ID            string
	GitHubID      int64
	PullRequestID string
	ReviewerID    string
	State         string
	SubmittedAt   time.Time
}

// Approved reports whether the review approves the pull request.
func (r *Review) Approved() bool { return strings.EqualFold(r.State, ReviewApproved) }

// ContributorScore is keyed by (ContributorKey, RepositoryID) and is only
// written by the scoring engine.
type ContributorScore struct {
	ID             string
	ContributorKey string
	RepositoryID   string
	TotalScore     float64
	TotalPRs       int
	MergedPRs      int
	BugFixPRs      int
	ReviewsGiven   int
	CalculatedAt   time.Time
}
