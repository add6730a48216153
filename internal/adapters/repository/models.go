package repository

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/okian/hookscore/internal/domain/model"
)

type repositoryRecord struct {
	bun.BaseModel `bun:"table:repositories,alias:r"`

	ID            string    `bun:"id,pk"`
	GitHubID      int64     `bun:"github_id,notnull"`
	Name          string    `bun:"name,notnull"`
	FullName      string    `bun:"full_name,notnull"`
	DefaultBranch string    `bun:"default_branch,notnull"`
	IsPrivate     bool      `bun:"is_private,notnull"`
	Stars         int       `bun:"stars,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

func (r *repositoryRecord) toDomain() *model.Repository {
	return &model.Repository{
		ID:            r.ID,
		GitHubID:      r.GitHubID,
		Name:          r.Name,
		FullName:      r.FullName,
		DefaultBranch: r.DefaultBranch,
		IsPrivate:     r.IsPrivate,
		Stars:         r.Stars,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type eventRecord struct {
	bun.BaseModel `bun:"table:inbound_events,alias:e"`

	ID           string     `bun:"id,pk"`
	DeliveryID   string     `bun:"delivery_id,notnull"`
	EventType    string     `bun:"event_type,notnull"`
	Payload      string     `bun:"payload,notnull"`
	RepositoryID *string    `bun:"repository_id"`
	ReceivedAt   time.Time  `bun:"received_at,notnull"`
	Processed    bool       `bun:"processed,notnull"`
	ProcessedAt  *time.Time `bun:"processed_at"`
	Attempts     int        `bun:"attempts,notnull"`
	LastError    string     `bun:"last_error,notnull"`
	Quarantined  bool       `bun:"quarantined,notnull"`
}

func (r *eventRecord) toDomain() model.InboundEvent {
	return model.InboundEvent{
		ID:           r.ID,
		DeliveryID:   r.DeliveryID,
		EventType:    r.EventType,
		Payload:      []byte(r.Payload),
		RepositoryID: r.RepositoryID,
		ReceivedAt:   r.ReceivedAt,
		Processed:    r.Processed,
		ProcessedAt:  r.ProcessedAt,
		Attempts:     r.Attempts,
		LastError:    r.LastError,
		Quarantined:  r.Quarantined,
	}
}

type pullRequestRecord struct {
	bun.BaseModel `bun:"table:pull_requests,alias:pr"`

	ID           string     `bun:"id,pk"`
	GitHubID     int64      `bun:"github_id,notnull"`
	Number       int        `bun:"number,notnull"`
	RepositoryID string     `bun:"repository_id,notnull"`
	AuthorID     string     `bun:"author_id,notnull"`
	Title        string     `bun:"title,notnull"`
	State        string     `bun:"state,notnull"`
	MergedAt     *time.Time `bun:"merged_at"`
	CreatedAt    time.Time  `bun:"created_at,notnull"`
	LinesAdded   int        `bun:"lines_added,notnull"`
	LinesDeleted int        `bun:"lines_deleted,notnull"`
	IsBugFix     bool       `bun:"is_bug_fix,notnull"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull"`
}

func (r *pullRequestRecord) toDomain() model.PullRequest {
	return model.PullRequest{
		ID:           r.ID,
		GitHubID:     r.GitHubID,
		Number:       r.Number,
		RepositoryID: r.RepositoryID,
		AuthorID:     r.AuthorID,
		Title:        r.Title,
		State:        r.State,
		MergedAt:     r.MergedAt,
		CreatedAt:    r.CreatedAt,
		LinesAdded:   r.LinesAdded,
		LinesDeleted: r.LinesDeleted,
		IsBugFix:     r.IsBugFix,
		UpdatedAt:    r.UpdatedAt,
	}
}

type reviewRecord struct {
	bun.BaseModel `bun:"table:reviews,alias:rv"`

	ID            string    `bun:"id,pk"`
	GitHubID      int64     `bun:"github_id,notnull"`
	PullRequestID string    `bun:"pull_request_id,notnull"`
	ReviewerID    string    `bun:"reviewer_id,notnull"`
	State         string    `bun:"state,notnull"`
	SubmittedAt   time.Time `bun:"submitted_at,notnull"`
}

func (r *reviewRecord) toDomain() model.Review {
	return model.Review{
		ID:            r.ID,
		GitHubID:      r.GitHubID,
		PullRequestID: r.PullRequestID,
		ReviewerID:    r.ReviewerID,
		State:         r.State,
		SubmittedAt:   r.SubmittedAt,
	}
}

type scoreRecord struct {
	bun.BaseModel `bun:"table:contributor_scores,alias:cs"`

	ID             string    `bun:"id,pk"`
	ContributorKey string    `bun:"contributor_key,notnull"`
	RepositoryID   string    `bun:"repository_id,notnull"`
	TotalScore     float64   `bun:"total_score,notnull"`
	TotalPRs       int       `bun:"total_prs,notnull"`
	MergedPRs      int       `bun:"merged_prs,notnull"`
	BugFixPRs      int       `bun:"bug_fix_prs,notnull"`
	ReviewsGiven   int       `bun:"reviews_given,notnull"`
	CalculatedAt   time.Time `bun:"calculated_at,notnull"`
}

func (r *scoreRecord) toDomain() *model.ContributorScore {
	return &model.ContributorScore{
		ID:             r.ID,
		ContributorKey: r.ContributorKey,
		RepositoryID:   r.RepositoryID,
		TotalScore:     r.TotalScore,
		TotalPRs:       r.TotalPRs,
		MergedPRs:      r.MergedPRs,
		BugFixPRs:      r.BugFixPRs,
		ReviewsGiven:   r.ReviewsGiven,
		CalculatedAt:   r.CalculatedAt,
	}
}
