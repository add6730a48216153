// Package types contains read-side shapes returned by query endpoints.
package types

import "time"

// LeaderboardEntry is one ranked contributor score.
type LeaderboardEntry struct {
	Rank           int       `json:"rank"`
	ContributorKey string    `json:"contributorKey"`
	RepositoryID   string    `json:"repositoryId"`
	RepositoryName string    `json:"repositoryName"`
	TotalScore     float64   `json:"totalScore"`
	TotalPRs       int       `json:"totalPRs"`
	MergedPRs      int       `json:"mergedPRs"`
	BugFixPRs      int       `json:"bugFixPRs"`
	ReviewsGiven   int       `json:"reviewsGiven"`
	CalculatedAt   time.Time `json:"calculatedAt"`
}

// RepositorySummary describes a repository with activity counts.
type RepositorySummary struct {
	ID               string    `json:"id"`
	GitHubID         int64     `json:"githubId"`
	Name             string    `json:"name"`
	FullName         string    `json:"fullName"`
	DefaultBranch    string    `json:"defaultBranch"`
	IsPrivate        bool      `json:"isPrivate"`
	Stars            int       `json:"stars"`
	PullRequestCount int       `json:"pullRequestCount"`
	ContributorCount int       `json:"contributorCount"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Totals are aggregate counters over the stored entities.
type Totals struct {
	Repositories    int `json:"repositories"`
	PullRequests    int `json:"pullRequests"`
	Contributors    int `json:"contributors"`
	ProcessedEvents int `json:"processedEvents"`
	PendingEvents   int `json:"pendingEvents"`
}

// Stats is the GET /stats response body.
type Stats struct {
	Totals          Totals             `json:"totals"`
	TopContributors []LeaderboardEntry `json:"topContributors"`
}

// Rank assigns 1-based ranks in slice order.
func Rank(entries []LeaderboardEntry) []LeaderboardEntry {
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
