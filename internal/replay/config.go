// Package replay drives a running hookscore server with signed synthetic
// deliveries and checks the resulting leaderboard.
package replay

import "time"

// Config holds configuration for a replay run.
type Config struct {
	BaseURL        string        // Base URL of the service
	Secret         string        // Webhook secret shared with the service
	Seed           uint64        // Seed for the synthetic history
	RepositoryID   int64         // GitHub id of the synthetic repository
	Contributors   int           // Number of distinct logins
	PullRequests   int           // Number of pull request deliveries
	ReviewsPerPR   int           // Reviews submitted per pull request
	Pushes         int           // Number of push deliveries
	DuplicateEvery int           // Resend every Nth delivery with the same id; 0 disables
	Workers        int           // Concurrent senders
	Timeout        time.Duration // HTTP request timeout
	DrainTimeout   time.Duration // How long to wait for pendingEvents to reach zero
	Verbose        bool          // Log every delivery
}

// Delivery is one signed webhook request.
type Delivery struct {
	ID    string
	Event string
	Body  []byte
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Submitted  int
	Saved      int
	Duplicates int
	Failed     int
	Checked    int
	Mismatched int
	StartTime  time.Time
	Duration   time.Duration
}
