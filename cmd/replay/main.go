package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/okian/hookscore/internal/replay"
	"github.com/okian/hookscore/pkg/logger"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	_ = godotenv.Load()

	var (
		baseURL        = flag.String("url", "http://localhost:9080", "Base URL of the service")
		secret         = flag.String("secret", os.Getenv("HOOKSCORE_WEBHOOK_SECRET"), "Webhook secret")
		seed           = flag.Uint64("seed", 1, "Seed for the synthetic history")
		repoID         = flag.Int64("repo", 4242, "GitHub id of the synthetic repository")
		contributors   = flag.Int("contributors", 12, "Distinct contributor logins")
		pullRequests   = flag.Int("prs", 60, "Pull request deliveries")
		reviewsPerPR   = flag.Int("reviews", 2, "Reviews per pull request")
		pushes         = flag.Int("pushes", 10, "Push deliveries")
		duplicateEvery = flag.Int("duplicate-every", 5, "Redeliver every Nth delivery; 0 disables")
		workers        = flag.Int("workers", 8, "Concurrent senders")
		timeout        = flag.Duration("timeout", 10*time.Second, "HTTP request timeout")
		drain          = flag.Duration("drain", 2*time.Minute, "Time allowed for pending events to drain")
		verbose        = flag.Bool("verbose", false, "Log every delivery")
		help           = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		replay.ShowHelp()
		return
	}
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	stats, err := replay.Run(ctx, &replay.Config{
		BaseURL:        *baseURL,
		Secret:         *secret,
		Seed:           *seed,
		RepositoryID:   *repoID,
		Contributors:   *contributors,
		PullRequests:   *pullRequests,
		ReviewsPerPR:   *reviewsPerPR,
		Pushes:         *pushes,
		DuplicateEvery: *duplicateEvery,
		Workers:        *workers,
		Timeout:        *timeout,
		DrainTimeout:   *drain,
		Verbose:        *verbose,
	})
	if err != nil {
		logger.Get().Error(ctx, "replay failed",
			logger.Int("failed", stats.Failed),
			logger.Int("mismatched", stats.Mismatched),
			logger.Error(err),
		)
		os.Exit(1)
	}
}
