// Package router maps stored events onto domain processors.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/hookscore/internal/domain/model"
	"github.com/okian/hookscore/internal/domain/payload"
	"github.com/okian/hookscore/pkg/logger"
)

// Outcome describes how a routed event was handled. Every outcome marks the
// event processed; only a returned error leaves it for retry.
type Outcome string

const (
	// Processed means the processor persisted its entities.
	Processed Outcome = "processed"
	// Skipped means a referenced entity was unknown or the payload was empty.
	Skipped Outcome = "skipped"
	// Ignored means the event type has no processor.
	Ignored Outcome = "ignored"
)

// Store is the persistence used by the processors.
type Store interface {
	FindRepositoryByGitHubID(ctx context.Context, githubID int64) (*model.Repository, error)
	FindPullRequestByGitHubID(ctx context.Context, githubID int64) (*model.PullRequest, error)
	UpsertPullRequest(ctx context.Context, pr *model.PullRequest) error
	UpsertReview(ctx context.Context, review *model.Review) error
}

// Scorer recomputes a contributor score after new activity.
type Scorer interface {
	Recompute(ctx context.Context, contributor, repositoryID string) (*model.ContributorScore, error)
}

// Option applies a configuration option to the Router.
type Option func(*Router)

// WithLogger sets the router logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock sets the time source used when a payload omits timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// Router dispatches stored events by type.
type Router struct {
	store  Store
	scorer Scorer
	log    logger.Logger
	now    func() time.Time
}

// New creates a Router.
func New(store Store, scorer Scorer, opts ...Option) *Router {
	r := &Router{store: store, scorer: scorer, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Named("router")
	}
	return r
}

// Route parses the stored payload and invokes the matching processor.
// Malformed payloads are returned as errors wrapping payload.ErrMalformed.
func (r *Router) Route(ctx context.Context, ev *model.InboundEvent) (Outcome, error) {
	parsed, err := payload.Parse(ev.EventType, ev.Payload)
	if err != nil {
		return "", fmt.Errorf("event %s: %w", ev.ID, err)
	}

	log := r.log.With(
		logger.String("event_id", ev.ID),
		logger.String("delivery_id", ev.DeliveryID),
		logger.String("event_type", ev.EventType),
	)

	switch p := parsed.(type) {
	case payload.PullRequestEvent:
		return r.pullRequest(ctx, log, p)
	case payload.PushEvent:
		return r.push(ctx, log, p)
	case payload.ReviewEvent:
		return r.review(ctx, log, p)
	default:
		log.Info(ctx, "unsupported event type")
		return Ignored, nil
	}
}
