// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/hookscore/internal/domain/signature"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Ingester
	LeaderboardDependencies
	RepositoryDependencies
	StatsProvider
}

// Config carries the handler settings taken from process configuration.
type Config struct {
	WebhookSecret       string
	MaxPayloadBytes     int64
	MaxLeaderboardLimit int
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler       *HealthHandler
	webhookHandler      *WebhookHandler
	leaderboardHandler  *LeaderboardHandler
	repositoriesHandler *RepositoriesHandler
	statsHandler        *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, cfg Config) *Server {
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = 25 << 20
	}
	return &Server{
		healthHandler:       NewHealthHandler(),
		webhookHandler:      NewWebhookHandler(deps, signature.NewVerifier(cfg.WebhookSecret), cfg.MaxPayloadBytes),
		leaderboardHandler:  NewLeaderboardHandler(deps, cfg.MaxLeaderboardLimit),
		repositoriesHandler: NewRepositoriesHandler(deps),
		statsHandler:        NewStatsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/webhooks/github", MetricsMiddleware(s.webhookHandler.HandleWebhook, "webhook"))
	mux.HandleFunc("/contributors", MetricsMiddleware(s.leaderboardHandler.HandleGetContributors, "contributors"))
	mux.HandleFunc("/repositories", MetricsMiddleware(s.repositoriesHandler.HandleGetRepositories, "repositories"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v before touching the response so an unencodable value
// becomes a 500 rather than a truncated 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Code: "internal_error", Message: http.StatusText(status)})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// writeError never leaks the wrapped cause; the message is the status text
// unless err is a bare kind.
func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	var opErr *OpError
	if errors.As(err, &opErr) && opErr.Err == nil && opErr.Kind != nil {
		msg = opErr.Kind.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
