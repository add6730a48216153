package api

import (
	"context"
	"net/http"

	"github.com/okian/hookscore/internal/domain/types"
)

// RepositoryDependencies lists known repositories.
type RepositoryDependencies interface {
	Repositories(ctx context.Context) ([]types.RepositorySummary, error)
}

// RepositoriesHandler handles repository listing requests.
type RepositoriesHandler struct {
	deps RepositoryDependencies
}

// NewRepositoriesHandler creates a new repositories handler.
func NewRepositoriesHandler(deps RepositoryDependencies) *RepositoriesHandler {
	return &RepositoriesHandler{deps: deps}
}

// HandleGetRepositories handles GET /repositories requests.
func (h *RepositoriesHandler) HandleGetRepositories(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_repositories"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	repos, err := h.deps.Repositories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	if repos == nil {
		repos = []types.RepositorySummary{}
	}
	writeJSON(w, http.StatusOK, repos)
}
