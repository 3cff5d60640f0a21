package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/repohandler/repohandler/internal/api/response"
)

const pingTimeout = 2 * time.Second

// StorePinger checks document store connectivity.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	store   StorePinger
	backend string
	version string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(store StorePinger, backend, version string) *HealthHandler {
	return &HealthHandler{
		store:   store,
		backend: backend,
		version: version,
	}
}

type storeStatus struct {
	Backend   string `json:"backend"`
	Connected bool   `json:"connected"`
}

type healthData struct {
	Status  string      `json:"status"`
	Version string      `json:"version"`
	Store   storeStatus `json:"store"`
}

// ServeHTTP handles the health check request. A failing store ping reports
// "degraded", still with status 200.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	status := "healthy"
	connected := h.store.Ping(ctx) == nil
	if !connected {
		status = "degraded"
	}

	response.JSON(w, http.StatusOK, healthData{
		Status:  status,
		Version: h.version,
		Store: storeStatus{
			Backend:   h.backend,
			Connected: connected,
		},
	})
}

type rootData struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Root handles GET /.
func Root(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, rootData{Message: "RepoHandler API", Status: "running"})
}
