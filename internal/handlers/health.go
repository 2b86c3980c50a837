package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/commune/backend/internal/models"
)

// Pinger is a dependency the health check probes.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports whether the service can reach its dependencies.
type HealthHandler struct {
	deps map[string]Pinger
}

// NewHealthHandler creates a HealthHandler probing deps by name.
func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{deps: deps}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, dep := range h.deps {
		if err := dep.PingContext(ctx); err != nil {
			writeErrorWithCause(r.Context(), w, http.StatusServiceUnavailable, name+" unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, models.HealthResponse{Status: "ok"})
}
