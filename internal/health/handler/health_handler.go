// Package handler serves readiness for Kubernetes, load balancers, and CI.
package handler

import (
	"context"
	"net/http"
	"time"

	"chain-audit/backend/internal/httpx"
)

// Pinger is the minimal database interface for readiness checks (satisfied
// by *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

// NewHealthHandler returns a health handler. db may be nil; the database
// check is then skipped.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Register mounts the health route on mux.
func (h *HealthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/health", h.check)
}

// check reports 200 when the database answers a ping, 503 otherwise. A
// failing dependency is a payload, not an HTTP handler error.
func (h *HealthHandler) check(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	httpx.WriteJSON(w, code, map[string]any{
		"status": status,
		"time":   time.Now().UTC(),
	})
}
