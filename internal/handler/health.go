package handler

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"
)

type queuePinger interface {
	Enabled() bool
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db    *sql.DB
	queue queuePinger
}

func NewHealthHandler(db *sql.DB, queue queuePinger) *HealthHandler {
	return &HealthHandler{db: db, queue: queue}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness fails only on the database. The settlement queue is optional and
// reported as "disabled" or "degraded" without failing the check.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok", "queue": "disabled"}
	httpStatus := http.StatusOK

	if err := h.db.PingContext(r.Context()); err != nil {
		slog.Warn("readiness check failed: database unreachable", "error", err)
		checks["database"] = "down"
		httpStatus = http.StatusServiceUnavailable
	}

	if h.queue != nil && h.queue.Enabled() {
		checks["queue"] = "ok"
		if err := h.queue.Ping(r.Context()); err != nil {
			slog.Warn("settlement queue unreachable", "error", err)
			checks["queue"] = "degraded"
		}
	}

	overallStatus := "ok"
	if httpStatus != http.StatusOK {
		overallStatus = "down"
	}

	RespondJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
