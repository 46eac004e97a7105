package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

// Pinger is anything whose reachability can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports process, database and session store health.
type HealthHandler struct {
	db       Pinger
	sessions Pinger
	log      *zap.Logger
}

// NewHealthHandler constructs a HealthHandler. sessions is nil when
// sessions are kept in process.
func NewHealthHandler(db, sessions Pinger, log *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, sessions: sessions, log: log}
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	body := map[string]string{"status": "ok", "database": "ok", "sessions": "memory"}

	if err := h.db.Ping(ctx); err != nil {
		h.log.Warn("health check: database unreachable", zap.Error(err))
		status = http.StatusServiceUnavailable
		body["database"] = "unavailable"
	}
	if h.sessions != nil {
		body["sessions"] = "ok"
		if err := h.sessions.Ping(ctx); err != nil {
			h.log.Warn("health check: session store unreachable", zap.Error(err))
			status = http.StatusServiceUnavailable
			body["sessions"] = "unavailable"
		}
	}

	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}
