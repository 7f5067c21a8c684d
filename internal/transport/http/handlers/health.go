package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"
)

// HealthHandler answers liveness and readiness probes. Healthz never
// touches the database — it only proves the process is up; Readyz pings
// the database so a load balancer can pull an instance that has lost its
// connection pool. Both return a bare text body, not a JSON envelope —
// matching the fixed scalar contract these probes have always had.
type HealthHandler struct {
	db *sql.DB
}

func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writePlainText(w, http.StatusOK, "ok")
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		writePlainText(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	writePlainText(w, http.StatusOK, "ready")
}

func writePlainText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
