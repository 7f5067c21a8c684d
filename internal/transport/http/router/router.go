package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/baechuer/orderflow/internal/domain"
	"github.com/baechuer/orderflow/internal/metrics"
	"github.com/baechuer/orderflow/internal/transport/http/handlers"
	ourmw "github.com/baechuer/orderflow/internal/transport/http/middleware"
	"github.com/baechuer/orderflow/internal/transport/http/response"
)

// New wires the full middleware chain and every route this service serves.
func New(orders *handlers.OrdersHandler, health *handlers.HealthHandler, m *metrics.Metrics, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(ourmw.RequestID)
	r.Use(ourmw.Metrics(m))
	r.Use(ourmw.SecurityHeaders)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(ourmw.AccessLog(log))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Err(w, r, domain.ErrNotFound("route not found"))
	})

	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/v1/orders/validate", orders.Validate)
	r.Post("/api/v1/orders", orders.Create)
	r.Get("/api/v1/orders/{id}", orders.Get)

	return r
}
