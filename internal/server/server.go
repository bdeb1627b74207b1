package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	httpmiddleware "github.com/queuehall/queuehall/internal/http"
	"github.com/queuehall/queuehall/internal/service"
	"github.com/queuehall/queuehall/internal/telemetry"
)

// Server exposes the service over a JSON HTTP API. This is operational
// glue for bots and dashboards, not a public surface.
type Server struct {
	svc      *service.Service
	metrics  *telemetry.Metrics
	gatherer prometheus.Gatherer
}

// New creates a server around the service.
func New(svc *service.Service, metrics *telemetry.Metrics, gatherer prometheus.Gatherer) *Server {
	return &Server{svc: svc, metrics: metrics, gatherer: gatherer}
}

// Router builds the HTTP handler tree.
func (s *Server) Router(logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(httpmiddleware.RequestLogger(logger))
	r.Use(s.measure)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1/tenants/{tenant}", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Post("/arcades", s.handleAddArcade)
		r.Post("/updates", s.handleUpdateQueue)
		r.Get("/arcades/{query}/history", s.handleHistory)

		r.Get("/binding", s.handleGetBinding)
		r.Put("/binding", s.handleSetBinding)
		r.Delete("/binding", s.handleUnbind)

		r.Post("/reset", s.handleReset)

		r.Get("/allowlist", s.handleAllowList)
		r.Post("/allowlist", s.handleAllowListAdd)
		r.Delete("/allowlist", s.handleAllowListClear)
		r.Delete("/allowlist/{user}", s.handleAllowListRemove)

		r.Get("/report", s.handleReport)
		r.Get("/status", s.handleStatus)
	})

	return r
}

// measure records per-route request latency.
func (s *Server) measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(started).Seconds())
	})
}
