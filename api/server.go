/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for dashboards

ROUTE GROUPS:
  /api/runs/*            Run ingest and snapshot reads
  /api/reconcile         Full reconciliation pass
  /api/reconciliation/*  Match results and operator report
  /api/changes           Status change log
  /api/anomalies         Usage anomaly log
  /api/baselines/*       Baseline reads and recompute
  /api/summary           Per-invocation digest

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Run ingest and snapshot reads
		r.Route("/runs", func(r chi.Router) {
			r.Post("/scheduled", h.IngestScheduledRun)
			r.Get("/scheduled", h.ListScheduledRuns)
			r.Post("/actual", h.IngestActualRun)
			r.Get("/actual", h.ListActualRuns)
		})

		// Reconciliation
		r.Post("/reconcile", h.Reconcile)
		r.Route("/reconciliation", func(r chi.Router) {
			r.Get("/", h.GetReconciliation)
			r.Get("/report", h.GetReconciliationReport)
		})
		r.Get("/summary", h.GetSummary)

		// Detection logs
		r.Get("/changes", h.ListStatusChanges)
		r.Get("/anomalies", h.ListAnomalies)

		// Baselines
		r.Route("/baselines", func(r chi.Router) {
			r.Get("/", h.ListBaselines)
			r.Get("/{zone}", h.GetBaseline)
			r.Post("/recompute", h.RecomputeBaselines)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
