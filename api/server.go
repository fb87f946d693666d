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
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/personnel/*      Live roster management
  /api/aggregates/*     Business-day roll-ups
  /api/snapshots/*      Frozen per-person history
  /api/admin/*          Manual job triggers, audit trail
  /api/scenarios/*      Demo scenarios
  /api/reset            Database reset (dev only)
  /api/health           Liveness

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
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
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Personnel routes
		r.Route("/personnel", func(r chi.Router) {
			r.Get("/", h.ListPersonnel)
			r.Post("/", h.CreatePerson)
			r.Get("/{id}", h.GetPerson)
			r.Put("/{id}/status", h.SetStatus)
			r.Delete("/{id}", h.DeletePerson)
		})

		// Aggregate routes
		r.Route("/aggregates", func(r chi.Router) {
			r.Get("/", h.ListAggregates)
			r.Get("/current", h.GetCurrentAggregate)
			r.Get("/{date}", h.GetAggregate)
		})

		// Snapshot routes
		r.Route("/snapshots", func(r chi.Router) {
			r.Get("/{date}", h.ListSnapshots)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/finalize", h.TriggerFinalize)
			r.Post("/snapshot", h.TriggerSnapshot)
			r.Get("/runs", h.ListRuns)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		// Dev reset
		r.Post("/reset", h.ResetDatabase)

		// Health check
		r.Get("/health", h.Health)
	})

	return r
}
