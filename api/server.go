/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, also attached to error logs
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the dashboard frontend

ROUTE GROUPS:
  /api/users/*          Punches, dashboards, sessions per user
  /api/legal/*          Rule table, hour validation, calculation preview
  /api/admin/*          Backfill and integrity
  /api/scenarios/*      Demo scenarios
  /                     Endpoint index

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

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

// NewRouter creates a new router with all routes configured. origins are
// the CORS origins allowed to call the API.
func NewRouter(h *Handler, origins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Route("/{id}", func(r chi.Router) {
				r.Post("/punches", h.RecordPunch)
				r.Get("/active-session", h.GetActiveSession)
				r.Get("/dashboard", h.GetDashboard)
				r.Get("/today", h.GetToday)
				r.Get("/week", h.GetWeek)
				r.Get("/month", h.GetMonth)
				r.Get("/charts", h.GetChart)
				r.Get("/integrity", h.CheckIntegrity)

				r.Route("/sessions", func(r chi.Router) {
					r.Get("/", h.ListSessions)
					r.Get("/{sessionID}", h.GetSession)
					r.Post("/{sessionID}/correct", h.CorrectSession)
					r.Post("/{sessionID}/incomplete", h.MarkIncomplete)
				})
			})
		})

		// Legal routes
		r.Route("/legal", func(r chi.Router) {
			r.Get("/info", h.GetLegalInfo)
			r.Post("/validate", h.ValidateHours)
			r.Post("/calculate", h.CalculatePreview)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/backfill", h.RunBackfill)
			r.Get("/backfill/runs", h.ListBackfillRuns)
			r.Get("/integrity", h.ListIntegrityReports)
			r.Post("/integrity/run", h.TriggerIntegrityCheck)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service": "worktime-engine",
			"endpoints": []string{
				"POST /api/users/{id}/punches",
				"GET  /api/users/{id}/dashboard",
				"GET  /api/users/{id}/sessions",
				"GET  /api/legal/info",
				"POST /api/admin/backfill",
				"GET  /api/scenarios",
			},
		})
	})

	return r
}
