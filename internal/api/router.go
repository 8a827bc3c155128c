package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Device-facing ingestion (X-API-Key auth)
		r.Group(func(r chi.Router) {
			r.Use(s.deviceAuthMiddleware)

			r.Post("/power-data", s.handleIngestReading)
			r.Post("/anomaly-events", s.handleIngestAnomaly)
		})

		// Viewer-facing routes (Bearer JWT auth)
		r.Group(func(r chi.Router) {
			r.Use(s.viewerAuthMiddleware)

			r.Post("/anomaly-events/{id}/resolve", s.handleResolveAnomaly)

			r.Route("/events", func(r chi.Router) {
				r.Get("/stream", s.handleEventStream)
				r.Get("/ws", s.handleEventsWS)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
