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
		// Health and readiness (no auth; used by orchestration)
		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)

		// Connection registry endpoints. Caller authentication happens at
		// the platform gateway in front of this service.
		r.Route("/tenants/{tenant}/devices/{device}", func(r chi.Router) {
			r.Get("/last-known-gateway", s.handleGetLastKnownGateway)
			r.Put("/last-known-gateway/{gateway}", s.handleSetLastKnownGateway)

			r.Put("/adapter-instances/{instance}", s.handleSetAdapterInstance)
			r.Delete("/adapter-instances/{instance}", s.handleRemoveAdapterInstance)
			r.Post("/adapter-instances/lookup", s.handleLookupAdapterInstances)
		})
	})

	return r
}

// handleHealth returns the server health status. The service is alive
// exactly while this process responds; deeper checks live under /ready.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleReady runs the registered readiness checks and reports 503 when
// any dependency is unusable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	results, ready := s.health.Run(r.Context())

	status := http.StatusOK
	statusText := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		statusText = "not ready"
	}

	writeJSON(w, status, map[string]any{
		"status": statusText,
		"checks": results,
	})
}
