package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/netlabsug/campus-core/internal/auth"
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

		// Login (no auth required; the auth service rate-limits it)
		r.Post("/auth/login", s.handleLogin)

		// Logout is deliberately outside requireCapability: revoking an
		// expired or unknown token must still succeed.
		r.Post("/auth/logout", s.handleLogout)

		// Session introspection
		r.Group(func(r chi.Router) {
			r.Use(s.requireCapability(auth.CapDashboardView))
			r.Get("/auth/me", s.handleMe)
			r.Post("/auth/ws-ticket", s.handleWSTicket)
		})

		// Sensor feed
		r.Group(func(r chi.Router) {
			r.Use(s.requireCapability(auth.CapSensorsRead))
			r.Get("/sensors/latest", s.handleLatestReadings)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.requireCapability(auth.CapSensorsReadAll))
			r.Get("/sensors/{measurement}/history", s.handleReadingHistory)
		})

		// User administration
		r.Route("/users", func(r chi.Router) {
			r.Use(s.requireCapability(auth.CapUsersManage))
			r.Get("/", s.handleListUsers)
			r.Post("/", s.handleCreateUser)

			r.Route("/{username}", func(r chi.Router) {
				r.Delete("/", s.handleDeleteUser)
				r.Put("/role", s.handleChangeRole)
				r.Put("/password", s.handleResetPassword)
				r.Put("/enabled", s.handleSetEnabled)
			})
		})

		// Audit trail
		r.Group(func(r chi.Router) {
			r.Use(s.requireCapability(auth.CapAuditRead))
			r.Get("/audit", s.handleListAudit)
		})

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)
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
