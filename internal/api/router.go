package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Go-ku/zmapp/internal/auth"
)

// healthCheckTimeout bounds each dependency check in GET /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	r.Use(s.rateLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Public auth endpoints; login and register are throttled per IP.
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/refresh", s.handleRefresh)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/logout", s.handleLogout)
			r.Get("/auth/me", s.handleMe)
			r.Get("/auth/me/permissions", s.handleMyPermissions)
			r.Patch("/auth/me/password", s.handleChangePassword)

			// Staff management: landlords (ownership checked per staff member) and admins.
			r.Route("/staff", func(r chi.Router) {
				r.Use(s.requireRoles(auth.RoleLandlord))
				r.Get("/", s.handleListStaff)
				r.Put("/{id}/permissions", s.handleUpdateStaffPermissions)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireRoles(auth.RoleSystemAdmin))
				r.Patch("/users/{id}/active", s.handleSetUserActive)
				r.Post("/users/{id}/unlock", s.handleUnlockUser)
				r.Get("/audit", s.handleListAuditLogs)
			})
		})
	})

	return r
}

// handleHealth reports the server version and the state of each dependency.
// Any failing dependency turns the response into a 503. The endpoint is
// public, so failures are reported as "unavailable" and the cause is logged.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.health))
	status, code := "ok", http.StatusOK

	for name, checker := range s.health {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := checker.HealthCheck(ctx)
		cancel()
		if err != nil {
			s.logger.Warn("health check failed",
				"dependency", name,
				"error", err,
				"request_id", requestIDFromContext(r.Context()),
			)
			checks[name] = "unavailable"
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}
