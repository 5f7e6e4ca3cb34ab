// Package api provides HTTP router setup.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/veritrust/veritrust/internal/analyze"
	"github.com/veritrust/veritrust/internal/auth"
	"github.com/veritrust/veritrust/internal/config"
	"github.com/veritrust/veritrust/internal/database"
	"github.com/veritrust/veritrust/internal/models"
	"github.com/veritrust/veritrust/internal/worker"
)

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg *config.Config, store database.Store, analyzer *analyze.Analyzer, authSvc *auth.Service, persister *worker.Persister) http.Handler {
	r := chi.NewRouter()

	handler := NewHandler(store, analyzer, authSvc, persister, cfg.Analysis.MaxUploadBytes)

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", handler.HealthCheck)
		r.Post("/auth/signup", handler.Signup)
		r.Post("/auth/login", handler.Login)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(authSvc))
			r.Use(RateLimitMiddleware(cfg.RateLimits.RequestsPerMinute))

			r.Post("/auth/logout", handler.Logout)
			r.Get("/auth/session", handler.Session)

			r.Post("/verify", handler.Verify)
			r.Get("/history", handler.History)
			r.Get("/stats", handler.Stats)
			r.Get("/results/{id}", handler.GetResult)
			r.Get("/export.csv", handler.ExportHistory)

			// Legal reference (lawyer and admin only)
			r.Group(func(r chi.Router) {
				r.Use(RequireRole(models.RoleLawyer, models.RoleAdmin))
				r.Get("/legal/statutes", handler.ListStatutes)
				r.Get("/legal/suggestions/{id}", handler.SuggestStatutes)
			})

			// Admin routes
			r.Group(func(r chi.Router) {
				r.Use(RequireRole(models.RoleAdmin))
				r.Get("/admin/overview", handler.AdminOverview)
				r.Get("/admin/reports", handler.AdminReports)
				r.Get("/admin/users", handler.AdminUsers)
				r.Get("/admin/export.csv", handler.AdminExport)
			})
		})
	})

	return r
}
