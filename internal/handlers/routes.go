package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Timeout(60 * time.Second))

	// Static files (served from embedded filesystem)
	if h.staticServer != nil {
		r.Handle("/static/*", http.StripPrefix("/static/", h.staticServer))
	}

	// WebSocket
	if h.Hub != nil {
		r.Get("/ws", h.Hub.ServeWs)
	}

	// Auth routes (public)
	r.Get("/login", h.handleLoginPage)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	// Dashboard pages (protected)
	r.Group(func(r chi.Router) {
		r.Use(h.Auth.RequireAuth)
		r.Get("/", h.handleDashboardPage)
		r.Get("/courses", h.handleCoursesPage)
		r.Get("/history", h.handleHistoryPage)
		r.Get("/settings", h.handleSettingsPage)
	})

	// API (protected)
	r.Group(func(r chi.Router) {
		r.Use(h.Auth.RequireAuthAPI)

		// Catalog
		r.Get("/api/courses", h.handleListCourses)
		r.Post("/api/courses", h.handleCreateCourse)
		r.Post("/api/courses/import", h.handleImportCourses)
		r.Get("/api/courses/export", h.handleExportCourses)
		r.Get("/api/courses/{code}", h.handleGetCourse)
		r.Put("/api/courses/{code}", h.handleUpdateCourse)
		r.Delete("/api/courses/{code}", h.handleDeleteCourse)
		r.Post("/api/courses/{code}/move", h.handleMoveCourse)

		// Run control
		r.Get("/api/run/status", h.handleRunStatus)
		r.Post("/api/run/start", h.handleStartRun)
		r.Post("/api/run/stop", h.handleStopRun)
		r.Post("/api/run/schedule", h.handleScheduleRun)
		r.Delete("/api/run/schedule", h.handleUnscheduleRun)

		// History
		r.Get("/api/runs", h.handleListRuns)
		r.Get("/api/runs/{id}", h.handleGetRun)
		r.Get("/api/runs/{id}/results.csv", h.handleExportRunResults)

		// Settings
		r.Get("/api/sessions", h.handleListSessions)
		r.Get("/api/settings", h.handleGetSettings)
		r.Post("/api/settings", h.handleUpdateSettings)
		r.Put("/api/settings", h.handleUpdateSettings)

		// Database Management
		r.Post("/api/reset-database", h.handleResetDatabase)

		// QR Codes
		r.Get("/api/dashboard-qr", h.handleDashboardQR)
	})

	return r
}
