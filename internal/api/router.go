package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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

	// Health and metrics (no auth required)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Account endpoints (no auth required)
	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.Get("/auth/confirm-email", s.handleConfirmEmail)
	r.Post("/auth/forgot-password", s.handleForgotPassword)
	r.Post("/auth/reset-password", s.handleResetPassword)

	// OAuth2 endpoints for Alexa account linking (client-authenticated)
	r.Get("/oauth/authorize", s.handleAuthorize)
	r.Post("/oauth/token", s.handleToken)

	// Smart Home directive endpoint (credential travels in the envelope)
	r.Post("/alexa", s.handleAlexa)

	// Device endpoints (bearer token required)
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleCreateDevice)
			r.Patch("/{id}/power", s.handleUpdatePower)
		})

		r.Get("/audit", s.handleListAudit)
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
