// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/photarium/internal/middleware"
)

// Routes assembles the HTTP surface. Route groups get their own rate
// limits: health is permissive for orchestrator probes, login is strict
// because it fronts bcrypt, reads follow the configured request rate,
// and root mutations sit on the tighter write limit.
func (h *Handler) Routes() http.Handler {
	mw := NewMiddleware(h.cfg)
	r := chi.NewRouter()

	// Global chain, applied to every route. CORS must be global so
	// OPTIONS preflight is answered before any group middleware.
	r.Use(mw.RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	authRequired := h.authMiddleware(true)
	authForReads := h.authMiddleware(h.auth != nil && h.auth.ProtectReads())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(mw.RateLimit(RateLimitHealth))
		r.Use(mw.SecurityHeaders())
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
		r.Get("/", h.Health)
	})

	if h.auth != nil && h.auth.TokenLogin() {
		r.Route("/api/v1/auth", func(r chi.Router) {
			r.Use(mw.SecurityHeaders())
			r.With(mw.RateLimit(RateLimitLogin)).Post("/login", h.Login)
			r.Post("/logout", h.Logout)
		})
	}

	// Read surface: map queries, photo lookups, progress reports.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit(mw.ReadLimit()))
		r.Use(mw.SecurityHeaders())
		r.Use(mw.Metrics())
		r.Use(chiMiddleware(h.perfMon.Middleware))
		r.Use(chiMiddleware(middleware.Compression))
		r.Use(authForReads)

		r.Get("/clusters", h.Clusters)
		r.Get("/clusters/{id}/members", h.ClusterMembers)
		r.Get("/photos/{id}", h.GetPhoto)
		r.Get("/photos/{id}/thumbnail", h.GetPhotoThumbnail)
		r.Get("/ws", h.WebSocket)
	})

	// Root management. Reads follow the read policy; mutations always
	// require auth when auth is on, under the tighter write limit.
	r.Route("/api/v1/roots", func(r chi.Router) {
		r.Use(mw.SecurityHeaders())
		r.Use(mw.Metrics())
		r.Use(chiMiddleware(h.perfMon.Middleware))

		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit(mw.ReadLimit()))
			r.Use(authForReads)
			r.Get("/", h.ListRoots)
			r.Get("/{id}/progress", h.RootProgress)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit(RateLimitWrite))
			r.Use(authRequired)
			r.Post("/", h.CreateRoot)
			r.Delete("/{id}", h.DeleteRoot)
			r.Post("/{id}/rescan", h.RescanRoot)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// authMiddleware returns RequireAuth when enforcement applies, otherwise
// a pass-through. Auth in "none" mode never blocks anything.
func (h *Handler) authMiddleware(enforce bool) func(http.Handler) http.Handler {
	if !enforce || h.auth == nil || !h.auth.Enabled() {
		return func(next http.Handler) http.Handler { return next }
	}
	return h.auth.RequireAuth
}
