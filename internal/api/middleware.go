// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/photarium/internal/config"
	"github.com/tomtom215/photarium/internal/logging"
	"github.com/tomtom215/photarium/internal/metrics"
	"github.com/tomtom215/photarium/internal/models"
)

type ctxKey int

const startTimeKey ctxKey = iota

// RateLimitConfig bounds request volume for one route group.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Per-group limits. Login is strict because it fronts bcrypt; health is
// permissive because orchestrators poll it.
var (
	RateLimitLogin  = RateLimitConfig{Requests: 5, Window: 5 * time.Minute}
	RateLimitHealth = RateLimitConfig{Requests: 1000, Window: time.Minute}
	RateLimitWrite  = RateLimitConfig{Requests: 30, Window: time.Minute}
)

// Middleware builds the router's middleware chain from configuration.
type Middleware struct {
	cfg *config.Config
}

// NewMiddleware creates a middleware factory bound to cfg.
func NewMiddleware(cfg *config.Config) *Middleware {
	return &Middleware{cfg: cfg}
}

// ReadLimit derives the read-group limit from api.rate_limit_rps and
// api.rate_limit_burst: burst requests are allowed per burst/rps window,
// which averages to the configured rate while absorbing spikes.
func (m *Middleware) ReadLimit() RateLimitConfig {
	rps := m.cfg.API.RateLimitRPS
	if rps <= 0 {
		return RateLimitConfig{}
	}
	burst := m.cfg.API.RateLimitBurst
	if burst < rps {
		burst = rps
	}
	window := time.Duration(float64(burst) / float64(rps) * float64(time.Second))
	return RateLimitConfig{Requests: burst, Window: window}
}

// RateLimit returns an IP-keyed fixed-window limiter writing the
// standard 429 envelope. Disabled limits return a pass-through.
func (m *Middleware) RateLimit(rl RateLimitConfig) func(http.Handler) http.Handler {
	if m.cfg.Security.RateLimitDisabled || rl.Requests <= 0 || rl.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(rl.Requests, rl.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, r, http.StatusTooManyRequests, models.ErrCodeRateLimited,
				"rate limit exceeded, retry later", nil)
		}),
	)
}

// CORS builds the cross-origin policy from security.cors_origins.
// Credentials are only allowed with an explicit origin list; the
// wildcard plus credentials combination is rejected by browsers.
func (m *Middleware) CORS() func(http.Handler) http.Handler {
	origins := m.cfg.Security.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	wildcard := false
	for _, o := range origins {
		if o == "*" {
			wildcard = true
			break
		}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: !wildcard,
		MaxAge:           86400,
	})
}

// RequestID assigns or propagates X-Request-ID, echoes it on the
// response, stamps the handler start time, and enriches the logging
// context with request and correlation ids. chi's own RequestID runs
// inside the chain so chimiddleware.GetReqID sees the same value.
func (m *Middleware) RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		enrich := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logging.ContextWithRequestID(r.Context(), chimiddleware.GetReqID(r.Context()))
			ctx = logging.ContextWithNewCorrelationID(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
		chain := chimiddleware.RequestID(enrich)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = logging.GenerateRequestID()
				r.Header.Set("X-Request-ID", requestID)
			}
			w.Header().Set("X-Request-ID", requestID)
			ctx := context.WithValue(r.Context(), startTimeKey, time.Now())
			chain.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SecurityHeaders sets the browser hardening headers on API responses.
func (m *Middleware) SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Metrics observes request count, duration, and in-flight gauge. The
// endpoint label uses the chi route pattern rather than the raw path so
// /photos/123 and /photos/456 share one series.
func (m *Middleware) Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			metrics.TrackActiveRequest(true)
			defer metrics.TrackActiveRequest(false)

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			endpoint := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					endpoint = pattern
				}
			}
			metrics.RecordAPIRequest(r.Method, endpoint, strconv.Itoa(sw.status), time.Since(start))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// chiMiddleware bridges func(http.HandlerFunc) http.HandlerFunc
// middleware from the middleware package into chi's chain form.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
		})
	}
}
