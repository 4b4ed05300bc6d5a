// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/tomtom215/photarium/internal/models"
)

type contextKey string

const claimsContextKey contextKey = "auth-claims"

// TokenCookieName is the HTTP-only cookie carrying the bearer token for
// browser clients.
const TokenCookieName = "photarium_token"

// GetClaims returns the authenticated claims stored by RequireAuth.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}

// RequireAuth enforces authentication when a mode is configured. Schemes
// are tried in order: bearer token, basic credentials, token cookie. A
// scheme that finds no credentials yields to the next; credentials that
// are presented and rejected fail immediately.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := s.authenticate(r)
		if err != nil {
			s.unauthorized(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Service) authenticate(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")

	if s.jwt != nil {
		if token, ok := bearerToken(header); ok {
			return s.jwt.ValidateToken(token)
		}
	}

	if s.basic != nil && strings.HasPrefix(header, "Basic ") {
		username, err := s.basic.ValidateCredentials(header)
		if err != nil {
			return nil, err
		}
		return &Claims{Username: username}, nil
	}

	if s.jwt != nil {
		if cookie, err := r.Cookie(TokenCookieName); err == nil && cookie.Value != "" {
			return s.jwt.ValidateToken(cookie.Value)
		}
	}

	return nil, ErrNoCredentials
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):], true
	}
	return "", false
}

// unauthorized writes the envelope 401. Basic mode advertises the challenge
// so command-line clients prompt for credentials.
func (s *Service) unauthorized(w http.ResponseWriter, r *http.Request) {
	if s.mode == ModeBasic && s.basic != nil {
		w.Header().Set("WWW-Authenticate", s.basic.WWWAuthenticate())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	resp := models.APIResponse{
		Success: false,
		Error: &models.APIError{
			Code:      models.ErrCodeUnauthorized,
			Message:   "authentication required",
			RequestID: middleware.GetReqID(r.Context()),
		},
		Meta: models.Meta{Timestamp: time.Now().UTC()},
	}
	_ = json.NewEncoder(w).Encode(resp)
}
