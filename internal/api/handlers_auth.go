// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package api

import (
	"errors"
	"io"
	"net"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/photarium/internal/auth"
	"github.com/tomtom215/photarium/internal/logging"
	"github.com/tomtom215/photarium/internal/models"
)

// Login handles POST /api/v1/auth/login. On success the signed token is
// returned in the body and mirrored into an HTTP-only cookie so browser
// clients never handle it from script. The route is only mounted when
// auth_mode=jwt; the availability check below covers direct dispatch.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil || !h.auth.TokenLogin() {
		respondError(w, r, http.StatusServiceUnavailable, models.ErrCodeServiceUnavailable,
			"token login requires auth_mode=jwt", nil)
		return
	}

	if !h.auth.AllowLogin(clientIP(r)) {
		logging.Warn().
			Str("remote", sanitizeLogValue(clientIP(r))).
			Msg("login attempt rate limited")
		respondError(w, r, http.StatusTooManyRequests, models.ErrCodeRateLimited,
			"too many login attempts, retry later", nil)
		return
	}

	var req models.LoginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeBadRequest, "invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return
	}

	if err := h.auth.VerifyPassword(req.Username, req.Password); err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			logging.Error().Err(err).Msg("password verification failed")
		}
		respondError(w, r, http.StatusUnauthorized, models.ErrCodeUnauthorized,
			"invalid username or password", nil)
		return
	}

	token, expiresAt, err := h.auth.IssueToken(req.Username, req.RememberMe)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeInternal,
			"failed to issue token", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	logging.Info().
		Str("username", sanitizeLogValue(req.Username)).
		Bool("remember_me", req.RememberMe).
		Msg("login succeeded")

	respondData(w, r, http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Username:  req.Username,
	})
}

// Logout handles POST /api/v1/auth/logout. Tokens are stateless, so
// logout just expires the cookie; a stolen bearer token stays valid
// until its own expiry.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	respondData(w, r, http.StatusOK, map[string]interface{}{"logged_out": true})
}

// clientIP extracts the peer address without the port. The RealIP
// middleware has already folded X-Forwarded-For into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
