// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

// Package auth provides the authentication layer: HTTP Basic against the
// configured admin credentials, JWT bearer tokens for browser sessions,
// and per-IP login throttling.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/photarium/internal/config"
	"github.com/tomtom215/photarium/internal/logging"
)

// Auth modes accepted by security.auth_mode.
const (
	ModeNone  = "none"
	ModeBasic = "basic"
	ModeJWT   = "jwt"
)

var (
	// ErrNoCredentials means the request carried no credentials for the
	// scheme being tried; the caller may try another scheme.
	ErrNoCredentials = errors.New("auth: no credentials")

	// ErrInvalidCredentials means credentials were presented and rejected.
	// Unlike ErrNoCredentials this is terminal; no further scheme is tried.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// Service bundles the mechanisms selected by the security configuration.
// In "none" mode every check passes; "basic" verifies the admin credentials
// per request; "jwt" additionally issues bearer tokens through the login
// endpoint, throttled per client IP.
type Service struct {
	mode         string
	protectReads bool
	basic        *BasicAuthManager
	jwt          *JWTManager
	limiter      *LoginLimiter
}

// NewService builds the Service for the configured mode. Configuration
// errors (missing admin hash, short JWT secret) surface here rather than
// on the first request.
func NewService(cfg config.SecurityConfig) (*Service, error) {
	s := &Service{mode: cfg.AuthMode, protectReads: cfg.ProtectReads}
	if s.mode == "" {
		s.mode = ModeNone
	}
	if s.mode == ModeNone {
		return s, nil
	}

	basic, err := NewBasicAuthManager(cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("basic auth: %w", err)
	}
	s.basic = basic

	if s.mode == ModeJWT {
		jm, err := NewJWTManager(cfg)
		if err != nil {
			return nil, fmt.Errorf("jwt: %w", err)
		}
		s.jwt = jm
		if !cfg.RateLimitDisabled {
			s.limiter = NewLoginLimiter(cfg.RateLimitReqs, cfg.RateLimitWindow)
		}
	}

	logging.Info().
		Str("mode", s.mode).
		Bool("protect_reads", s.protectReads).
		Bool("login_limiter", s.limiter != nil).
		Msg("Authentication configured")

	return s, nil
}

// Enabled reports whether requests must authenticate.
func (s *Service) Enabled() bool { return s.mode != ModeNone }

// Mode returns the configured auth mode.
func (s *Service) Mode() string { return s.mode }

// ProtectReads reports whether read endpoints also require auth.
func (s *Service) ProtectReads() bool { return s.protectReads }

// TokenLogin reports whether the login endpoint should be mounted.
func (s *Service) TokenLogin() bool { return s.jwt != nil }

// AllowLogin reports whether the client IP may attempt another login.
func (s *Service) AllowLogin(ip string) bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow(ip)
}

// VerifyPassword checks a login username/password pair.
func (s *Service) VerifyPassword(username, password string) error {
	if s.basic == nil {
		return fmt.Errorf("%w: password login disabled", ErrInvalidCredentials)
	}
	return s.basic.Verify(username, password)
}

// IssueToken signs a bearer token after a successful login.
func (s *Service) IssueToken(username string, rememberMe bool) (string, time.Time, error) {
	if s.jwt == nil {
		return "", time.Time{}, fmt.Errorf("token login requires auth_mode=jwt")
	}
	return s.jwt.GenerateToken(username, rememberMe)
}

// Close releases background resources.
func (s *Service) Close() {
	if s.limiter != nil {
		s.limiter.Close()
	}
}
