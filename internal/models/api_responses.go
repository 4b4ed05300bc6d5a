// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package models

import (
	"time"
)

// Error codes carried in APIError.Code. Clients branch on these rather than
// on HTTP status alone.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeTimeout            = "TIMEOUT"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// APIResponse is the envelope every HTTP endpoint returns. Exactly one of
// Data and Error is populated, matching Success.
//
// Example successful response:
//
//	{
//	  "success": true,
//	  "data": [{"id": "NS82OC82Nw", "count": 42, ...}],
//	  "meta": {"timestamp": "2026-08-21T12:00:00Z", "duration_ms": 4}
//	}
//
// Example error response:
//
//	{
//	  "success": false,
//	  "error": {
//	    "code": "BAD_REQUEST",
//	    "message": "zoom must be a zoom level between 0 and 22",
//	    "request_id": "d2f81c0e"
//	  },
//	  "meta": {"timestamp": "2026-08-21T12:00:00Z", "duration_ms": 0}
//	}
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    Meta        `json:"meta"`
}

// Meta carries per-response observability fields: the server time the
// response was generated and how long the handler spent producing it.
type Meta struct {
	Timestamp  time.Time `json:"timestamp"`
	DurationMS int64     `json:"duration_ms"`
}

// APIError is the structured error body. Code is machine-readable (one of
// the ErrCode constants), Message is for humans, Details carries optional
// field-level context, and RequestID echoes the request correlation id so
// a client report can be matched to server logs.
type APIError struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// LoginRequest is the body of POST /api/v1/auth/login. RememberMe extends
// the token lifetime from the standard session to thirty days.
type LoginRequest struct {
	Username   string `json:"username" validate:"required,min=1,max=128"`
	Password   string `json:"password" validate:"required,min=1,max=1024"`
	RememberMe bool   `json:"remember_me"`
}

// LoginResponse returns the signed JWT. The token also rides an HTTP-only
// cookie, so browser clients never touch it from script.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Username  string    `json:"username"`
}

// ClusterMembersResponse lists the photo ids inside one cluster cell.
// PhotoIDs always carries the complete membership; Photos hydrates the
// leading ids up to the caller's page limit so map popups can render
// without a second round trip.
type ClusterMembersResponse struct {
	ClusterID string        `json:"cluster_id"`
	PhotoIDs  []int64       `json:"photo_ids"`
	Photos    []PhotoRecord `json:"photos,omitempty"`
	Total     int           `json:"total"`
}

// HealthStatus is the aggregate health document returned by the full
// health endpoint. Status is "ok" or "degraded".
type HealthStatus struct {
	Status           string  `json:"status"`
	Version          string  `json:"version"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	CatalogConnected bool    `json:"catalog_connected"`
	GridPoints       int     `json:"grid_points"`
	GridGeneration   int64   `json:"grid_generation"`
	Roots            int     `json:"roots"`
	WSClients        int     `json:"ws_clients"`
}
