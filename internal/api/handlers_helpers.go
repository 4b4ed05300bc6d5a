// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/photarium/internal/catalog"
	"github.com/tomtom215/photarium/internal/cluster"
	"github.com/tomtom215/photarium/internal/indexer"
	"github.com/tomtom215/photarium/internal/logging"
	"github.com/tomtom215/photarium/internal/models"
	"github.com/tomtom215/photarium/internal/validation"
)

// requestMeta builds the envelope Meta from the start time stamped by
// the RequestID middleware. Requests served outside the router (tests
// calling handlers directly) report zero duration.
func requestMeta(r *http.Request) models.Meta {
	m := models.Meta{Timestamp: time.Now().UTC()}
	if start, ok := r.Context().Value(startTimeKey).(time.Time); ok {
		m.DurationMS = time.Since(start).Milliseconds()
	}
	return m
}

// respondJSON writes the envelope. Successful GET responses are
// cacheable for a minute and carry a content ETag; everything else is
// marked no-store.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, resp models.APIResponse) {
	body, err := json.Marshal(resp)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal api response")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"INTERNAL_ERROR","message":"response encoding failed"}}`))
		return
	}

	header := w.Header()
	header.Set("Content-Type", "application/json; charset=utf-8")
	header.Add("Vary", "Accept-Encoding")
	if resp.Success && r.Method == http.MethodGet {
		header.Set("Cache-Control", "public, max-age=60")
		header.Set("ETag", generateETag(body))
	} else {
		header.Set("Cache-Control", "no-store")
	}

	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Debug().Err(err).Msg("failed to write api response")
	}
}

// respondData wraps data in a successful envelope.
func respondData(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	respondJSON(w, r, status, models.APIResponse{
		Success: true,
		Data:    data,
		Meta:    requestMeta(r),
	})
}

// respondError writes an error envelope and logs the underlying cause
// when one is supplied.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		logging.Warn().
			Err(err).
			Str("code", code).
			Str("method", r.Method).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Msg("request failed")
	}
	respondJSON(w, r, status, models.APIResponse{
		Success: false,
		Error: &models.APIError{
			Code:      code,
			Message:   message,
			RequestID: chimiddleware.GetReqID(r.Context()),
		},
		Meta: requestMeta(r),
	})
}

// respondAPIError writes a pre-built validation error.
func respondAPIError(w http.ResponseWriter, r *http.Request, status int, apiErr *models.APIError) {
	apiErr.RequestID = chimiddleware.GetReqID(r.Context())
	respondJSON(w, r, status, models.APIResponse{
		Success: false,
		Error:   apiErr,
		Meta:    requestMeta(r),
	})
}

// respondServiceError maps service sentinel errors onto HTTP statuses
// and envelope codes.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cluster.ErrInvalidQuery):
		respondError(w, r, http.StatusBadRequest, models.ErrCodeBadRequest, err.Error(), nil)
	case errors.Is(err, cluster.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		respondError(w, r, http.StatusNotFound, models.ErrCodeNotFound, "resource not found", nil)
	case errors.Is(err, cluster.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, http.StatusGatewayTimeout, models.ErrCodeTimeout, "query exceeded its deadline", err)
	case errors.Is(err, catalog.ErrConflict):
		respondError(w, r, http.StatusConflict, models.ErrCodeConflict, "resource already exists", err)
	case errors.Is(err, indexer.ErrRootGone):
		respondError(w, r, http.StatusBadRequest, models.ErrCodeBadRequest, "root path missing or not a directory", err)
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
	default:
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeInternal, "internal error", err)
	}
}

// validateRequest runs struct validation and converts failures into the
// envelope error shape.
func validateRequest(s interface{}) *models.APIError {
	if verr := validation.ValidateStruct(s); verr != nil {
		return verr.ToAPIError()
	}
	return nil
}

// getIntParam reads an integer query parameter, falling back to def on
// absence or junk.
func getIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// pathID parses the {id} chi path parameter. On junk it writes a 400
// and returns false.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeBadRequest,
			fmt.Sprintf("invalid id %q", sanitizeLogValue(raw)), nil)
		return 0, false
	}
	return id, true
}

// queryContext bounds a read handler by api.query_timeout. A timeout_ms
// query parameter may lower the bound but never raise it.
func (h *Handler) queryContext(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := h.cfg.API.QueryTimeout
	if ms := getIntParam(r, "timeout_ms", 0); ms > 0 {
		if d := time.Duration(ms) * time.Millisecond; timeout <= 0 || d < timeout {
			timeout = d
		}
	}
	if timeout <= 0 {
		return r.Context(), func() {}
	}
	return context.WithTimeout(r.Context(), timeout)
}

// generateETag hashes the response body with FNV-1a. Weak consistency
// is fine here; the map client only uses it for If-None-Match reloads.
func generateETag(body []byte) string {
	var hash uint32 = 2166136261
	for _, b := range body {
		hash ^= uint32(b)
		hash *= 16777619
	}
	return `"` + strconv.FormatUint(uint64(hash), 16) + `"`
}

// sanitizeLogValue strips control characters from attacker-influenced
// strings before they reach the log stream.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			fmt.Fprintf(&b, `\x%02x`, r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
