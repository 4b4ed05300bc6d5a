// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package api

import (
	"context"
	"io"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/photarium/internal/logging"
	"github.com/tomtom215/photarium/internal/models"
)

// maxBodyBytes caps JSON request bodies. Root paths and login forms are
// tiny; anything larger is abuse.
const maxBodyBytes = 16 * 1024

// ListRoots handles GET /api/v1/roots.
func (h *Handler) ListRoots(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.queryContext(r)
	defer cancel()

	roots, err := h.catalog.ListRoots(ctx)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, roots)
}

// CreateRoot handles POST /api/v1/roots. The root is registered, a
// worker starts scanning it, and the persisted record returns with 201.
func (h *Handler) CreateRoot(w http.ResponseWriter, r *http.Request) {
	var req CreateRootRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeBadRequest, "invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return
	}

	root, err := h.library.AddRoot(r.Context(), req.Path)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	logging.Info().
		Int64("root_id", root.ID).
		Str("path", sanitizeLogValue(root.Path)).
		Msg("library root created")
	respondData(w, r, http.StatusCreated, root)
}

// DeleteRoot handles DELETE /api/v1/roots/{id}. The worker stops, the
// root's records leave the catalog and the spatial index.
func (h *Handler) DeleteRoot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.library.RemoveRoot(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}

	logging.Info().Int64("root_id", id).Msg("library root removed")
	respondData(w, r, http.StatusOK, map[string]interface{}{
		"root_id": id,
		"deleted": true,
	})
}

// RootProgress handles GET /api/v1/roots/{id}/progress.
func (h *Handler) RootProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	progress, err := h.library.Progress(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, progress)
}

// RescanRoot handles POST /api/v1/roots/{id}/rescan. A full cycle can
// take minutes on a large library, so the scan runs detached from the
// request and the handler answers 202 immediately. This is also the
// recovery path for roots stuck in the error state.
func (h *Handler) RescanRoot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := h.library.Progress(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}

	go func() {
		if err := h.library.RescanRoot(context.Background(), id); err != nil {
			logging.Error().Err(err).Int64("root_id", id).Msg("rescan failed")
		}
	}()

	respondData(w, r, http.StatusAccepted, map[string]interface{}{
		"root_id": id,
		"message": "rescan started",
	})
}
