// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package api

import (
	"net/http"
	"os"

	"github.com/tomtom215/photarium/internal/models"
)

// GetPhoto handles GET /api/v1/photos/{id}.
func (h *Handler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.queryContext(r)
	defer cancel()

	photo, err := h.catalog.GetPhoto(ctx, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, photo)
}

// GetPhotoThumbnail handles GET /api/v1/photos/{id}/thumbnail. It serves
// the rendered JPEG from the thumbnail store; 404 covers a missing photo,
// a render still pending, and a render that failed. Thumbnails are keyed
// by id and overwritten in place on content change, so a short client
// cache is safe.
func (h *Handler) GetPhotoThumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if h.thumbs == nil {
		respondError(w, r, http.StatusServiceUnavailable, models.ErrCodeServiceUnavailable,
			"thumbnail service disabled", nil)
		return
	}

	ctx, cancel := h.queryContext(r)
	defer cancel()

	photo, err := h.catalog.GetPhoto(ctx, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if photo.ThumbStatus != models.ThumbStatusReady {
		respondError(w, r, http.StatusNotFound, models.ErrCodeNotFound,
			"thumbnail not available", nil)
		return
	}

	path := h.thumbs.ThumbPath(id)
	if _, err := os.Stat(path); err != nil {
		respondError(w, r, http.StatusNotFound, models.ErrCodeNotFound,
			"thumbnail not available", nil)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeFile(w, r, path)
}
