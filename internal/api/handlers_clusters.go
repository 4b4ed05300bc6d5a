// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/photarium/internal/models"
)

// Clusters handles GET /api/v1/clusters?bbox=w,s,e,n&zoom=z.
// It returns the cluster cells covering the viewport at the given zoom.
func (h *Handler) Clusters(w http.ResponseWriter, r *http.Request) {
	req := ClustersRequest{
		BBox: r.URL.Query().Get("bbox"),
		Zoom: getIntParam(r, "zoom", -1),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return
	}

	viewport, err := models.ParseBoundingBox(req.BBox)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeBadRequest, err.Error(), nil)
		return
	}

	ctx, cancel := h.queryContext(r)
	defer cancel()

	cells, err := h.clusters.GetClusters(ctx, viewport, req.Zoom)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, cells)
}

// ClusterMembers handles GET /api/v1/clusters/{id}/members.
// The response always lists every member photo id; the leading ids are
// hydrated into full records up to the limit parameter.
func (h *Handler) ClusterMembers(w http.ResponseWriter, r *http.Request) {
	req := ClusterMembersRequest{
		ID:    chi.URLParam(r, "id"),
		Limit: getIntParam(r, "limit", h.cfg.API.DefaultPageSize),
	}
	if max := h.cfg.API.MaxPageSize; max > 0 && req.Limit > max {
		req.Limit = max
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return
	}

	ctx, cancel := h.queryContext(r)
	defer cancel()

	ids, err := h.clusters.GetClusterMembers(ctx, req.ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	resp := models.ClusterMembersResponse{
		ClusterID: req.ID,
		PhotoIDs:  ids,
		Total:     len(ids),
	}

	hydrate := ids
	if len(hydrate) > req.Limit {
		hydrate = hydrate[:req.Limit]
	}
	if len(hydrate) > 0 {
		photos, err := h.catalog.GetPhotosByIDs(ctx, hydrate)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		resp.Photos = photos
	}

	respondData(w, r, http.StatusOK, resp)
}
