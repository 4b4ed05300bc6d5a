// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package api

import (
	"net/http"

	"github.com/tomtom215/photarium/internal/logging"
	"github.com/tomtom215/photarium/internal/models"
	ws "github.com/tomtom215/photarium/internal/websocket"
)

// WebSocket handles GET /api/v1/ws. Connected clients receive indexing
// progress and thumbnail status events as they happen.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		logging.Warn().Msg("websocket connection rejected, hub not running")
		respondError(w, r, http.StatusServiceUnavailable, models.ErrCodeServiceUnavailable,
			"websocket service unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logging.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}
