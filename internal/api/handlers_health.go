// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/photarium/internal/models"
)

// healthProbeTimeout bounds the catalog ping inside readiness checks so
// a wedged database cannot hang the orchestrator's probe.
const healthProbeTimeout = 2 * time.Second

// HealthLive handles GET /api/v1/health/live. It answers 200 whenever
// the process can serve HTTP at all.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, map[string]interface{}{
		"alive":          true,
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles GET /api/v1/health/ready. Readiness requires a
// reachable catalog; 503 tells the orchestrator to keep traffic away.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	catalogUp := h.catalog != nil && h.catalog.Ping(ctx) == nil

	status := http.StatusOK
	state := "ready"
	if !catalogUp {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}

	respondData(w, r, status, map[string]interface{}{
		"status":            state,
		"catalog_connected": catalogUp,
		"ready_to_serve":    catalogUp,
		"uptime_seconds":    time.Since(h.startTime).Seconds(),
	})
}

// Health handles GET /api/v1/health: the full diagnostic document with
// index counters and request latency percentiles.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	status := models.HealthStatus{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	if h.catalog != nil {
		status.CatalogConnected = h.catalog.Ping(ctx) == nil
		if roots, err := h.catalog.ListRoots(ctx); err == nil {
			status.Roots = len(roots)
		}
	}
	if !status.CatalogConnected {
		status.Status = "degraded"
	}
	if h.grid != nil {
		status.GridPoints = h.grid.Size()
		status.GridGeneration = h.grid.Generation()
	}
	if h.hub != nil {
		status.WSClients = h.hub.ClientCount()
	}

	httpStatus := http.StatusOK
	if status.Status != "ok" {
		httpStatus = http.StatusServiceUnavailable
	}

	respondData(w, r, httpStatus, map[string]interface{}{
		"health":      status,
		"performance": h.perfMon.Stats(),
	})
}
