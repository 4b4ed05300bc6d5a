// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/photarium/internal/auth"
	"github.com/tomtom215/photarium/internal/config"
	"github.com/tomtom215/photarium/internal/logging"
	"github.com/tomtom215/photarium/internal/middleware"
	"github.com/tomtom215/photarium/internal/models"
	ws "github.com/tomtom215/photarium/internal/websocket"
)

// Catalog is the slice of the photo catalog the HTTP layer reads.
type Catalog interface {
	Ping(ctx context.Context) error
	GetPhoto(ctx context.Context, id int64) (*models.PhotoRecord, error)
	GetPhotosByIDs(ctx context.Context, ids []int64) ([]models.PhotoRecord, error)
	ListRoots(ctx context.Context) ([]models.Root, error)
}

// ClusterService answers map viewport queries.
type ClusterService interface {
	GetClusters(ctx context.Context, viewport models.BoundingBox, zoom int) ([]models.ClusterCell, error)
	GetClusterMembers(ctx context.Context, id string) ([]int64, error)
}

// Library manages indexed roots and reports their progress.
type Library interface {
	AddRoot(ctx context.Context, path string) (*models.Root, error)
	RemoveRoot(ctx context.Context, rootID int64) error
	RescanRoot(ctx context.Context, rootID int64) error
	Progress(ctx context.Context, rootID int64) (models.IndexProgress, error)
}

// GridStats exposes the spatial index counters used by health reports.
type GridStats interface {
	Size() int
	Generation() int64
}

// ThumbStore resolves a photo id to its rendered thumbnail on disk.
type ThumbStore interface {
	ThumbPath(photoID int64) string
}

// Dependencies wires the concrete services into the handler set. Auth,
// Hub, and Grid may be nil; the affected endpoints degrade gracefully.
type Dependencies struct {
	Catalog  Catalog
	Clusters ClusterService
	Library  Library
	Grid     GridStats
	Thumbs   ThumbStore
	Auth     *auth.Service
	Hub      *ws.Hub
	Version  string
}

// Handler implements every HTTP endpoint.
type Handler struct {
	cfg       *config.Config
	catalog   Catalog
	clusters  ClusterService
	library   Library
	grid      GridStats
	thumbs    ThumbStore
	auth      *auth.Service
	hub       *ws.Hub
	perfMon   *middleware.PerformanceMonitor
	version   string
	startTime time.Time
}

// NewHandler creates the handler set.
func NewHandler(cfg *config.Config, deps Dependencies) *Handler {
	return &Handler{
		cfg:       cfg,
		catalog:   deps.Catalog,
		clusters:  deps.Clusters,
		library:   deps.Library,
		grid:      deps.Grid,
		thumbs:    deps.Thumbs,
		auth:      deps.Auth,
		hub:       deps.Hub,
		perfMon:   middleware.NewPerformanceMonitor(1000),
		version:   deps.Version,
		startTime: time.Now(),
	}
}

func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkWebSocketOrigin,
	}
}

// checkWebSocketOrigin applies the CORS origin list to the upgrade
// handshake. Requests without an Origin header are rejected; browsers
// always send one, so its absence means a non-browser client that
// should use the JSON endpoints instead.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().
			Str("remote", r.RemoteAddr).
			Msg("websocket upgrade rejected, missing origin header")
		return false
	}
	for _, allowed := range h.cfg.Security.CORSOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	logging.Warn().
		Str("origin", sanitizeLogValue(origin)).
		Msg("websocket upgrade rejected, origin not allowed")
	return false
}
