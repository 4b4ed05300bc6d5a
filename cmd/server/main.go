// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/photarium/internal/api"
	"github.com/tomtom215/photarium/internal/auth"
	"github.com/tomtom215/photarium/internal/catalog"
	"github.com/tomtom215/photarium/internal/cluster"
	"github.com/tomtom215/photarium/internal/config"
	"github.com/tomtom215/photarium/internal/events"
	"github.com/tomtom215/photarium/internal/extract"
	"github.com/tomtom215/photarium/internal/indexer"
	"github.com/tomtom215/photarium/internal/journal"
	"github.com/tomtom215/photarium/internal/logging"
	"github.com/tomtom215/photarium/internal/metrics"
	"github.com/tomtom215/photarium/internal/models"
	"github.com/tomtom215/photarium/internal/spatial"
	"github.com/tomtom215/photarium/internal/supervisor"
	"github.com/tomtom215/photarium/internal/supervisor/services"
	"github.com/tomtom215/photarium/internal/thumbs"
	ws "github.com/tomtom215/photarium/internal/websocket"
)

// version is stamped by the release build via -ldflags.
var version = "dev"

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config not available yet; the default logger reports this one.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	metrics.SetAppInfo(version, runtime.Version())

	logging.Info().
		Str("version", version).
		Strs("roots", cfg.Library.Roots).
		Str("catalog_path", cfg.Catalog.Path).
		Str("auth_mode", cfg.Security.AuthMode).
		Msg("Starting Photarium")

	// Catalog store of record.
	cat, err := catalog.New(&cfg.Catalog)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize catalog")
	}
	defer func() {
		if err := cat.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing catalog")
		}
	}()
	logging.Info().Msg("Catalog initialized")

	// Spatial index, warm-started from every geotagged record so cluster
	// queries work before the first scan cycle finishes.
	grid := spatial.NewGrid(spatial.DefaultCellSizeDegrees)
	points, err := cat.ListGeotagged(context.Background())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load geotagged records")
	}
	for _, p := range points {
		if err := grid.Insert(p.ID, models.Coordinate{Lat: p.Lat, Lng: p.Lng}); err != nil {
			logging.Warn().Err(err).Int64("photo_id", p.ID).Msg("Skipping invalid stored coordinate")
		}
	}
	logging.Info().Int("points", grid.Size()).Msg("Spatial index warmed from catalog")

	// Apply journal: crash detection and batch intent tracking.
	jnl, err := journal.Open(&cfg.Journal)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open journal")
	}
	defer func() {
		if err := jnl.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing journal")
		}
	}()
	if !jnl.CleanShutdown() {
		logging.Warn().Msg("Previous session did not shut down cleanly, startup scans will reconcile")
	}

	// In-process event bus: watcher events in, progress and thumbnail
	// status out.
	bus := events.NewBus(logging.NewWatermillAdapter())
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	coordinator := indexer.New(cat, grid, extract.New(), jnl, bus, cfg.Library)

	var thumbSvc *thumbs.Service
	if cfg.Thumbs.Enabled {
		thumbSvc = thumbs.New(cat, bus, cfg.Thumbs)
		coordinator.SetThumbRequester(thumbSvc)
		logging.Info().
			Str("path", cfg.Thumbs.Path).
			Int("max_dim", cfg.Thumbs.MaxDim).
			Msg("Thumbnail pipeline configured")
	} else {
		logging.Info().Msg("Thumbnail pipeline disabled (THUMBS_ENABLED=false)")
	}

	clusterSvc := cluster.New(grid, cfg.Cluster)

	authSvc, err := auth.NewService(cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authentication")
	}
	defer authSvc.Close()
	if !authSvc.Enabled() {
		logging.Warn().Msg("Authentication is DISABLED (AUTH_MODE=none); use only on trusted networks")
	}

	var hub *ws.Hub
	if cfg.WebSocket.Enabled {
		hub = ws.NewHub(bus, cfg.WebSocket)
	}

	deps := api.Dependencies{
		Catalog:  cat,
		Clusters: clusterSvc,
		Library:  coordinator,
		Grid:     grid,
		Auth:     authSvc,
		Hub:      hub,
		Version:  version,
	}
	if thumbSvc != nil {
		deps.Thumbs = thumbSvc
	}
	handler := api.NewHandler(cfg, deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Supervision: zerolog bridged to slog for sutureslog.
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddDataService(services.NewSweeperService(journal.NewSweeper(jnl)))
	tree.AddIndexingService(services.NewIndexerService(coordinator))
	if thumbSvc != nil {
		tree.AddIndexingService(services.NewThumbsService(thumbSvc))
	}
	if hub != nil {
		tree.AddIndexingService(services.NewWebSocketHubService(hub))
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Optional NATS mirror for external consumers.
	natsShutdown, err := initNATS(cfg, bus, tree)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize NATS mirroring")
	}
	if natsShutdown != nil {
		defer natsShutdown()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}
