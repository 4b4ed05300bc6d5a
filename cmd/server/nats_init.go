// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/photarium/internal/config"
	"github.com/tomtom215/photarium/internal/events"
	"github.com/tomtom215/photarium/internal/logging"
	"github.com/tomtom215/photarium/internal/supervisor"
	"github.com/tomtom215/photarium/internal/supervisor/services"
)

// initNATS wires the optional JetStream mirror: an embedded NATS server
// when configured, and a supervised mirror republishing bus traffic to
// NATS subjects for external consumers. Returns a shutdown function for
// the embedded server, or nil when mirroring is off.
//
// The events package carries the build-tag split; this function is the
// same in both builds and reports when the binary lacks NATS support.
func initNATS(cfg *config.Config, bus *events.Bus, tree *supervisor.SupervisorTree) (func(), error) {
	if !cfg.NATS.Enabled {
		logging.Info().Msg("NATS mirroring disabled (NATS_ENABLED=false)")
		return nil, nil
	}
	if !events.NATSSupported {
		logging.Warn().Msg("NATS_ENABLED=true but this binary was built without -tags nats; mirroring disabled")
		return nil, nil
	}

	var (
		embedded *events.EmbeddedServer
		natsURL  = cfg.NATS.URL
	)
	if cfg.NATS.EmbeddedServer {
		srv, err := events.NewEmbeddedServer(events.DefaultServerConfig(cfg.NATS.StoreDir))
		if err != nil {
			return nil, fmt.Errorf("embedded NATS server: %w", err)
		}
		embedded = srv
		natsURL = srv.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
	} else {
		logging.Info().Str("url", natsURL).Msg("Using external NATS server")
	}

	mirror, err := events.NewMirror(events.DefaultMirrorConfig(natsURL, cfg.NATS.SubjectPrefix), bus, logging.NewWatermillAdapter())
	if err != nil {
		if embedded != nil {
			_ = embedded.Shutdown(context.Background())
		}
		return nil, fmt.Errorf("event mirror: %w", err)
	}

	tree.AddIndexingService(services.NewMirrorService(mirror))
	logging.Info().Str("subject_prefix", cfg.NATS.SubjectPrefix).Msg("NATS mirror added to supervisor tree")

	if embedded == nil {
		return nil, nil
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := embedded.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("Error shutting down embedded NATS server")
		}
	}, nil
}
