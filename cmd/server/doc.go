// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

/*
Package main is the entry point for the Photarium server application.

Photarium indexes photo and video libraries on local disks and serves
map-oriented queries over them: given a viewport and a zoom level it
returns clusters of geotagged media, live while the filesystem changes
underneath it.

# Application Architecture

The server implements a layered architecture with Suture v4 process
supervision:

	RootSupervisor ("photarium")
	├── DataSupervisor ("data-layer")
	│   └── Journal sweeper (BadgerDB maintenance)
	├── IndexingSupervisor ("indexing-layer")
	│   ├── Index coordinator (scan/diff/apply per root)
	│   ├── Thumbnail pipeline
	│   ├── WebSocket hub (progress broadcasts)
	│   └── NATS mirror (optional, -tags nats)
	└── APISupervisor ("api-layer")
	    └── HTTP server (Chi router)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Catalog: DuckDB store of photo records and library roots
 4. Spatial index: in-memory grid, warm-started from the catalog
 5. Journal: BadgerDB apply journal for crash detection
 6. Event bus: watermill gochannel pubsub, NATS mirror if enabled
 7. Index coordinator, thumbnail pipeline, WebSocket hub
 8. Authentication: JWT, Basic Auth, or no-auth mode
 9. Supervisor tree and HTTP server

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest
priority wins): environment variables, config file (config.yaml),
built-in defaults. See internal/config for the full key list.

# Build Tags

	go build ./cmd/server              # in-process event bus only
	go build -tags nats ./cmd/server   # JetStream mirroring for external consumers

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM: the
supervisor tree stops the HTTP server first (draining in-flight
requests), then the indexing layer at its next safe checkpoint, then
journal maintenance, and finally the catalog and journal close.

# Example Usage

Index two directories with no authentication (development):

	export LIBRARY_ROOTS=/photos,/camera-roll
	export AUTH_MODE=none
	./photarium

Production with JWT:

	export LIBRARY_ROOTS=/photos
	export JWT_SECRET=$(openssl rand -base64 32)
	export ADMIN_USERNAME=admin
	export ADMIN_PASSWORD='$2a$10$...'   # bcrypt hash
	./photarium
*/
package main
