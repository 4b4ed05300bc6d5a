// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

/*
Package supervisor provides process supervision for Photarium using suture v4.

This package implements a hierarchical supervisor tree that manages the
lifecycle of all long-running services in the application, giving
Erlang/OTP-style supervision with automatic restart, failure isolation,
and graceful shutdown.

# Overview

The supervisor tree organizes services into three layers for failure
isolation:

	RootSupervisor ("photarium")
	├── DataSupervisor ("data-layer")
	│   └── JournalSweeperService
	├── IndexingSupervisor ("indexing-layer")
	│   ├── IndexerService
	│   ├── ThumbsService
	│   ├── WebSocketHubService
	│   └── MirrorService (if NATS enabled, build tag: nats)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

This hierarchy ensures that:
  - A crash in the indexing pipeline does not take down the query API
  - Journal maintenance failures never interrupt indexing
  - The HTTP server keeps answering cluster queries from the spatial
    index while an indexing worker restarts

# Restart Policy

Each supervisor applies suture's failure accounting: FailureThreshold
failures within the FailureDecay window put the supervisor into
FailureBackoff before the next restart attempt. Values come from
TreeConfig; DefaultTreeConfig matches suture's documented defaults.

# Service Wrappers

Long-running components expose either a blocking Run(ctx) or a
Start/Stop pair. The internal/supervisor/services package adapts both
shapes to suture.Service so the tree can own every lifecycle uniformly.
*/
package supervisor
