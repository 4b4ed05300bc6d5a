// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

// Package api serves the HTTP surface: cluster queries for the map,
// photo lookups, library root management, health probes, login, and the
// websocket upgrade endpoint.
//
// Every response rides the models.APIResponse envelope. Handlers depend
// on narrow interfaces (Catalog, ClusterService, Library) rather than
// concrete services so tests can swap in fakes.
//
// Routes are grouped by traffic class, each group with its own rate
// limit and middleware chain:
//
//   - /api/v1/health/*          open, permissive limit, for orchestrator probes
//   - /api/v1/auth/login        strict limit, only mounted for token auth modes
//   - /api/v1/* (reads)         metered, compressed, optionally authenticated
//   - /api/v1/roots (mutations) stricter limit, authenticated when auth is on
//   - /metrics                  Prometheus scrape endpoint, unwrapped
package api
