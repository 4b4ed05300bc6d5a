// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

// Package services adapts Photarium's long-running components to
// suture.Service so the supervisor tree can own their lifecycles.
//
// Two wrapper shapes exist:
//   - components with a blocking Run(ctx) (WebSocket hub, NATS mirror)
//     are delegated to directly
//   - components with a Start/Stop pair (index coordinator, thumbnail
//     pipeline, journal sweeper) are started on Serve entry, then
//     stopped when the context is canceled
//
// Every wrapper accepts an interface rather than the concrete type, so
// tests can supervise fakes without touching real infrastructure.
package services
