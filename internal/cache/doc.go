// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

// Package cache provides the in-memory caches used on the query path.
//
// LRU is a capacity-bounded cache with per-entry TTL, O(1) for get, add,
// and eviction. It doubles as a deduplication set through Seen, which the
// thumbnail pipeline uses to drop repeat render requests for a photo.
//
// ResponseCache memoizes cluster query results keyed by viewport, zoom,
// and the spatial index generation. The generation changes on every index
// mutation, so a cache hit is always as fresh as a recomputation; entries
// for dead generations simply age out.
package cache
