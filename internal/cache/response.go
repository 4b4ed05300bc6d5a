// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package cache

import (
	"fmt"
	"time"

	"github.com/tomtom215/photarium/internal/models"
)

// ResponseCache memoizes cluster query results. Keys embed the spatial
// index generation, which increments on every mutation, so a hit always
// reflects the exact index state the response was computed from. Entries
// keyed by superseded generations are never matched again and fall out by
// LRU order or TTL.
//
// Cached slices are shared between callers and must be treated as
// immutable.
type ResponseCache struct {
	lru *LRU
}

// NewResponseCache creates a response cache bounded to capacity entries
// with the given TTL.
func NewResponseCache(capacity int, ttl time.Duration) *ResponseCache {
	return &ResponseCache{lru: NewLRU(capacity, ttl)}
}

// Key derives the cache key for one cluster query against one index
// snapshot. Seven decimal places keep distinct viewports distinct down to
// centimeter precision.
func (rc *ResponseCache) Key(viewport models.BoundingBox, zoom int, generation int64) string {
	return fmt.Sprintf("clusters:g%d:z%d:%.7f,%.7f,%.7f,%.7f",
		generation, zoom, viewport.MinLng, viewport.MinLat, viewport.MaxLng, viewport.MaxLat)
}

// Get returns the cached cluster set for key.
func (rc *ResponseCache) Get(key string) ([]models.ClusterCell, bool) {
	v, ok := rc.lru.Get(key)
	if !ok {
		return nil, false
	}
	cells, ok := v.([]models.ClusterCell)
	return cells, ok
}

// Set stores the cluster set for key.
func (rc *ResponseCache) Set(key string, cells []models.ClusterCell) {
	rc.lru.Add(key, cells)
}

// Len returns the number of cached responses.
func (rc *ResponseCache) Len() int {
	return rc.lru.Len()
}

// Stats returns cumulative hit and miss counts.
func (rc *ResponseCache) Stats() (hits, misses int64) {
	return rc.lru.Stats()
}
