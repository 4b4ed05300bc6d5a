// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

// Package models defines data structures shared across the Photarium application:
// photo records, indexing roots, cluster cells, bounding boxes, and filesystem events.

package models

import (
	"time"
)

// MediaType identifies the kind of media file a record describes.
type MediaType string

const (
	MediaTypePhoto MediaType = "photo"
	MediaTypeVideo MediaType = "video"
)

// ThumbStatus tracks the lifecycle of a record's thumbnail.
// Transitions: pending -> ready | failed. The renderer reports transitions
// asynchronously; indexing never blocks on thumbnail readiness.
type ThumbStatus string

const (
	ThumbStatusPending ThumbStatus = "pending"
	ThumbStatusReady   ThumbStatus = "ready"
	ThumbStatusFailed  ThumbStatus = "failed"
)

// Coordinate is a WGS84 point. Valid when Lat is in [-90, 90] and
// Lng is in [-180, 180].
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate lies inside the WGS84 envelope.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// PhotoRecord is the catalog entry for one media file under a managed root.
//
// Identity: ID is a stable integer assigned once when the record is created
// and never reused while the record exists. A rename (delete+create pair with
// matching content hash inside the coalescing window) preserves the ID and
// changes only the path.
//
// Spatial invariant: a record with a valid Coordinate is present in the
// spatial index exactly once; a record without one is never present in it.
//
// TakenAt is the capture timestamp in UTC when known. Records without a
// timestamp are excluded from time-based ordering but still participate in
// spatial queries.
type PhotoRecord struct {
	ID          int64       `json:"id"`
	RootID      int64       `json:"root_id"`
	Path        string      `json:"path"`
	MediaType   MediaType   `json:"media_type"`
	TakenAt     *time.Time  `json:"taken_at,omitempty"`
	Coordinate  *Coordinate `json:"coordinate,omitempty"`
	ContentHash string      `json:"content_hash"`
	SizeBytes   int64       `json:"size_bytes"`
	ModTime     time.Time   `json:"mod_time"`
	ThumbStatus ThumbStatus `json:"thumb_status"`

	// MetaError is set when the extractor failed on this file. The record is
	// retained with the error visible rather than dropped, so a corrupt file
	// never halts or hides the rest of a scan.
	MetaError string `json:"meta_error,omitempty"`

	IndexedAt time.Time `json:"indexed_at"`
}

// HasCoordinate reports whether the record carries a valid coordinate and
// therefore belongs in the spatial index.
func (p *PhotoRecord) HasCoordinate() bool {
	return p.Coordinate != nil && p.Coordinate.Valid()
}
