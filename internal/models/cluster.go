// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package models

// ClusterCell is one aggregated map marker: the set of photos whose projected
// coordinates quantize into the same grid cell at a given zoom level.
//
// Cells are derived per query and never persisted. For a fixed zoom and a
// fixed underlying photo set, cell assignment is a pure function of the
// coordinate, so identical queries return identical ids, centroids, and
// counts. Ids are NOT stable across index mutations.
type ClusterCell struct {
	// ID is the opaque encoding of (zoom, cellX, cellY). Decodable by the
	// cluster service; treat as a token elsewhere.
	ID string `json:"id"`

	Zoom  int `json:"zoom"`
	CellX int `json:"cell_x"`
	CellY int `json:"cell_y"`

	// Centroid is the arithmetic mean of member coordinates, not the cell
	// center, so the marker reflects the true distribution inside the cell.
	Centroid Coordinate `json:"centroid"`

	// Bounds is the cell's geographic bounding box.
	Bounds BoundingBox `json:"bounds"`

	// Count of member photos. Singletons are returned with Count == 1
	// rather than suppressed; callers distinguish markers by count.
	Count int `json:"count"`
}
