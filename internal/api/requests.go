// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package api

// Request structs below carry go-playground/validator tags and are
// checked with validateRequest before a handler touches any service.
// Path and query parameters are copied in by the handler; body-decoded
// structs also carry json tags.

// ClustersRequest holds the validated query parameters of GET /clusters.
//
// Fields:
//   - BBox: viewport as "west,south,east,north" (custom bbox tag)
//   - Zoom: web-mercator zoom level (0-22, custom zoomlevel tag)
type ClustersRequest struct {
	BBox string `validate:"required,bbox"`
	Zoom int    `validate:"zoomlevel"`
}

// ClusterMembersRequest holds the validated parameters of
// GET /clusters/{id}/members.
//
// Fields:
//   - ID: opaque cluster cell id from a previous /clusters response
//   - Limit: how many member records to hydrate (>= 1; the handler
//     clamps to api.max_page_size before validation)
type ClusterMembersRequest struct {
	ID    string `validate:"required,clusterid"`
	Limit int    `validate:"min=1"`
}

// CreateRootRequest is the body of POST /roots.
//
// Fields:
//   - Path: absolute or relative directory to index (1-4096 bytes)
type CreateRootRequest struct {
	Path string `json:"path" validate:"required,min=1,max=4096"`
}
