// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

// Package validation provides struct validation using go-playground/validator v10.
//
// This package wraps the go-playground/validator library in a thread-safe
// singleton with the map API's custom validators and user-friendly error
// messages, and converts failures into the application's error envelope.
//
// # Quick Start
//
//	type ClustersRequest struct {
//	    BBox string `validate:"required,bbox"`
//	    Zoom int    `validate:"zoomlevel"`
//	}
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    req := ClustersRequest{
//	        BBox: r.URL.Query().Get("bbox"),
//	        Zoom: zoom,
//	    }
//	    if verr := validation.ValidateStruct(&req); verr != nil {
//	        respondError(w, http.StatusBadRequest, verr.ToAPIError())
//	        return
//	    }
//	    // proceed with valid request
//	}
//
// # Custom Validation Tags
//
//   - bbox: a "minLng,minLat,maxLng,maxLat" string; boxes wrapping the
//     antimeridian pass, inverted latitudes do not
//   - zoomlevel: an integer zoom in [0, 22]
//   - clusterid: a non-empty unpadded URL-safe base64 token
//
// Built-in tags (required, min, max, oneof, latitude, longitude, datetime,
// and the rest of validator v10) work as documented upstream.
//
// # Error Translation
//
// ValidateStruct returns a *RequestValidationError aggregating every failed
// field. ToAPIError renders it as a BAD_REQUEST envelope error: a single
// failure produces a plain message with field context in Details, multiple
// failures produce a joined message plus a Details "fields" list.
//
// The singleton caches struct metadata, so validation after the first call
// on a given type costs no reflection walk.
package validation
