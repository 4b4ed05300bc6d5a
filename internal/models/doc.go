// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

/*
Package models defines data structures for the Photarium application.

This package contains the value types shared across the indexing
pipeline, the spatial index, the cluster service, and the HTTP layer.
It serves as the single source of truth for data structure definitions.

Key Components:

  - PhotoRecord: catalog entry for one media file, including its
    optional coordinate, content hash, and thumbnail status
  - Root: a filesystem subtree registered for indexing, with its
    indexing state machine
  - Coordinate / BoundingBox: geographic primitives, including
    antimeridian-aware box splitting
  - ClusterCell: one derived map cluster with centroid, bounds, and
    member count
  - FileEvent and friends: the events flowing over the internal bus
  - APIResponse / APIError: the HTTP response envelope

The package is dependency-free by design: serialization libraries enter
at call sites, never here.
*/
package models
