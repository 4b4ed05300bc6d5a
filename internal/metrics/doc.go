// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package instruments the indexing pipeline end to end using the Prometheus
client library: catalog queries, per-file extraction, coordinator cycles,
watcher events, spatial grid state, cluster queries, API latency, thumbnail
rendering, and WebSocket connections.

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8087/metrics

# Available Metrics

Catalog Metrics:
  - catalog_query_duration_seconds: DuckDB query latency (histogram)
    Labels: operation, table
  - catalog_query_errors_total: Failed queries (counter)
    Labels: operation, table, error_type
  - catalog_photos: Photo records in the catalog (gauge)

Extraction Metrics:
  - extract_duration_seconds: Per-file extraction latency (histogram)
    Labels: media_type
  - extract_files_total: Files run through the extractor (counter)
  - extract_errors_total: Per-file extraction failures (counter)
    Labels: reason

Indexing Metrics:
  - index_cycles_total: Indexing cycles (counter)
    Labels: trigger (startup, watcher, manual), outcome (applied, error, stopped)
  - index_phase_duration_seconds: Phase durations (histogram)
    Labels: phase (scanning, diffing, applying)
  - index_ops_applied_total: Applied catalog operations (counter)
    Labels: op (add, update, remove, rename)
  - index_pending_events: Events in the debounce window (gauge)
  - index_metadata_errors_total: Records indexed with a metadata error (counter)

Watcher Metrics:
  - watcher_events_total: Observed filesystem events (counter)
    Labels: type
  - watcher_errors_total: Watcher errors (counter)
  - watcher_interruptions_total: Coverage gaps forcing full rescans (counter)
  - watcher_directories: Watched directories (gauge)

Spatial and Cluster Metrics:
  - grid_points, grid_cells, grid_generation: Spatial index state (gauges)
  - cluster_query_duration_seconds: Cluster computation latency (histogram)
    Labels: operation (clusters, members)
  - cluster_cache_hits_total / cluster_cache_misses_total (counters)
  - cluster_query_timeouts_total: Deadline-exceeded cluster queries (counter)

API, Thumbnail, and WebSocket metrics follow the same conventions; see the
variable declarations in metrics.go for the full inventory.

# Usage Example

	import (
	    "github.com/tomtom215/photarium/internal/metrics"
	    "github.com/prometheus/client_golang/prometheus/promhttp"
	)

	func main() {
	    http.Handle("/metrics", promhttp.Handler())

	    metrics.RecordCatalogQuery("upsert", "photos", elapsed, err)
	    metrics.RecordWatcherEvent("create")
	    metrics.RecordClusterQuery("clusters", elapsed, false)
	}

# Cardinality Management

To prevent high cardinality issues:

  - Endpoint labels are normalized (no query parameters)
  - Extraction failure reasons use the extractor's fixed reason strings
  - Error types are truncated to 50 characters
  - Per-root and per-user labels are avoided

# Thread Safety

All metric recording functions are thread-safe and designed for concurrent use
from multiple goroutines. The Prometheus client library handles synchronization
internally.
*/
package metrics
