// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Catalog query performance (DuckDB)
// - Metadata extraction throughput and failures
// - Index coordinator cycles and apply operations
// - Filesystem watcher events and interruptions
// - Spatial grid and cluster query performance
// - API endpoint latency and throughput
// - Thumbnail rendering and WebSocket connections

var (
	// Catalog Metrics
	CatalogQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_query_duration_seconds",
			Help:    "Duration of DuckDB catalog queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	CatalogQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_query_errors_total",
			Help: "Total number of catalog query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	CatalogPhotos = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_photos",
			Help: "Current number of photo records in the catalog",
		},
	)

	// Extraction Metrics
	ExtractDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extract_duration_seconds",
			Help:    "Per-file metadata extraction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"media_type"},
	)

	ExtractErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extract_errors_total",
			Help: "Total number of per-file extraction failures",
		},
		[]string{"reason"},
	)

	ExtractFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extract_files_total",
			Help: "Total number of files run through the extractor",
		},
		[]string{"media_type"},
	)

	// Index Coordinator Metrics
	IndexCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "index_cycles_total",
			Help: "Total number of indexing cycles per outcome",
		},
		[]string{"trigger", "outcome"}, // trigger: startup, watcher, manual; outcome: applied, error, stopped
	)

	IndexPhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "index_phase_duration_seconds",
			Help:    "Duration of indexing phases in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		},
		[]string{"phase"}, // scanning, diffing, applying
	)

	IndexOpsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "index_ops_applied_total",
			Help: "Total number of applied catalog operations",
		},
		[]string{"op"}, // add, update, remove, rename
	)

	IndexPendingEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "index_pending_events",
			Help: "Filesystem events waiting in the debounce window",
		},
	)

	IndexMetadataErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "index_metadata_errors_total",
			Help: "Total number of records indexed with a metadata error",
		},
	)

	// Watcher Metrics
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_events_total",
			Help: "Total number of filesystem events observed",
		},
		[]string{"type"}, // create, write, remove, rename, chmod, unknown
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watcher_errors_total",
			Help: "Total number of watcher errors",
		},
	)

	WatcherInterruptions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watcher_interruptions_total",
			Help: "Watcher coverage gaps that forced a full rescan",
		},
	)

	WatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watcher_directories",
			Help: "Current number of watched directories",
		},
	)

	// Spatial Grid Metrics
	GridPoints = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grid_points",
			Help: "Current number of points in the spatial index",
		},
	)

	GridCells = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grid_cells",
			Help: "Current number of occupied grid cells",
		},
	)

	GridGeneration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grid_generation",
			Help: "Spatial index generation (increments on mutation)",
		},
	)

	// Cluster Metrics
	ClusterQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cluster_query_duration_seconds",
			Help:    "Cluster computation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation"}, // clusters, members
	)

	ClusterCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cluster_cache_hits_total",
			Help: "Total number of cluster cache hits",
		},
	)

	ClusterCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cluster_cache_misses_total",
			Help: "Total number of cluster cache misses",
		},
	)

	ClusterQueryTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cluster_query_timeouts_total",
			Help: "Cluster queries that exceeded their deadline",
		},
	)

	// Journal Metrics
	JournalPendingEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "journal_pending_entries",
			Help: "Current number of unapplied journal entries",
		},
	)

	JournalSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "journal_size_bytes",
			Help: "Estimated journal database size in bytes",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	// Thumbnail Metrics
	ThumbsRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbs_rendered_total",
			Help: "Total number of thumbnail render attempts",
		},
		[]string{"status"}, // ready, failed, dropped
	)

	ThumbRenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thumb_render_duration_seconds",
			Help:    "Thumbnail render duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	ThumbBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumb_breaker_state",
			Help: "Thumbnail circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// WebSocket Metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of active WebSocket connections",
		},
	)

	WebSocketMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WebSocketDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_dropped_total",
			Help: "Messages dropped because a client send buffer was full",
		},
	)

	// Application Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordCatalogQuery records a catalog query metric.
func RecordCatalogQuery(operation, table string, duration time.Duration, err error) {
	CatalogQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		CatalogQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordExtract records one file passing through the extractor.
func RecordExtract(mediaType string, duration time.Duration, failReason string) {
	ExtractFiles.WithLabelValues(mediaType).Inc()
	ExtractDuration.WithLabelValues(mediaType).Observe(duration.Seconds())
	if failReason != "" {
		ExtractErrors.WithLabelValues(failReason).Inc()
	}
}

// RecordIndexCycle records a completed indexing cycle.
func RecordIndexCycle(trigger, outcome string) {
	IndexCyclesTotal.WithLabelValues(trigger, outcome).Inc()
}

// RecordIndexPhase records the duration of one indexing phase.
func RecordIndexPhase(phase string, duration time.Duration) {
	IndexPhaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordIndexOp records one applied catalog operation.
func RecordIndexOp(op string) {
	IndexOpsApplied.WithLabelValues(op).Inc()
}

// RecordWatcherEvent records one observed filesystem event.
func RecordWatcherEvent(eventType string) {
	WatcherEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordWatcherInterruption records a watcher coverage gap.
func RecordWatcherInterruption() {
	WatcherInterruptions.Inc()
	WatcherErrors.Inc()
}

// UpdateGridStats updates the spatial index gauges after a mutation.
func UpdateGridStats(points, cells int, generation uint64) {
	GridPoints.Set(float64(points))
	GridCells.Set(float64(cells))
	GridGeneration.Set(float64(generation))
}

// RecordClusterQuery records a cluster computation.
func RecordClusterQuery(operation string, duration time.Duration, cacheHit bool) {
	ClusterQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if cacheHit {
		ClusterCacheHits.Inc()
	} else {
		ClusterCacheMisses.Inc()
	}
}

// RecordClusterMembers records a member listing. Member queries bypass the
// response cache, so they only observe duration.
func RecordClusterMembers(duration time.Duration) {
	ClusterQueryDuration.WithLabelValues("members").Observe(duration.Seconds())
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordThumbRender records a thumbnail render attempt.
func RecordThumbRender(status string, duration time.Duration) {
	ThumbsRendered.WithLabelValues(status).Inc()
	ThumbRenderDuration.Observe(duration.Seconds())
}

// UpdateJournalStats updates journal gauges from a stats snapshot.
func UpdateJournalStats(pending, sizeBytes int64) {
	JournalPendingEntries.Set(float64(pending))
	JournalSizeBytes.Set(float64(sizeBytes))
}

// SetAppInfo records the application version labels once at startup.
func SetAppInfo(version, goVersion string) {
	AppInfo.WithLabelValues(version, goVersion).Set(1)
}
