// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package middleware

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/photarium/internal/logging"
)

const (
	defaultWindow        = 1000
	defaultSlowThreshold = time.Second
)

// PerformanceMonitor records the most recent request latencies in a
// fixed-size ring and serves percentile summaries. It exists so the
// health endpoint can report latency without a metrics scraper.
type PerformanceMonitor struct {
	mu        sync.Mutex
	samples   []time.Duration
	next      int
	filled    bool
	slowTotal int64
	threshold time.Duration
}

// PerfStats is a latency summary over the monitor's current window.
type PerfStats struct {
	Samples      int     `json:"samples"`
	AvgMS        float64 `json:"avg_ms"`
	P50MS        float64 `json:"p50_ms"`
	P95MS        float64 `json:"p95_ms"`
	P99MS        float64 `json:"p99_ms"`
	SlowRequests int64   `json:"slow_requests"`
}

// NewPerformanceMonitor creates a monitor holding the last window
// request durations. window values below one fall back to the default.
func NewPerformanceMonitor(window int) *PerformanceMonitor {
	if window < 1 {
		window = defaultWindow
	}
	return &PerformanceMonitor{
		samples:   make([]time.Duration, window),
		threshold: defaultSlowThreshold,
	}
}

// Record adds one request observation. Requests slower than the
// threshold are counted and logged.
func (pm *PerformanceMonitor) Record(path string, status int, d time.Duration) {
	pm.mu.Lock()
	pm.samples[pm.next] = d
	pm.next++
	if pm.next == len(pm.samples) {
		pm.next = 0
		pm.filled = true
	}
	slow := d >= pm.threshold
	if slow {
		pm.slowTotal++
	}
	pm.mu.Unlock()

	if slow {
		logging.Warn().
			Str("path", path).
			Int("status", status).
			Dur("duration", d).
			Msg("slow http request")
	}
}

// Stats returns percentile latencies over the current window.
func (pm *PerformanceMonitor) Stats() PerfStats {
	pm.mu.Lock()
	n := pm.next
	if pm.filled {
		n = len(pm.samples)
	}
	window := make([]time.Duration, n)
	copy(window, pm.samples[:n])
	slow := pm.slowTotal
	pm.mu.Unlock()

	stats := PerfStats{Samples: n, SlowRequests: slow}
	if n == 0 {
		return stats
	}

	sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })

	var total time.Duration
	for _, d := range window {
		total += d
	}
	stats.AvgMS = durationMS(total) / float64(n)
	stats.P50MS = durationMS(percentile(window, 0.50))
	stats.P95MS = durationMS(percentile(window, 0.95))
	stats.P99MS = durationMS(percentile(window, 0.99))
	return stats
}

// Middleware times each request and records it against the request path.
func (pm *PerformanceMonitor) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		pm.Record(r.URL.Path, sw.status, time.Since(start))
	}
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * q)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
