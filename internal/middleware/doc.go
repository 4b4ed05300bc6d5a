// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

// Package middleware provides router-agnostic HTTP middleware in the
// func(http.HandlerFunc) http.HandlerFunc form. The api package bridges
// these into its chi groups.
//
// Compression gzips responses for clients that advertise support, and
// PerformanceMonitor keeps a sliding window of request latencies for
// the health endpoint's percentile report.
package middleware
