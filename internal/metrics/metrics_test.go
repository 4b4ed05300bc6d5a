// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package metrics

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCatalogQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		table     string
		duration  time.Duration
		err       error
	}{
		{
			name:      "successful upsert",
			operation: "upsert",
			table:     "photos",
			duration:  10 * time.Millisecond,
		},
		{
			name:      "successful select",
			operation: "select",
			table:     "roots",
			duration:  2 * time.Millisecond,
		},
		{
			name:      "failed query with short error",
			operation: "delete",
			table:     "photos",
			duration:  time.Millisecond,
			err:       errors.New("write conflict"),
		},
		{
			name:      "failed query with long error truncated to 50 chars",
			operation: "update",
			table:     "roots",
			duration:  time.Millisecond,
			err:       errors.New(strings.Repeat("x", 80)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.CollectAndCount(CatalogQueryDuration)

			RecordCatalogQuery(tt.operation, tt.table, tt.duration, tt.err)

			after := testutil.CollectAndCount(CatalogQueryDuration)
			if after < before {
				t.Error("histogram series count decreased")
			}

			if tt.err != nil {
				errorType := tt.err.Error()
				if len(errorType) > 50 {
					errorType = errorType[:50]
				}
				count := testutil.ToFloat64(CatalogQueryErrors.WithLabelValues(tt.operation, tt.table, errorType))
				if count < 1 {
					t.Errorf("error counter for %q/%q not incremented", tt.operation, tt.table)
				}
			}
		})
	}
}

func TestRecordExtract(t *testing.T) {
	RecordExtract("photo", 5*time.Millisecond, "")
	RecordExtract("photo", 5*time.Millisecond, "corrupt JPEG")
	RecordExtract("video", 30*time.Millisecond, "")

	if got := testutil.ToFloat64(ExtractErrors.WithLabelValues("corrupt JPEG")); got < 1 {
		t.Errorf("extract error counter = %v, want >= 1", got)
	}
	if got := testutil.ToFloat64(ExtractFiles.WithLabelValues("video")); got < 1 {
		t.Errorf("extract files counter = %v, want >= 1", got)
	}
}

func TestRecordIndexCycleAndOps(t *testing.T) {
	RecordIndexCycle("watcher", "applied")
	RecordIndexCycle("startup", "error")
	RecordIndexOp("add")
	RecordIndexOp("rename")
	RecordIndexPhase("scanning", 2*time.Second)

	if got := testutil.ToFloat64(IndexCyclesTotal.WithLabelValues("watcher", "applied")); got < 1 {
		t.Errorf("cycle counter = %v, want >= 1", got)
	}
	if got := testutil.ToFloat64(IndexOpsApplied.WithLabelValues("rename")); got < 1 {
		t.Errorf("ops counter = %v, want >= 1", got)
	}
}

func TestUpdateGridStats(t *testing.T) {
	UpdateGridStats(1200, 64, 17)

	if got := testutil.ToFloat64(GridPoints); got != 1200 {
		t.Errorf("GridPoints = %v, want 1200", got)
	}
	if got := testutil.ToFloat64(GridCells); got != 64 {
		t.Errorf("GridCells = %v, want 64", got)
	}
	if got := testutil.ToFloat64(GridGeneration); got != 17 {
		t.Errorf("GridGeneration = %v, want 17", got)
	}
}

func TestRecordClusterQuery(t *testing.T) {
	hitsBefore := testutil.ToFloat64(ClusterCacheHits)
	missesBefore := testutil.ToFloat64(ClusterCacheMisses)

	RecordClusterQuery("clusters", 5*time.Millisecond, true)
	RecordClusterQuery("clusters", 15*time.Millisecond, false)
	RecordClusterQuery("members", time.Millisecond, false)

	if got := testutil.ToFloat64(ClusterCacheHits); got != hitsBefore+1 {
		t.Errorf("cache hits = %v, want %v", got, hitsBefore+1)
	}
	if got := testutil.ToFloat64(ClusterCacheMisses); got != missesBefore+2 {
		t.Errorf("cache misses = %v, want %v", got, missesBefore+2)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	base := testutil.ToFloat64(APIActiveRequests)

	TrackActiveRequest(true)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != base+2 {
		t.Errorf("active requests = %v, want %v", got, base+2)
	}

	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != base+1 {
		t.Errorf("active requests = %v, want %v", got, base+1)
	}
	TrackActiveRequest(false)
}

func TestUpdateJournalStats(t *testing.T) {
	UpdateJournalStats(3, 4096)

	if got := testutil.ToFloat64(JournalPendingEntries); got != 3 {
		t.Errorf("JournalPendingEntries = %v, want 3", got)
	}
	if got := testutil.ToFloat64(JournalSizeBytes); got != 4096 {
		t.Errorf("JournalSizeBytes = %v, want 4096", got)
	}
}

func TestConcurrentRecording(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				RecordWatcherEvent("create")
				RecordCatalogQuery("select", "photos", time.Millisecond, nil)
				TrackActiveRequest(true)
				TrackActiveRequest(false)
			}
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(WatcherEventsTotal.WithLabelValues("create")); got < 800 {
		t.Errorf("watcher events = %v, want >= 800", got)
	}
}
