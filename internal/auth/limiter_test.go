// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package auth

import (
	"testing"
	"time"
)

func TestLoginLimiterBurst(t *testing.T) {
	t.Parallel()

	l := NewLoginLimiter(3, time.Minute)
	t.Cleanup(l.Close)

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("attempt %d denied within burst", i+1)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Error("attempt beyond burst allowed")
	}

	// Another IP keeps its own bucket.
	if !l.Allow("10.0.0.2") {
		t.Error("fresh IP denied")
	}
}

func TestLoginLimiterRefill(t *testing.T) {
	t.Parallel()

	l := NewLoginLimiter(1, 30*time.Millisecond)
	t.Cleanup(l.Close)

	if !l.Allow("10.0.0.1") {
		t.Fatal("first attempt denied")
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("second attempt allowed before refill")
	}

	time.Sleep(40 * time.Millisecond)
	if !l.Allow("10.0.0.1") {
		t.Error("attempt denied after refill window")
	}
}

func TestLoginLimiterEvictsIdleEntries(t *testing.T) {
	t.Parallel()

	l := NewLoginLimiter(3, time.Minute)
	t.Cleanup(l.Close)

	l.Allow("10.0.0.1")
	l.Allow("10.0.0.2")

	l.mu.Lock()
	l.limiters["10.0.0.1"].lastAccess = time.Now().Add(-2 * time.Hour)
	l.mu.Unlock()

	l.evictIdle()

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.limiters["10.0.0.1"]; ok {
		t.Error("idle entry survived eviction")
	}
	if _, ok := l.limiters["10.0.0.2"]; !ok {
		t.Error("active entry was evicted")
	}
}
