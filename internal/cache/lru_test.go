// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestLRUBasicOperations(t *testing.T) {
	t.Parallel()

	c := NewLRU(3, time.Minute)

	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	v, found := c.Get("b")
	if !found {
		t.Fatal("Get(b) not found")
	}
	if v.(int) != 2 {
		t.Errorf("Get(b) = %v, want 2", v)
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	c := NewLRU(3, time.Minute)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	// Touch a so b becomes the eviction candidate.
	c.Get("a")
	c.Add("d", 4)

	if _, found := c.Get("b"); found {
		t.Error("b survived eviction, want it dropped as least recently used")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, found := c.Get(key); !found {
			t.Errorf("%s missing after eviction", key)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}
}

func TestLRUReplaceKeepsSingleEntry(t *testing.T) {
	t.Parallel()

	c := NewLRU(2, time.Minute)
	c.Add("a", 1)
	c.Add("a", 10)

	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
	v, _ := c.Get("a")
	if v.(int) != 10 {
		t.Errorf("Get(a) = %v, want 10", v)
	}
}

func TestLRUExpiry(t *testing.T) {
	t.Parallel()

	c := NewLRU(10, 30*time.Millisecond)
	c.Add("a", 1)

	if _, found := c.Get("a"); !found {
		t.Fatal("entry missing before expiry")
	}
	time.Sleep(60 * time.Millisecond)
	if _, found := c.Get("a"); found {
		t.Error("entry still served after expiry")
	}
	if c.Contains("a") {
		t.Error("Contains reports an expired entry")
	}
}

func TestLRURemove(t *testing.T) {
	t.Parallel()

	c := NewLRU(10, time.Minute)
	c.Add("a", 1)

	if !c.Remove("a") {
		t.Error("Remove(a) = false, want true")
	}
	if c.Remove("a") {
		t.Error("second Remove(a) = true, want false")
	}
	if _, found := c.Get("a"); found {
		t.Error("entry served after Remove")
	}
}

func TestLRUSeenDeduplicates(t *testing.T) {
	t.Parallel()

	c := NewLRU(10, time.Minute)

	if c.Seen("photo:42") {
		t.Error("first Seen = true, want false")
	}
	if !c.Seen("photo:42") {
		t.Error("second Seen = false, want true")
	}
}

func TestLRUSeenExpires(t *testing.T) {
	t.Parallel()

	c := NewLRU(10, 30*time.Millisecond)

	if c.Seen("photo:42") {
		t.Fatal("first Seen = true, want false")
	}
	time.Sleep(60 * time.Millisecond)
	if c.Seen("photo:42") {
		t.Error("Seen after expiry = true, want false")
	}
}

func TestLRUCleanupExpired(t *testing.T) {
	t.Parallel()

	c := NewLRU(10, 30*time.Millisecond)
	c.Add("a", 1)
	c.Add("b", 2)

	time.Sleep(60 * time.Millisecond)
	c.Add("c", 3)

	if removed := c.CleanupExpired(); removed != 2 {
		t.Errorf("CleanupExpired = %d, want 2", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Len after cleanup = %d, want 1", c.Len())
	}
	if _, found := c.Get("c"); !found {
		t.Error("fresh entry removed by cleanup")
	}
}

func TestLRUClear(t *testing.T) {
	t.Parallel()

	c := NewLRU(10, time.Minute)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", c.Len())
	}
	if _, found := c.Get("a"); found {
		t.Error("entry served after Clear")
	}
}

func TestLRUStats(t *testing.T) {
	t.Parallel()

	c := NewLRU(10, time.Minute)
	c.Add("a", 1)

	c.Get("a")
	c.Get("a")
	c.Get("missing")

	hits, misses := c.Stats()
	if hits != 2 {
		t.Errorf("hits = %d, want 2", hits)
	}
	if misses != 1 {
		t.Errorf("misses = %d, want 1", misses)
	}
}

func TestLRUConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := NewLRU(128, time.Minute)
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*31+i)%64)
				c.Add(key, i)
				c.Get(key)
				c.Seen(key)
				if i%50 == 0 {
					c.CleanupExpired()
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 128 {
		t.Errorf("Len = %d, want <= capacity 128", c.Len())
	}
}
