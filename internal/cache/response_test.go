// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package cache

import (
	"testing"
	"time"

	"github.com/tomtom215/photarium/internal/models"
)

func TestResponseCacheRoundTrip(t *testing.T) {
	t.Parallel()

	rc := NewResponseCache(16, time.Minute)
	viewport := models.BoundingBox{MinLng: -10, MinLat: -10, MaxLng: 10, MaxLat: 10}
	cells := []models.ClusterCell{
		{ID: "abc", Zoom: 5, Count: 2, Centroid: models.Coordinate{Lat: 1.005, Lng: 1.005}},
	}

	key := rc.Key(viewport, 5, 17)
	if _, found := rc.Get(key); found {
		t.Fatal("hit before Set")
	}

	rc.Set(key, cells)
	got, found := rc.Get(key)
	if !found {
		t.Fatal("miss after Set")
	}
	if len(got) != 1 || got[0].ID != "abc" || got[0].Count != 2 {
		t.Errorf("cached cells = %+v, want the stored cluster", got)
	}
}

func TestResponseCacheKeySeparatesSnapshots(t *testing.T) {
	t.Parallel()

	rc := NewResponseCache(16, time.Minute)
	viewport := models.BoundingBox{MinLng: -10, MinLat: -10, MaxLng: 10, MaxLat: 10}

	gen17 := rc.Key(viewport, 5, 17)
	gen18 := rc.Key(viewport, 5, 18)
	if gen17 == gen18 {
		t.Fatal("keys for different generations collide")
	}

	rc.Set(gen17, []models.ClusterCell{{ID: "old"}})
	if _, found := rc.Get(gen18); found {
		t.Error("response cached under an old generation served for a newer one")
	}
}

func TestResponseCacheKeySeparatesQueries(t *testing.T) {
	t.Parallel()

	rc := NewResponseCache(16, time.Minute)
	a := models.BoundingBox{MinLng: -10, MinLat: -10, MaxLng: 10, MaxLat: 10}
	b := models.BoundingBox{MinLng: -10, MinLat: -10, MaxLng: 10.0000001, MaxLat: 10}

	if rc.Key(a, 5, 1) == rc.Key(b, 5, 1) {
		t.Error("keys for distinct viewports collide")
	}
	if rc.Key(a, 5, 1) == rc.Key(a, 6, 1) {
		t.Error("keys for distinct zooms collide")
	}
}

func TestResponseCacheEvictsOldGenerations(t *testing.T) {
	t.Parallel()

	rc := NewResponseCache(2, time.Minute)
	viewport := models.BoundingBox{MinLng: 0, MinLat: 0, MaxLng: 1, MaxLat: 1}

	for gen := int64(1); gen <= 3; gen++ {
		rc.Set(rc.Key(viewport, 5, gen), []models.ClusterCell{})
	}

	if rc.Len() != 2 {
		t.Errorf("Len = %d, want capacity 2", rc.Len())
	}
	if _, found := rc.Get(rc.Key(viewport, 5, 1)); found {
		t.Error("oldest generation survived past capacity")
	}
}
