// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package cluster

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/tomtom215/photarium/internal/config"
	"github.com/tomtom215/photarium/internal/models"
	"github.com/tomtom215/photarium/internal/spatial"
)

func testClusterConfig() config.ClusterConfig {
	return config.ClusterConfig{
		CellSizePx:   60,
		MinZoom:      0,
		MaxZoom:      22,
		QueryTimeout: 5 * time.Second,
		CacheTTL:     time.Minute,
		CacheSize:    64,
	}
}

func newTestService(t *testing.T) (*Service, *spatial.Grid) {
	t.Helper()
	grid := spatial.NewGrid(0)
	return New(grid, testClusterConfig()), grid
}

func mustInsert(t *testing.T, grid *spatial.Grid, id int64, lat, lng float64) {
	t.Helper()
	if err := grid.Insert(id, models.Coordinate{Lat: lat, Lng: lng}); err != nil {
		t.Fatalf("insert %d: %v", id, err)
	}
}

func TestGetClustersAggregatesNearbyPhotos(t *testing.T) {
	t.Parallel()

	svc, grid := newTestService(t)
	mustInsert(t, grid, 1, 1, 1)
	mustInsert(t, grid, 2, 1.01, 1.01)
	mustInsert(t, grid, 3, 80, 80)

	viewport := models.BoundingBox{MinLng: -10, MinLat: -10, MaxLng: 10, MaxLat: 10}
	cells, err := svc.GetClusters(context.Background(), viewport, 5)
	if err != nil {
		t.Fatalf("GetClusters: %v", err)
	}
	if len(cells) != 1 {
		t.Fatalf("got %d cells, want 1: %+v", len(cells), cells)
	}

	c := cells[0]
	if c.Count != 2 {
		t.Errorf("Count = %d, want 2", c.Count)
	}
	if c.Zoom != 5 || c.CellX != 68 || c.CellY != 67 {
		t.Errorf("cell = z%d (%d,%d), want z5 (68,67)", c.Zoom, c.CellX, c.CellY)
	}
	if !almostEqual(c.Centroid.Lat, 1.005, 1e-9) || !almostEqual(c.Centroid.Lng, 1.005, 1e-9) {
		t.Errorf("Centroid = %+v, want (1.005, 1.005)", c.Centroid)
	}
	if !c.Bounds.Contains(models.Coordinate{Lat: 1, Lng: 1}) ||
		!c.Bounds.Contains(models.Coordinate{Lat: 1.01, Lng: 1.01}) {
		t.Errorf("Bounds %+v does not contain the members", c.Bounds)
	}

	zoom, x, y, err := decodeCellID(c.ID)
	if err != nil {
		t.Fatalf("decodeCellID(%q): %v", c.ID, err)
	}
	if zoom != 5 || x != 68 || y != 67 {
		t.Errorf("ID decodes to z%d (%d,%d), want z5 (68,67)", zoom, x, y)
	}
}

func TestGetClustersOrdersByCountDescending(t *testing.T) {
	t.Parallel()

	svc, grid := newTestService(t)
	mustInsert(t, grid, 1, 1, 1)
	mustInsert(t, grid, 2, 1.005, 1.005)
	mustInsert(t, grid, 3, 1.01, 1.01)
	mustInsert(t, grid, 4, 5, 5)

	viewport := models.BoundingBox{MinLng: -10, MinLat: -10, MaxLng: 10, MaxLat: 10}
	cells, err := svc.GetClusters(context.Background(), viewport, 5)
	if err != nil {
		t.Fatalf("GetClusters: %v", err)
	}
	if len(cells) != 2 {
		t.Fatalf("got %d cells, want 2: %+v", len(cells), cells)
	}
	if cells[0].Count != 3 || cells[1].Count != 1 {
		t.Errorf("counts = [%d, %d], want [3, 1]", cells[0].Count, cells[1].Count)
	}
}

func TestGetClustersDeterministic(t *testing.T) {
	t.Parallel()

	svc, grid := newTestService(t)
	coords := [][2]float64{
		{1, 1}, {1.01, 1.01}, {5, 5}, {5.2, 5.2}, {-3, 7},
		{-3.1, 7.1}, {8, -8}, {0, 0}, {0.01, 0.02}, {9.9, 9.9},
	}
	for i, c := range coords {
		mustInsert(t, grid, int64(i+1), c[0], c[1])
	}

	viewport := models.BoundingBox{MinLng: -10, MinLat: -10, MaxLng: 10, MaxLat: 10}
	first, err := svc.GetClusters(context.Background(), viewport, 6)
	if err != nil {
		t.Fatalf("GetClusters: %v", err)
	}
	second, err := svc.GetClusters(context.Background(), viewport, 6)
	if err != nil {
		t.Fatalf("GetClusters repeat: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated query differs:\n%+v\n%+v", first, second)
	}

	for i := 1; i < len(first); i++ {
		prev, cur := first[i-1], first[i]
		ordered := prev.Count > cur.Count ||
			(prev.Count == cur.Count && prev.CellX < cur.CellX) ||
			(prev.Count == cur.Count && prev.CellX == cur.CellX && prev.CellY < cur.CellY)
		if !ordered {
			t.Errorf("cells %d and %d out of order: %+v, %+v", i-1, i, prev, cur)
		}
	}
}

func TestGetClustersWholeWorldConservesCount(t *testing.T) {
	t.Parallel()

	svc, grid := newTestService(t)
	coords := [][2]float64{
		{0, 0}, {45, 90}, {-45, -90}, {87, 10}, {-87, -10},
		{0, 180}, {0, -180}, {33, -118}, {51.5, 0}, {-33.9, 151.2},
	}
	for i, c := range coords {
		mustInsert(t, grid, int64(i+1), c[0], c[1])
	}

	world := models.BoundingBox{MinLng: -180, MinLat: -90, MaxLng: 180, MaxLat: 90}
	cells, err := svc.GetClusters(context.Background(), world, 2)
	if err != nil {
		t.Fatalf("GetClusters: %v", err)
	}

	total := 0
	for _, c := range cells {
		total += c.Count
	}
	if total != len(coords) {
		t.Errorf("summed counts = %d, want %d: %+v", total, len(coords), cells)
	}
}

func TestGetClustersDropsCellsOutsideViewport(t *testing.T) {
	t.Parallel()

	svc, grid := newTestService(t)
	mustInsert(t, grid, 1, 0.5, 9)
	// Fetched by the one-cell margin but quantizes into a cell whose
	// footprint starts east of the viewport edge.
	mustInsert(t, grid, 2, 0.5, 12.6)

	viewport := models.BoundingBox{MinLng: -10, MinLat: -10, MaxLng: 10, MaxLat: 10}
	cells, err := svc.GetClusters(context.Background(), viewport, 5)
	if err != nil {
		t.Fatalf("GetClusters: %v", err)
	}
	if len(cells) != 1 {
		t.Fatalf("got %d cells, want 1: %+v", len(cells), cells)
	}
	if cells[0].Count != 1 || !almostEqual(cells[0].Centroid.Lng, 9, 1e-9) {
		t.Errorf("kept the wrong cell: %+v", cells[0])
	}
}

func TestGetClustersAntimeridianViewport(t *testing.T) {
	t.Parallel()

	svc, grid := newTestService(t)
	mustInsert(t, grid, 1, 0, 175)
	mustInsert(t, grid, 2, 0, -175)
	mustInsert(t, grid, 3, 0, 0)

	viewport := models.BoundingBox{MinLng: 170, MinLat: -5, MaxLng: -170, MaxLat: 5}
	cells, err := svc.GetClusters(context.Background(), viewport, 5)
	if err != nil {
		t.Fatalf("GetClusters: %v", err)
	}
	if len(cells) != 2 {
		t.Fatalf("got %d cells, want 2: %+v", len(cells), cells)
	}
	// Equal counts order by cell x, putting the western-hemisphere cell
	// (just past the antimeridian, near x 0) first.
	if cells[0].Count != 1 || cells[1].Count != 1 {
		t.Errorf("counts = [%d, %d], want [1, 1]", cells[0].Count, cells[1].Count)
	}
	if !almostEqual(cells[0].Centroid.Lng, -175, 1e-9) || !almostEqual(cells[1].Centroid.Lng, 175, 1e-9) {
		t.Errorf("centroids = %+v, %+v, want lng -175 then 175", cells[0].Centroid, cells[1].Centroid)
	}
}

func TestGetClustersEmptyViewport(t *testing.T) {
	t.Parallel()

	svc, grid := newTestService(t)
	mustInsert(t, grid, 1, 50, 50)

	viewport := models.BoundingBox{MinLng: -10, MinLat: -10, MaxLng: 10, MaxLat: 10}
	cells, err := svc.GetClusters(context.Background(), viewport, 5)
	if err != nil {
		t.Fatalf("GetClusters: %v", err)
	}
	if cells == nil || len(cells) != 0 {
		t.Errorf("got %+v, want empty non-nil slice", cells)
	}
}

func TestGetClustersValidation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	good := models.BoundingBox{MinLng: -10, MinLat: -10, MaxLng: 10, MaxLat: 10}

	tests := []struct {
		name     string
		viewport models.BoundingBox
		zoom     int
	}{
		{"latitude out of range", models.BoundingBox{MinLng: -10, MinLat: -95, MaxLng: 10, MaxLat: 10}, 5},
		{"longitude out of range", models.BoundingBox{MinLng: -200, MinLat: -10, MaxLng: 10, MaxLat: 10}, 5},
		{"zoom below minimum", good, -1},
		{"zoom above maximum", good, 23},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.GetClusters(context.Background(), tt.viewport, tt.zoom)
			if !errors.Is(err, ErrInvalidQuery) {
				t.Errorf("err = %v, want ErrInvalidQuery", err)
			}
		})
	}
}

func TestGetClustersCachesPerGeneration(t *testing.T) {
	t.Parallel()

	svc, grid := newTestService(t)
	mustInsert(t, grid, 1, 1, 1)

	viewport := models.BoundingBox{MinLng: -10, MinLat: -10, MaxLng: 10, MaxLat: 10}
	ctx := context.Background()

	first, err := svc.GetClusters(ctx, viewport, 5)
	if err != nil {
		t.Fatalf("GetClusters: %v", err)
	}
	second, err := svc.GetClusters(ctx, viewport, 5)
	if err != nil {
		t.Fatalf("GetClusters repeat: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached result differs: %+v vs %+v", first, second)
	}
	if hits, misses := svc.cache.Stats(); hits != 1 || misses != 1 {
		t.Errorf("cache stats = %d hits %d misses, want 1 and 1", hits, misses)
	}

	// A mutation moves the index to a new generation; the stale entry
	// must not be served.
	mustInsert(t, grid, 2, 1.01, 1.01)
	third, err := svc.GetClusters(ctx, viewport, 5)
	if err != nil {
		t.Fatalf("GetClusters after insert: %v", err)
	}
	if len(third) != 1 || third[0].Count != 2 {
		t.Errorf("post-insert result = %+v, want one cell with count 2", third)
	}
	if hits, misses := svc.cache.Stats(); hits != 1 || misses != 2 {
		t.Errorf("cache stats = %d hits %d misses, want 1 and 2", hits, misses)
	}
}

func TestGetClustersTimeout(t *testing.T) {
	t.Parallel()

	svc, grid := newTestService(t)
	mustInsert(t, grid, 1, 1, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	viewport := models.BoundingBox{MinLng: -10, MinLat: -10, MaxLng: 10, MaxLat: 10}
	cells, err := svc.GetClusters(ctx, viewport, 5)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
	if cells != nil {
		t.Errorf("got %+v alongside timeout", cells)
	}
}

func TestGetClustersCanceledPassesThrough(t *testing.T) {
	t.Parallel()

	svc, grid := newTestService(t)
	mustInsert(t, grid, 1, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	viewport := models.BoundingBox{MinLng: -10, MinLat: -10, MaxLng: 10, MaxLat: 10}
	_, err := svc.GetClusters(ctx, viewport, 5)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Errorf("cancellation misreported as timeout: %v", err)
	}
}

func TestGetClusterMembersSortedAscending(t *testing.T) {
	t.Parallel()

	svc, grid := newTestService(t)
	mustInsert(t, grid, 2, 1, 1)
	mustInsert(t, grid, 1, 1.01, 1.01)
	mustInsert(t, grid, 3, 80, 80)

	ids, err := svc.GetClusterMembers(context.Background(), encodeCellID(5, 68, 67))
	if err != nil {
		t.Fatalf("GetClusterMembers: %v", err)
	}
	if !reflect.DeepEqual(ids, []int64{1, 2}) {
		t.Errorf("members = %v, want [1 2]", ids)
	}

	ids, err = svc.GetClusterMembers(context.Background(), encodeCellID(5, 98, 15))
	if err != nil {
		t.Fatalf("GetClusterMembers singleton: %v", err)
	}
	if !reflect.DeepEqual(ids, []int64{3}) {
		t.Errorf("singleton members = %v, want [3]", ids)
	}
}

func TestGetClusterMembersExcludesBoundaryNeighbors(t *testing.T) {
	t.Parallel()

	svc, grid := newTestService(t)
	mustInsert(t, grid, 1, 0.5, 12.4)
	// Longitude 12.48046875 sits exactly on the edge shared by cells 72
	// and 73 at zoom 5. The footprint scan of cell 72 fetches it; the
	// re-projection filter must hand it to cell 73 only.
	mustInsert(t, grid, 2, 0.5, 12.48046875)

	ids, err := svc.GetClusterMembers(context.Background(), encodeCellID(5, 72, 68))
	if err != nil {
		t.Fatalf("GetClusterMembers(72): %v", err)
	}
	if !reflect.DeepEqual(ids, []int64{1}) {
		t.Errorf("cell 72 members = %v, want [1]", ids)
	}

	ids, err = svc.GetClusterMembers(context.Background(), encodeCellID(5, 73, 68))
	if err != nil {
		t.Fatalf("GetClusterMembers(73): %v", err)
	}
	if !reflect.DeepEqual(ids, []int64{2}) {
		t.Errorf("cell 73 members = %v, want [2]", ids)
	}
}

func TestGetClusterMembersPolarCell(t *testing.T) {
	t.Parallel()

	svc, grid := newTestService(t)
	mustInsert(t, grid, 1, 87, 10)

	key := svc.proj.cellAt(models.Coordinate{Lat: 87, Lng: 10}, 5)
	if key.Y != 0 {
		t.Fatalf("clamped polar point in row %d, want 0", key.Y)
	}
	ids, err := svc.GetClusterMembers(context.Background(), encodeCellID(5, key.X, key.Y))
	if err != nil {
		t.Fatalf("GetClusterMembers: %v", err)
	}
	if !reflect.DeepEqual(ids, []int64{1}) {
		t.Errorf("members = %v, want [1]", ids)
	}
}

func TestGetClusterMembersEmptyCell(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	ids, err := svc.GetClusterMembers(context.Background(), encodeCellID(5, 10, 10))
	if err != nil {
		t.Fatalf("GetClusterMembers: %v", err)
	}
	if ids == nil || len(ids) != 0 {
		t.Errorf("got %v, want empty non-nil slice", ids)
	}
}

func TestGetClusterMembersRejectsBadIDs(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	tests := []struct {
		name string
		id   string
	}{
		{"not a token", "!!!!"},
		{"zoom above maximum", encodeCellID(23, 0, 0)},
		{"negative x", encodeCellID(5, -1, 0)},
		{"negative y", encodeCellID(5, 0, -1)},
		{"x past last cell", encodeCellID(5, 137, 0)},
		{"y past last cell", encodeCellID(5, 0, 137)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.GetClusterMembers(context.Background(), tt.id)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	grid := spatial.NewGrid(0)
	svc := New(grid, config.ClusterConfig{})
	mustInsert(t, grid, 1, 0, 0)

	world := models.BoundingBox{MinLng: -180, MinLat: -90, MaxLng: 180, MaxLat: 90}
	cells, err := svc.GetClusters(context.Background(), world, 0)
	if err != nil {
		t.Fatalf("GetClusters at zoom 0: %v", err)
	}
	if len(cells) != 1 || cells[0].Count != 1 {
		t.Errorf("got %+v, want one singleton cell", cells)
	}

	if _, err := svc.GetClusters(context.Background(), world, 23); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("zoom 23 err = %v, want ErrInvalidQuery", err)
	}
}
