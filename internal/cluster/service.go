// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

// Package cluster computes map markers from the spatial index. Photos are
// projected onto the Web Mercator pixel plane and quantized into cells of a
// fixed screen-pixel edge, so one marker covers the same screen area at
// every zoom level. Cells are derived per query from the live index and
// never persisted; results are memoized keyed on the index generation, so a
// cached response is always identical to a fresh computation.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/photarium/internal/cache"
	"github.com/tomtom215/photarium/internal/config"
	"github.com/tomtom215/photarium/internal/logging"
	"github.com/tomtom215/photarium/internal/metrics"
	"github.com/tomtom215/photarium/internal/models"
	"github.com/tomtom215/photarium/internal/spatial"
)

var (
	// ErrInvalidQuery rejects malformed viewports and out-of-range zoom
	// levels before any index work happens.
	ErrInvalidQuery = errors.New("cluster: invalid query")

	// ErrNotFound reports a cluster id that cannot name any cell: a token
	// that does not decode, or decoded indices outside the valid range.
	// An id naming an empty cell is not an error; it lists no members.
	ErrNotFound = errors.New("cluster: not found")

	// ErrTimeout reports a query that exceeded its deadline.
	ErrTimeout = errors.New("cluster: query timeout")
)

// Service answers viewport cluster queries and cluster member listings
// against the spatial index. Safe for concurrent use.
type Service struct {
	grid  *spatial.Grid
	proj  projector
	cfg   config.ClusterConfig
	cache *cache.ResponseCache
}

// New builds the cluster service over a spatial index. Zero config fields
// fall back to usable defaults.
func New(grid *spatial.Grid, cfg config.ClusterConfig) *Service {
	if cfg.CellSizePx <= 0 {
		cfg.CellSizePx = defaultCellSizePx
	}
	if cfg.MinZoom < 0 {
		cfg.MinZoom = 0
	}
	if cfg.MaxZoom <= 0 {
		cfg.MaxZoom = 22
	}

	s := &Service{
		grid:  grid,
		proj:  newProjector(cfg.CellSizePx),
		cfg:   cfg,
		cache: cache.NewResponseCache(cfg.CacheSize, cfg.CacheTTL),
	}

	logging.Info().
		Int("cell_size_px", cfg.CellSizePx).
		Int("min_zoom", cfg.MinZoom).
		Int("max_zoom", cfg.MaxZoom).
		Dur("query_timeout", cfg.QueryTimeout).
		Int("cache_size", cfg.CacheSize).
		Dur("cache_ttl", cfg.CacheTTL).
		Msg("Cluster service config loaded")
	return s
}

// GetClusters returns the cluster cells visible in a viewport at a zoom
// level, largest count first. The viewport may wrap the antimeridian. The
// region query widens by one cell per side so cells straddling the viewport
// edge aggregate all their members, then cells whose footprint misses the
// viewport are dropped.
func (s *Service) GetClusters(ctx context.Context, viewport models.BoundingBox, zoom int) ([]models.ClusterCell, error) {
	started := time.Now()

	if err := viewport.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if zoom < s.cfg.MinZoom || zoom > s.cfg.MaxZoom {
		return nil, fmt.Errorf("%w: zoom %d outside [%d, %d]", ErrInvalidQuery, zoom, s.cfg.MinZoom, s.cfg.MaxZoom)
	}

	ctx, cancel := s.ensureDeadline(ctx)
	defer cancel()

	// The generation in the cache key pins the entry to the exact index
	// state; any mutation moves queries to fresh keys.
	generation := s.grid.Generation()
	key := s.cache.Key(viewport, zoom, generation)
	if cells, ok := s.cache.Get(key); ok {
		metrics.RecordClusterQuery("clusters", time.Since(started), true)
		return cells, nil
	}

	points := s.grid.QueryRegion(s.proj.expandByCell(viewport, zoom))
	if err := ctx.Err(); err != nil {
		return nil, s.queryErr(err)
	}

	cells := s.clusterPoints(points, viewport, zoom)
	s.cache.Set(key, cells)

	metrics.RecordClusterQuery("clusters", time.Since(started), false)
	return cells, nil
}

// GetClusterMembers lists the photo ids aggregated into one cluster cell,
// ascending. The id must come from a GetClusters response; ids that cannot
// name a cell return ErrNotFound. Members are recomputed from the live
// index, never cached, so the listing reflects mutations immediately.
func (s *Service) GetClusterMembers(ctx context.Context, id string) ([]int64, error) {
	started := time.Now()

	zoom, x, y, err := decodeCellID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cluster id %q", ErrNotFound, id)
	}
	if zoom < s.cfg.MinZoom || zoom > s.cfg.MaxZoom {
		return nil, fmt.Errorf("%w: cluster id %q zoom out of range", ErrNotFound, id)
	}
	if maxIdx := s.proj.maxCell(zoom); x < 0 || x > maxIdx || y < 0 || y > maxIdx {
		return nil, fmt.Errorf("%w: cluster id %q cell out of range", ErrNotFound, id)
	}

	ctx, cancel := s.ensureDeadline(ctx)
	defer cancel()

	// The cell footprint is boundary inclusive, so the scan can fetch
	// points sitting exactly on an edge shared with a neighbor cell.
	// Re-projecting each point keeps only true members.
	points := s.grid.QueryRegion(s.proj.cellBounds(zoom, x, y))
	if err := ctx.Err(); err != nil {
		return nil, s.queryErr(err)
	}

	want := cellKey{X: x, Y: y}
	ids := make([]int64, 0, len(points))
	for _, pt := range points {
		if s.proj.cellAt(pt.Coord, zoom) == want {
			ids = append(ids, pt.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	metrics.RecordClusterMembers(time.Since(started))
	return ids, nil
}

// clusterPoints quantizes points into cells, aggregates count and centroid,
// and drops cells whose footprint does not intersect the viewport. Output
// order is count descending, ties by cell x then y, so identical queries
// return identical listings.
func (s *Service) clusterPoints(points []spatial.Point, viewport models.BoundingBox, zoom int) []models.ClusterCell {
	type agg struct {
		count  int
		sumLat float64
		sumLng float64
	}
	byCell := make(map[cellKey]*agg)
	for _, pt := range points {
		key := s.proj.cellAt(pt.Coord, zoom)
		a := byCell[key]
		if a == nil {
			a = &agg{}
			byCell[key] = a
		}
		a.count++
		a.sumLat += pt.Coord.Lat
		a.sumLng += pt.Coord.Lng
	}

	cells := make([]models.ClusterCell, 0, len(byCell))
	for key, a := range byCell {
		bounds := s.proj.cellBounds(zoom, key.X, key.Y)
		if !bounds.Intersects(viewport) {
			continue
		}
		cells = append(cells, models.ClusterCell{
			ID:    encodeCellID(zoom, key.X, key.Y),
			Zoom:  zoom,
			CellX: key.X,
			CellY: key.Y,
			Centroid: models.Coordinate{
				Lat: a.sumLat / float64(a.count),
				Lng: a.sumLng / float64(a.count),
			},
			Bounds: bounds,
			Count:  a.count,
		})
	}

	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Count != cells[j].Count {
			return cells[i].Count > cells[j].Count
		}
		if cells[i].CellX != cells[j].CellX {
			return cells[i].CellX < cells[j].CellX
		}
		return cells[i].CellY < cells[j].CellY
	})
	return cells
}

// ensureDeadline applies the configured query timeout unless the caller
// already set a deadline.
func (s *Service) ensureDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.cfg.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.QueryTimeout)
}

// queryErr maps a context error observed mid-query. Deadline hits count as
// timeouts; caller cancellation passes through unchanged.
func (s *Service) queryErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		metrics.ClusterQueryTimeouts.Inc()
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
