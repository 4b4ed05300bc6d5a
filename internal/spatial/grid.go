// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

// Package spatial provides the in-memory spatial index over photo records:
// a uniform grid keyed by (longitude, latitude) with O(1) amortized insert,
// remove, and update, and bounded-region queries that enumerate only the
// buckets intersecting the request.
//
// A uniform grid was chosen over a balanced tree because photo coordinates
// cluster geographically: grid mutations are O(1) versus O(log n), and the
// bucket-size variance that clustering produces is acceptable for this
// workload.
package spatial

import (
	"errors"
	"math"
	"sync"

	"github.com/tomtom215/photarium/internal/models"
)

// DefaultCellSizeDegrees is the base grid resolution, roughly 550m of
// longitude at the equator. Fine enough that a bucket rarely exceeds a few
// hundred member photos even in dense libraries.
const DefaultCellSizeDegrees = 0.005

var (
	// ErrInvalidCoordinate rejects points outside the WGS84 envelope.
	// Records without a valid coordinate must never reach the index.
	ErrInvalidCoordinate = errors.New("spatial: coordinate outside WGS84 range")

	// ErrWriteConflict reports an insert for an id already present. Under
	// the single-writer-per-root discipline this cannot happen; when it
	// does, the caller logs the invariant violation and re-derives the
	// record instead of leaving the index inconsistent.
	ErrWriteConflict = errors.New("spatial: id already present in index")
)

// Point is one indexed photo position returned by region queries.
type Point struct {
	ID    int64
	Coord models.Coordinate
}

// CellKey identifies one grid bucket.
type CellKey struct {
	X, Y int
}

// entry is an indexed photo position. Entries are immutable once inserted;
// an update replaces the entry rather than mutating it, which is what lets
// queries read bucket snapshots outside the lock.
type entry struct {
	id    int64
	coord models.Coordinate
	key   CellKey
}

// cell is one grid bucket. The members slice is copy-on-write: mutations
// publish a fresh slice, never touching a previously published backing
// array, so a reader holding the old slice sees a consistent pre-mutation
// snapshot of the bucket.
type cell struct {
	members []*entry
}

// Grid is the uniform-grid spatial index. All mutations take the write lock;
// queries collect bucket snapshots under the read lock and filter outside
// it, so a long region scan never blocks writers for its full duration and
// never observes a half-applied mutation.
type Grid struct {
	mu         sync.RWMutex
	cells      map[CellKey]*cell
	entries    map[int64]*entry
	cellSize   float64
	generation int64
}

// NewGrid creates a grid with the given cell size in degrees. Sizes <= 0
// fall back to DefaultCellSizeDegrees.
func NewGrid(cellSizeDegrees float64) *Grid {
	if cellSizeDegrees <= 0 {
		cellSizeDegrees = DefaultCellSizeDegrees
	}
	return &Grid{
		cells:    make(map[CellKey]*cell),
		entries:  make(map[int64]*entry),
		cellSize: cellSizeDegrees,
	}
}

// keyFor quantizes a coordinate into its bucket.
func (g *Grid) keyFor(c models.Coordinate) CellKey {
	return CellKey{
		X: int(math.Floor(c.Lng / g.cellSize)),
		Y: int(math.Floor(c.Lat / g.cellSize)),
	}
}

// Insert adds a new photo position. Returns ErrInvalidCoordinate for points
// outside WGS84 and ErrWriteConflict when the id is already indexed.
func (g *Grid) Insert(id int64, coord models.Coordinate) error {
	if !coord.Valid() {
		return ErrInvalidCoordinate
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.entries[id]; exists {
		return ErrWriteConflict
	}
	g.insertLocked(id, coord)
	g.generation++
	return nil
}

// Update moves an id to a new coordinate, or inserts it when absent. The
// remove and insert happen under one critical section, so no query can
// observe the id missing in between.
func (g *Grid) Update(id int64, coord models.Coordinate) error {
	if !coord.Valid() {
		return ErrInvalidCoordinate
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.entries[id]; ok {
		g.detachLocked(existing)
	}
	g.insertLocked(id, coord)
	g.generation++
	return nil
}

// Remove deletes an id from the index. Returns false when the id was not
// present.
func (g *Grid) Remove(id int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing, ok := g.entries[id]
	if !ok {
		return false
	}
	g.detachLocked(existing)
	delete(g.entries, id)
	g.generation++
	return true
}

// insertLocked stores an entry and publishes a fresh member slice for its
// bucket. Caller must hold the write lock.
func (g *Grid) insertLocked(id int64, coord models.Coordinate) {
	key := g.keyFor(coord)
	e := &entry{id: id, coord: coord, key: key}

	c, exists := g.cells[key]
	if !exists {
		g.cells[key] = &cell{members: []*entry{e}}
	} else {
		members := make([]*entry, len(c.members)+1)
		copy(members, c.members)
		members[len(c.members)] = e
		c.members = members
	}
	g.entries[id] = e
}

// detachLocked unlinks an entry from its bucket, publishing a fresh member
// slice, and deletes the bucket when it empties. Caller must hold the write
// lock and remains responsible for the entries map.
func (g *Grid) detachLocked(e *entry) {
	c, exists := g.cells[e.key]
	if !exists {
		return
	}

	members := make([]*entry, 0, len(c.members)-1)
	for _, m := range c.members {
		if m.id != e.id {
			members = append(members, m)
		}
	}
	if len(members) == 0 {
		delete(g.cells, e.key)
		return
	}
	c.members = members
}

// Coordinate returns the indexed coordinate for an id.
func (g *Grid) Coordinate(id int64) (models.Coordinate, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, ok := g.entries[id]
	if !ok {
		return models.Coordinate{}, false
	}
	return e.coord, true
}

// Size returns the number of indexed positions.
func (g *Grid) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// CellSize returns the grid resolution in degrees.
func (g *Grid) CellSize() float64 {
	return g.cellSize
}

// Generation returns a counter incremented by every successful mutation.
// Query results are pure functions of (parameters, generation), which is
// what makes cached responses safe.
func (g *Grid) Generation() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.generation
}

// bucketSnapshot pairs a bucket's member slice with whether the bucket sits
// on the query boundary. Interior buckets are fully covered by the box and
// skip the per-point test.
type bucketSnapshot struct {
	members  []*entry
	boundary bool
}

// QueryRegion returns all points inside the box, boundary inclusive. A box
// wrapping the antimeridian is split and the halves merged. Only buckets
// intersecting the box are enumerated; members of boundary buckets are
// point-in-box tested, members of interior buckets are included directly.
func (g *Grid) QueryRegion(box models.BoundingBox) []Point {
	var out []Point
	for _, part := range box.SplitAntimeridian() {
		out = g.queryBox(part, out)
	}
	return out
}

func (g *Grid) queryBox(box models.BoundingBox, out []Point) []Point {
	minX := int(math.Floor(box.MinLng / g.cellSize))
	maxX := int(math.Floor(box.MaxLng / g.cellSize))
	minY := int(math.Floor(box.MinLat / g.cellSize))
	maxY := int(math.Floor(box.MaxLat / g.cellSize))

	// Collect bucket snapshots under the read lock; the copy-on-write
	// member slices stay valid and consistent after release.
	g.mu.RLock()
	snaps := make([]bucketSnapshot, 0, 16)
	if int64(maxX-minX+1)*int64(maxY-minY+1) > int64(len(g.cells)) {
		// The rectangle holds more candidate keys than the grid holds
		// occupied buckets, so range-test the occupied buckets instead.
		// A full-world viewport at base resolution spans billions of
		// candidate keys; enumerating those under the read lock stalls
		// every writer for the duration.
		for key, c := range g.cells {
			if key.X < minX || key.X > maxX || key.Y < minY || key.Y > maxY {
				continue
			}
			boundary := key.X == minX || key.X == maxX || key.Y == minY || key.Y == maxY
			snaps = append(snaps, bucketSnapshot{members: c.members, boundary: boundary})
		}
	} else {
		for x := minX; x <= maxX; x++ {
			for y := minY; y <= maxY; y++ {
				c, exists := g.cells[CellKey{X: x, Y: y}]
				if !exists {
					continue
				}
				// Cells strictly inside the enumerated range are fully
				// covered by the box; only perimeter cells need testing.
				boundary := x == minX || x == maxX || y == minY || y == maxY
				snaps = append(snaps, bucketSnapshot{members: c.members, boundary: boundary})
			}
		}
	}
	g.mu.RUnlock()

	for _, snap := range snaps {
		for _, e := range snap.members {
			if snap.boundary && !box.Contains(e.coord) {
				continue
			}
			out = append(out, Point{ID: e.id, Coord: e.coord})
		}
	}
	return out
}
