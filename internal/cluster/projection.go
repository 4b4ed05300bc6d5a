// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package cluster

import (
	"math"

	"github.com/tomtom215/photarium/internal/models"
)

const (
	// tileSize is the Web Mercator base tile edge in pixels. The pixel
	// plane at zoom z spans tileSize * 2^z pixels per axis.
	tileSize = 256

	// maxMercatorLat is the latitude where the Web Mercator projection
	// cuts off. Latitudes beyond it clamp to the top or bottom pixel row.
	maxMercatorLat = 85.05112878

	defaultCellSizePx = 60
)

// worldSizePx returns the pixel span of the projected world at a zoom level.
func worldSizePx(zoom int) float64 {
	return tileSize * math.Pow(2, float64(zoom))
}

// project maps a coordinate onto the zoom level's pixel plane. X grows east
// from longitude -180, Y grows south from the mercator cutoff latitude.
func project(c models.Coordinate, zoom int) (px, py float64) {
	world := worldSizePx(zoom)
	lat := clampFloat(c.Lat, -maxMercatorLat, maxMercatorLat)

	px = (c.Lng + 180) / 360 * world
	siny := math.Sin(lat * math.Pi / 180)
	py = (0.5 - math.Log((1+siny)/(1-siny))/(4*math.Pi)) * world
	return px, py
}

// unproject maps pixel-plane coordinates back to geographic coordinates.
func unproject(px, py float64, zoom int) models.Coordinate {
	world := worldSizePx(zoom)
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*py/world)))
	return models.Coordinate{
		Lat: latRad * 180 / math.Pi,
		Lng: px/world*360 - 180,
	}
}

// cellKey identifies one cluster cell on a zoom level's pixel plane.
type cellKey struct {
	X, Y int
}

// projector quantizes the pixel plane into cells of a fixed screen-pixel
// edge. Cell footprints are square in pixels, so markers cover the same
// screen area at every zoom level and latitude.
type projector struct {
	cellPx float64
}

func newProjector(cellSizePx int) projector {
	if cellSizePx <= 0 {
		cellSizePx = defaultCellSizePx
	}
	return projector{cellPx: float64(cellSizePx)}
}

// maxCell returns the largest valid cell index per axis at a zoom level.
func (p projector) maxCell(zoom int) int {
	return int(math.Ceil(worldSizePx(zoom)/p.cellPx)) - 1
}

// cellAt returns the cell containing a coordinate. Points projecting onto
// the world edge (longitude 180, clamped polar latitudes) land in the last
// valid cell rather than one past it.
func (p projector) cellAt(c models.Coordinate, zoom int) cellKey {
	px, py := project(c, zoom)
	maxIdx := p.maxCell(zoom)
	return cellKey{
		X: clampInt(int(math.Floor(px/p.cellPx)), 0, maxIdx),
		Y: clampInt(int(math.Floor(py/p.cellPx)), 0, maxIdx),
	}
}

// cellBounds returns the geographic footprint of a cell. The footprint is
// what member queries scan, so it must contain every coordinate cellAt
// assigns to the cell: polar rows widen to the poles to cover clamped
// latitudes, and the last column and row clip to the world edge.
func (p projector) cellBounds(zoom, x, y int) models.BoundingBox {
	world := worldSizePx(zoom)

	minPx := float64(x) * p.cellPx
	minPy := float64(y) * p.cellPx
	maxPx := math.Min(minPx+p.cellPx, world)
	maxPy := math.Min(minPy+p.cellPx, world)

	nw := unproject(minPx, minPy, zoom)
	se := unproject(maxPx, maxPy, zoom)

	box := models.BoundingBox{
		MinLng: nw.Lng,
		MinLat: se.Lat,
		MaxLng: se.Lng,
		MaxLat: nw.Lat,
	}
	if y == 0 {
		box.MaxLat = 90
	}
	if y == p.maxCell(zoom) {
		box.MinLat = -90
	}
	return box
}

// expandByCell grows a viewport by one cell's footprint on every side, so a
// region query also fetches points whose cell straddles the viewport edge.
func (p projector) expandByCell(box models.BoundingBox, zoom int) models.BoundingBox {
	world := worldSizePx(zoom)
	lngMargin := p.cellPx / world * 360

	// Latitude degrees per pixel vary with latitude, so derive the margin
	// by shifting the top and bottom edges one cell in pixel space.
	_, topPy := project(models.Coordinate{Lat: box.MaxLat}, zoom)
	_, bottomPy := project(models.Coordinate{Lat: box.MinLat}, zoom)
	topMargin := unproject(0, topPy-p.cellPx, zoom).Lat - box.MaxLat
	bottomMargin := box.MinLat - unproject(0, bottomPy+p.cellPx, zoom).Lat
	latMargin := math.Max(topMargin, bottomMargin)
	if latMargin < 0 {
		latMargin = 0
	}

	return box.Expand(lngMargin, latMargin)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
