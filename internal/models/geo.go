// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package models

import (
	"fmt"
	"strconv"
	"strings"
)

// BoundingBox is a geographic rectangle in degrees. MinLng may exceed MaxLng,
// which denotes a box crossing the antimeridian; SplitAntimeridian normalizes
// such a box into two conventional ones.
type BoundingBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// ParseBoundingBox parses the wire form "minLng,minLat,maxLng,maxLat" used
// by the bbox query parameter. The result is validated, so a wrapped box
// parses but inverted latitudes do not.
func ParseBoundingBox(s string) (BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, fmt.Errorf("bbox must have 4 comma-separated values, got %d", len(parts))
	}

	vals := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("bbox value %q: %w", part, err)
		}
		vals[i] = v
	}

	box := BoundingBox{MinLng: vals[0], MinLat: vals[1], MaxLng: vals[2], MaxLat: vals[3]}
	if err := box.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return box, nil
}

// Validate checks coordinate ranges. Latitude order is enforced; longitude
// order is not, because a wrapped box is legal.
func (b BoundingBox) Validate() error {
	if b.MinLat < -90 || b.MinLat > 90 || b.MaxLat < -90 || b.MaxLat > 90 {
		return fmt.Errorf("latitude out of range [-90, 90]: min=%v max=%v", b.MinLat, b.MaxLat)
	}
	if b.MinLng < -180 || b.MinLng > 180 || b.MaxLng < -180 || b.MaxLng > 180 {
		return fmt.Errorf("longitude out of range [-180, 180]: min=%v max=%v", b.MinLng, b.MaxLng)
	}
	if b.MinLat > b.MaxLat {
		return fmt.Errorf("min latitude %v greater than max latitude %v", b.MinLat, b.MaxLat)
	}
	return nil
}

// CrossesAntimeridian reports whether the box wraps at +/-180 degrees.
func (b BoundingBox) CrossesAntimeridian() bool {
	return b.MinLng > b.MaxLng
}

// SplitAntimeridian returns the box as one or two non-wrapping boxes.
// A conventional box is returned unchanged as a single element.
func (b BoundingBox) SplitAntimeridian() []BoundingBox {
	if !b.CrossesAntimeridian() {
		return []BoundingBox{b}
	}
	return []BoundingBox{
		{MinLng: b.MinLng, MinLat: b.MinLat, MaxLng: 180, MaxLat: b.MaxLat},
		{MinLng: -180, MinLat: b.MinLat, MaxLng: b.MaxLng, MaxLat: b.MaxLat},
	}
}

// Contains reports whether the point lies inside the box, boundary inclusive.
// Wrapped boxes are handled.
func (b BoundingBox) Contains(c Coordinate) bool {
	if c.Lat < b.MinLat || c.Lat > b.MaxLat {
		return false
	}
	if b.CrossesAntimeridian() {
		return c.Lng >= b.MinLng || c.Lng <= b.MaxLng
	}
	return c.Lng >= b.MinLng && c.Lng <= b.MaxLng
}

// Intersects reports whether the two boxes share any point, boundary
// inclusive. Wrapped boxes are handled on either side.
func (b BoundingBox) Intersects(o BoundingBox) bool {
	if b.MaxLat < o.MinLat || b.MinLat > o.MaxLat {
		return false
	}
	for _, bb := range b.SplitAntimeridian() {
		for _, oo := range o.SplitAntimeridian() {
			if bb.MinLng <= oo.MaxLng && bb.MaxLng >= oo.MinLng {
				return true
			}
		}
	}
	return false
}

// Expand grows the box by marginLng/marginLat degrees on each side, clamped
// to the WGS84 envelope. Longitude expansion past +/-180 wraps the box.
func (b BoundingBox) Expand(marginLng, marginLat float64) BoundingBox {
	out := b
	out.MinLat = clamp(b.MinLat-marginLat, -90, 90)
	out.MaxLat = clamp(b.MaxLat+marginLat, -90, 90)

	minLng := b.MinLng - marginLng
	maxLng := b.MaxLng + marginLng
	if b.CrossesAntimeridian() {
		// A wrapped box's uncovered gap shrinks by the margin on both
		// sides; once it closes the box covers every longitude. Wrapping
		// the edges past each other instead would flip the box into a
		// tiny non-wrapped one.
		if b.MinLng-b.MaxLng <= 2*marginLng {
			out.MinLng, out.MaxLng = -180, 180
			return out
		}
	} else if maxLng-minLng >= 360 {
		// A box already covering the full longitude span stays full
		// rather than degenerating into a wrap.
		out.MinLng, out.MaxLng = -180, 180
		return out
	}
	out.MinLng = wrapLng(minLng)
	out.MaxLng = wrapLng(maxLng)
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// wrapLng normalizes a longitude into [-180, 180].
func wrapLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}
