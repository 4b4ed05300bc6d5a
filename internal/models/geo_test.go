// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package models

import (
	"testing"
)

func TestBoundingBoxValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		box     BoundingBox
		wantErr bool
	}{
		{"valid", BoundingBox{MinLng: -10, MinLat: -10, MaxLng: 10, MaxLat: 10}, false},
		{"full world", BoundingBox{MinLng: -180, MinLat: -90, MaxLng: 180, MaxLat: 90}, false},
		{"wrapped longitude is legal", BoundingBox{MinLng: 170, MinLat: 0, MaxLng: -170, MaxLat: 10}, false},
		{"latitude order enforced", BoundingBox{MinLng: 0, MinLat: 10, MaxLng: 10, MaxLat: 0}, true},
		{"latitude out of range", BoundingBox{MinLng: 0, MinLat: -91, MaxLng: 10, MaxLat: 0}, true},
		{"longitude out of range", BoundingBox{MinLng: -181, MinLat: 0, MaxLng: 10, MaxLat: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.box.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseBoundingBox(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    BoundingBox
		wantErr bool
	}{
		{"plain", "-10,-5,10,5", BoundingBox{MinLng: -10, MinLat: -5, MaxLng: 10, MaxLat: 5}, false},
		{"with spaces", "-10, -5, 10, 5", BoundingBox{MinLng: -10, MinLat: -5, MaxLng: 10, MaxLat: 5}, false},
		{"wrapped", "170,-5,-170,5", BoundingBox{MinLng: 170, MinLat: -5, MaxLng: -170, MaxLat: 5}, false},
		{"fractional", "12.5,-0.25,13.75,0.5", BoundingBox{MinLng: 12.5, MinLat: -0.25, MaxLng: 13.75, MaxLat: 0.5}, false},
		{"three values", "-10,-5,10", BoundingBox{}, true},
		{"five values", "-10,-5,10,5,0", BoundingBox{}, true},
		{"not a number", "-10,abc,10,5", BoundingBox{}, true},
		{"empty", "", BoundingBox{}, true},
		{"latitude out of range", "-10,-95,10,5", BoundingBox{}, true},
		{"inverted latitudes", "-10,5,10,-5", BoundingBox{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseBoundingBox(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBoundingBox(%q) error = %v, wantErr = %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseBoundingBox(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestBoundingBoxContains(t *testing.T) {
	t.Parallel()

	box := BoundingBox{MinLng: -10, MinLat: -10, MaxLng: 10, MaxLat: 10}

	tests := []struct {
		name  string
		point Coordinate
		want  bool
	}{
		{"inside", Coordinate{Lat: 1, Lng: 1}, true},
		{"on min boundary", Coordinate{Lat: -10, Lng: -10}, true},
		{"on max boundary", Coordinate{Lat: 10, Lng: 10}, true},
		{"north of box", Coordinate{Lat: 10.001, Lng: 0}, false},
		{"west of box", Coordinate{Lat: 0, Lng: -10.001}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := box.Contains(tt.point); got != tt.want {
				t.Errorf("Contains(%+v) = %v, want %v", tt.point, got, tt.want)
			}
		})
	}
}

func TestBoundingBoxIntersects(t *testing.T) {
	t.Parallel()

	base := BoundingBox{MinLng: -10, MinLat: -10, MaxLng: 10, MaxLat: 10}
	wrapped := BoundingBox{MinLng: 170, MinLat: -5, MaxLng: -170, MaxLat: 5}

	tests := []struct {
		name string
		a, b BoundingBox
		want bool
	}{
		{"overlapping", base, BoundingBox{MinLng: 5, MinLat: 5, MaxLng: 20, MaxLat: 20}, true},
		{"touching edge", base, BoundingBox{MinLng: 10, MinLat: -10, MaxLng: 20, MaxLat: 10}, true},
		{"touching corner", base, BoundingBox{MinLng: 10, MinLat: 10, MaxLng: 20, MaxLat: 20}, true},
		{"disjoint east", base, BoundingBox{MinLng: 11, MinLat: -10, MaxLng: 20, MaxLat: 10}, false},
		{"disjoint north", base, BoundingBox{MinLng: -10, MinLat: 11, MaxLng: 10, MaxLat: 20}, false},
		{"contained", base, BoundingBox{MinLng: -1, MinLat: -1, MaxLng: 1, MaxLat: 1}, true},
		{"wrapped hits east side", wrapped, BoundingBox{MinLng: 160, MinLat: -5, MaxLng: 175, MaxLat: 5}, true},
		{"wrapped hits west side", wrapped, BoundingBox{MinLng: -175, MinLat: -5, MaxLng: -160, MaxLat: 5}, true},
		{"wrapped misses middle", wrapped, BoundingBox{MinLng: -10, MinLat: -5, MaxLng: 10, MaxLat: 5}, false},
		{"both wrapped", wrapped, BoundingBox{MinLng: 175, MinLat: -5, MaxLng: -175, MaxLat: 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.a.Intersects(tt.b); got != tt.want {
				t.Errorf("Intersects = %v, want %v", got, tt.want)
			}
			if got := tt.b.Intersects(tt.a); got != tt.want {
				t.Errorf("reverse Intersects = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoundingBoxAntimeridian(t *testing.T) {
	t.Parallel()

	wrapped := BoundingBox{MinLng: 170, MinLat: -5, MaxLng: -170, MaxLat: 5}

	if !wrapped.CrossesAntimeridian() {
		t.Fatal("expected wrapped box to report antimeridian crossing")
	}

	parts := wrapped.SplitAntimeridian()
	if len(parts) != 2 {
		t.Fatalf("expected 2 sub-boxes, got %d", len(parts))
	}
	if parts[0].MinLng != 170 || parts[0].MaxLng != 180 {
		t.Errorf("eastern sub-box = %+v, want [170, 180]", parts[0])
	}
	if parts[1].MinLng != -180 || parts[1].MaxLng != -170 {
		t.Errorf("western sub-box = %+v, want [-180, -170]", parts[1])
	}

	// Points on both sides of the wrap belong to the wrapped box.
	if !wrapped.Contains(Coordinate{Lat: 0, Lng: 175}) {
		t.Error("expected point at lng=175 inside wrapped box")
	}
	if !wrapped.Contains(Coordinate{Lat: 0, Lng: -175}) {
		t.Error("expected point at lng=-175 inside wrapped box")
	}
	if wrapped.Contains(Coordinate{Lat: 0, Lng: 0}) {
		t.Error("expected point at lng=0 outside wrapped box")
	}

	plain := BoundingBox{MinLng: -10, MinLat: -10, MaxLng: 10, MaxLat: 10}
	if got := plain.SplitAntimeridian(); len(got) != 1 {
		t.Errorf("plain box split into %d parts, want 1", len(got))
	}
}

func TestBoundingBoxExpand(t *testing.T) {
	t.Parallel()

	t.Run("plain expansion", func(t *testing.T) {
		t.Parallel()
		box := BoundingBox{MinLng: -10, MinLat: -10, MaxLng: 10, MaxLat: 10}
		got := box.Expand(1, 2)
		want := BoundingBox{MinLng: -11, MinLat: -12, MaxLng: 11, MaxLat: 12}
		if got != want {
			t.Errorf("Expand() = %+v, want %+v", got, want)
		}
	})

	t.Run("latitude clamps at poles", func(t *testing.T) {
		t.Parallel()
		box := BoundingBox{MinLng: 0, MinLat: 85, MaxLng: 10, MaxLat: 89}
		got := box.Expand(0, 5)
		if got.MaxLat != 90 {
			t.Errorf("MaxLat = %v, want clamp to 90", got.MaxLat)
		}
		if got.MinLat != 80 {
			t.Errorf("MinLat = %v, want 80", got.MinLat)
		}
	})

	t.Run("longitude wraps past antimeridian", func(t *testing.T) {
		t.Parallel()
		box := BoundingBox{MinLng: 175, MinLat: 0, MaxLng: 179, MaxLat: 10}
		got := box.Expand(3, 0)
		if !got.CrossesAntimeridian() {
			t.Fatalf("expected expansion past 180 to wrap, got %+v", got)
		}
		if got.MaxLng != -178 {
			t.Errorf("MaxLng = %v, want -178", got.MaxLng)
		}
	})

	t.Run("near-global box saturates", func(t *testing.T) {
		t.Parallel()
		box := BoundingBox{MinLng: -179, MinLat: -80, MaxLng: 179, MaxLat: 80}
		got := box.Expand(5, 0)
		if got.MinLng != -180 || got.MaxLng != 180 {
			t.Errorf("near-global expansion = %+v, want full longitude span", got)
		}
	})

	t.Run("wrapped box keeps its gap under a small margin", func(t *testing.T) {
		t.Parallel()
		box := BoundingBox{MinLng: 170, MinLat: -5, MaxLng: -170, MaxLat: 5}
		got := box.Expand(2, 0)
		if !got.CrossesAntimeridian() {
			t.Fatalf("expansion = %+v, want a still-wrapped box", got)
		}
		if got.MinLng != 168 || got.MaxLng != -168 {
			t.Errorf("expansion = %+v, want [168, -168]", got)
		}
	})

	t.Run("wrapped box saturates when the margin closes its gap", func(t *testing.T) {
		t.Parallel()
		// The uncovered gap (80..100) is narrower than twice the margin,
		// so the expanded box covers every longitude. Wrapping the edges
		// instead would flip it into a tiny non-wrapped box losing most
		// of the original coverage.
		box := BoundingBox{MinLng: 100, MinLat: -5, MaxLng: 80, MaxLat: 5}
		got := box.Expand(21, 0)
		if got.MinLng != -180 || got.MaxLng != 180 {
			t.Fatalf("expansion = %+v, want full longitude span", got)
		}
		if !got.Contains(Coordinate{Lat: 0, Lng: 0}) {
			t.Error("expanded box lost lng=0, which the original covers")
		}
	})
}

func TestCoordinateValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		coord Coordinate
		want  bool
	}{
		{"origin", Coordinate{0, 0}, true},
		{"extremes", Coordinate{Lat: -90, Lng: 180}, true},
		{"lat too high", Coordinate{Lat: 90.5, Lng: 0}, false},
		{"lng too low", Coordinate{Lat: 0, Lng: -180.5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.coord.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRootStateTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from RootState
		to   RootState
		want bool
	}{
		{RootStateIdle, RootStateScanning, true},
		{RootStateIdle, RootStateDiffing, true},
		{RootStateScanning, RootStateDiffing, true},
		{RootStateDiffing, RootStateApplying, true},
		{RootStateDiffing, RootStateIdle, true},
		{RootStateApplying, RootStateIdle, true},
		{RootStateApplying, RootStateError, true},
		{RootStateError, RootStateScanning, true},
		{RootStateError, RootStateStopped, true},
		{RootStateStopped, RootStateScanning, false},
		{RootStateIdle, RootStateApplying, false},
		{RootStateScanning, RootStateApplying, false},
		{RootStateError, RootStateIdle, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
