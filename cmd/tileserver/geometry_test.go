// SPDX-License-Identifier: MIT

package main

import (
	"math"
	"testing"
)

func TestRingArea(t *testing.T) {
	ccw := Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	if got := ringArea(ccw); math.Abs(got-1) > 1e-7 {
		t.Errorf("ccw unit square area = %f, want 1", got)
	}
	cw := Ring{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}
	if got := ringArea(cw); math.Abs(got+1) > 1e-7 {
		t.Errorf("cw unit square area = %f, want -1", got)
	}
}

func TestPointInRing(t *testing.T) {
	ring := Ring{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}}
	for _, tc := range []struct {
		p    Point
		want bool
	}{
		{Point{2, 2}, true},
		{Point{5, 2}, false},
		{Point{-1, -1}, false},
		{Point{3.9, 3.9}, true},
	} {
		if got := pointInRing(ring, tc.p); got != tc.want {
			t.Errorf("pointInRing(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
}

func TestPointInPolygonWithHole(t *testing.T) {
	poly := Polygon{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}},
	}
	if !pointInPolygon(poly, Point{2, 2}) {
		t.Error("point between outer and hole should be inside")
	}
	if pointInPolygon(poly, Point{5, 5}) {
		t.Error("point inside the hole should be outside")
	}
	if pointInPolygon(poly, Point{11, 5}) {
		t.Error("point beyond the outer ring should be outside")
	}
}

func TestBoxIntersects(t *testing.T) {
	a := Box{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	if !a.Intersects(Box{MinX: 5, MinY: 5, MaxX: 15, MaxY: 15}) {
		t.Error("overlapping boxes should intersect")
	}
	if a.Intersects(Box{MinX: 11, MinY: 0, MaxX: 12, MaxY: 10}) {
		t.Error("disjoint boxes should not intersect")
	}
}
