// SPDX-License-Identifier: MIT

package main

// Geometry inside a tile uses normalized coordinates: the unit square
// [0,1]×[0,1] covers the tile, x growing east and y growing north from
// the south-western corner.

type Point struct {
	X float32
	Y float32
}

type LineString []Point

// A Ring is a closed linestring whose last point repeats the first.
type Ring []Point

// A Polygon is one outer ring followed by any number of inner rings.
type Polygon []Ring

type MultiPolygon []Polygon

type MultiLineString []LineString

// ringArea returns the signed area of a closed ring, positive when the
// ring runs counterclockwise.
func ringArea(ring []Point) float64 {
	area := 0.0
	if len(ring) < 3 {
		return 0
	}
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		area += (float64(ring[j].X) - float64(ring[i].X)) *
			(float64(ring[j].Y) + float64(ring[i].Y))
		j = i
	}
	return area / 2
}

// pointInRing tests containment with the even-odd rule. Points on an edge
// may land on either side.
func pointInRing(ring []Point, p Point) bool {
	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		a, b := ring[i], ring[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := float64(b.X-a.X)*float64(p.Y-a.Y)/float64(b.Y-a.Y) + float64(a.X)
			if float64(p.X) < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// pointInPolygon applies the even-odd rule across all rings, so a point
// inside a hole counts as outside.
func pointInPolygon(poly Polygon, p Point) bool {
	inside := false
	for _, ring := range poly {
		if pointInRing(ring, p) {
			inside = !inside
		}
	}
	return inside
}

func inUnitSquare(p Point) bool {
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}

func sq(v float64) float64 { return v * v }

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
