// SPDX-License-Identifier: MIT

package main

import (
	"container/heap"
	"math"
)

// Pole of inaccessibility: the interior point of a polygon farthest from
// its boundary. Found with a quadtree search over square cells, visiting
// the most promising cell first.

// segDistToPolygon returns the signed distance from p to the polygon
// boundary, positive inside.
func signedDistToPolygon(poly Polygon, p Point) float64 {
	minDist2 := math.Inf(1)
	for _, ring := range poly {
		j := len(ring) - 1
		for i := 0; i < len(ring); i++ {
			d2 := distToSegment2(ring[j], ring[i], p)
			if d2 < minDist2 {
				minDist2 = d2
			}
			j = i
		}
	}
	dist := math.Sqrt(minDist2)
	if !pointInPolygon(poly, p) {
		return -dist
	}
	return dist
}

type plCell struct {
	x, y float64 // center
	h    float64 // half size
	d    float64 // signed distance of the center
	max  float64 // upper bound on distance within the cell
}

func newPLCell(poly Polygon, x, y, h float64) plCell {
	d := signedDistToPolygon(poly, Point{X: float32(x), Y: float32(y)})
	return plCell{x: x, y: y, h: h, d: d, max: d + h*math.Sqrt2}
}

type plHeap []plCell

func (h plHeap) Len() int            { return len(h) }
func (h plHeap) Less(i, j int) bool  { return h[i].max > h[j].max }
func (h plHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *plHeap) Push(x interface{}) { *h = append(*h, x.(plCell)) }
func (h *plHeap) Pop() interface{} {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// polylabel returns the pole of inaccessibility of poly, to within
// precision. The second result is the distance from the boundary.
func polylabel(poly Polygon, precision float64) (Point, float64) {
	var minX, minY, maxX, maxY float32
	outer := poly[0]
	minX, minY = outer[0].X, outer[0].Y
	maxX, maxY = minX, minY
	for _, p := range outer {
		minX, minY = minf(minX, p.X), minf(minY, p.Y)
		maxX, maxY = maxf(maxX, p.X), maxf(maxY, p.Y)
	}
	width := float64(maxX - minX)
	height := float64(maxY - minY)
	cellSize := math.Min(width, height)
	if cellSize == 0 {
		return Point{X: minX, Y: minY}, 0
	}

	h := cellSize / 2
	cells := plHeap{}
	for x := float64(minX); x < float64(maxX); x += cellSize {
		for y := float64(minY); y < float64(maxY); y += cellSize {
			cells = append(cells, newPLCell(poly, x+h, y+h, h))
		}
	}
	heap.Init(&cells)

	// Centroid and bbox center as starting guesses.
	best := newPLCell(poly, ringCentroidX(outer), ringCentroidY(outer), 0)
	if c := newPLCell(poly, float64(minX)+width/2, float64(minY)+height/2, 0); c.d > best.d {
		best = c
	}

	for cells.Len() > 0 {
		cell := heap.Pop(&cells).(plCell)
		if cell.d > best.d {
			best = cell
		}
		if cell.max-best.d <= precision {
			continue
		}
		h := cell.h / 2
		heap.Push(&cells, newPLCell(poly, cell.x-h, cell.y-h, h))
		heap.Push(&cells, newPLCell(poly, cell.x+h, cell.y-h, h))
		heap.Push(&cells, newPLCell(poly, cell.x-h, cell.y+h, h))
		heap.Push(&cells, newPLCell(poly, cell.x+h, cell.y+h, h))
	}
	return Point{X: float32(best.x), Y: float32(best.y)}, best.d
}

func ringCentroidX(ring Ring) float64 { x, _ := ringCentroid(ring); return x }
func ringCentroidY(ring Ring) float64 { _, y := ringCentroid(ring); return y }

func ringCentroid(ring Ring) (float64, float64) {
	var area, cx, cy float64
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		a := float64(ring[j].X)*float64(ring[i].Y) - float64(ring[i].X)*float64(ring[j].Y)
		area += a
		cx += (float64(ring[j].X) + float64(ring[i].X)) * a
		cy += (float64(ring[j].Y) + float64(ring[i].Y)) * a
		j = i
	}
	if area == 0 {
		return float64(ring[0].X), float64(ring[0].Y)
	}
	return cx / (3 * area), cy / (3 * area)
}
