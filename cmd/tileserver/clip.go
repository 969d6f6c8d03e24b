// SPDX-License-Identifier: MIT

package main

// Sutherland-Hodgman clipping against the unit square, one half-plane at
// a time. Points exactly on a clip edge count as inside, which makes the
// clip idempotent: running it twice yields the same geometry as once.

const (
	axisX = 0
	axisY = 1
)

func coordOf(p Point, axis int) float32 {
	if axis == axisX {
		return p.X
	}
	return p.Y
}

func intersectAxis(a, b Point, axis int, k float32) Point {
	t := float64(k-coordOf(a, axis)) / float64(coordOf(b, axis)-coordOf(a, axis))
	if axis == axisX {
		return Point{X: k, Y: a.Y + float32(t)*(b.Y-a.Y)}
	}
	return Point{X: a.X + float32(t)*(b.X-a.X), Y: k}
}

// clipRingHalf clips an open ring against one half-plane. With lower set,
// points with coordinate >= k survive, otherwise points with coordinate
// <= k. The result is again an open ring.
func clipRingHalf(pts []Point, axis int, k float32, lower bool) []Point {
	inside := func(p Point) bool {
		if lower {
			return coordOf(p, axis) >= k
		}
		return coordOf(p, axis) <= k
	}
	out := make([]Point, 0, len(pts)+4)
	n := len(pts)
	for i := 0; i < n; i++ {
		cur := pts[i]
		prev := pts[(i+n-1)%n]
		if inside(cur) {
			if !inside(prev) {
				out = append(out, intersectAxis(prev, cur, axis, k))
			}
			out = append(out, cur)
		} else if inside(prev) {
			out = append(out, intersectAxis(prev, cur, axis, k))
		}
	}
	return out
}

// clipRingBox clips a closed ring to an axis-aligned box. The input
// carries a duplicate closing point and so does the non-empty result.
func clipRingBox(ring Ring, minX, minY, maxX, maxY float32) Ring {
	if len(ring) < 4 {
		return nil
	}
	open := []Point(ring[:len(ring)-1])
	open = clipRingHalf(open, axisX, minX, true)
	open = clipRingHalf(open, axisX, maxX, false)
	open = clipRingHalf(open, axisY, minY, true)
	open = clipRingHalf(open, axisY, maxY, false)
	if len(open) < 3 {
		return nil
	}
	return Ring(append(open, open[0]))
}

// clipRingUnit clips a closed ring to the unit square.
func clipRingUnit(ring Ring) Ring {
	return clipRingBox(ring, 0, 0, 1, 1)
}

// clipLinesHalf clips linestrings against one half-plane, splitting each
// line wherever it leaves the kept side.
func clipLinesHalf(lines MultiLineString, axis int, k float32, lower bool) MultiLineString {
	inside := func(p Point) bool {
		if lower {
			return coordOf(p, axis) >= k
		}
		return coordOf(p, axis) <= k
	}
	var out MultiLineString
	var cur LineString
	flush := func() {
		if len(cur) >= 2 {
			out = append(out, cur)
		}
		cur = nil
	}
	for _, line := range lines {
		for i, p := range line {
			if i == 0 {
				if inside(p) {
					cur = append(cur, p)
				}
				continue
			}
			prev := line[i-1]
			switch {
			case inside(p) && inside(prev):
				cur = append(cur, p)
			case inside(p): // entering
				cur = append(cur, intersectAxis(prev, p, axis, k), p)
			case inside(prev): // leaving
				cur = append(cur, intersectAxis(prev, p, axis, k))
				flush()
			}
		}
		flush()
	}
	return out
}

// clipLinesUnit clips linestrings to the unit square.
func clipLinesUnit(lines MultiLineString) MultiLineString {
	lines = clipLinesHalf(lines, axisX, 0, true)
	lines = clipLinesHalf(lines, axisX, 1, false)
	lines = clipLinesHalf(lines, axisY, 0, true)
	lines = clipLinesHalf(lines, axisY, 1, false)
	return lines
}
