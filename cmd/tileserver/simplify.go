// SPDX-License-Identifier: MIT

package main

// Ramer-Douglas-Peucker simplification. Instead of building a new slice,
// the simplifier fills a keep mask so that callers can fuse dropping
// points with quantization.

// distToSegment2 returns the squared distance from p to the segment a-b.
func distToSegment2(a, b, p Point) float64 {
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	px := float64(p.X - a.X)
	py := float64(p.Y - a.Y)
	len2 := dx*dx + dy*dy
	if len2 == 0 {
		return px*px + py*py
	}
	t := (px*dx + py*dy) / len2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	ex := px - t*dx
	ey := py - t*dy
	return ex*ex + ey*ey
}

func simplifyRange(pts []Point, keep []bool, start, end int, thresh2 float64) {
	if end-start < 2 {
		return
	}
	maxDist2 := 0.0
	maxIndex := start
	for i := start + 1; i < end; i++ {
		d2 := distToSegment2(pts[start], pts[end], pts[i])
		if d2 > maxDist2 {
			maxDist2 = d2
			maxIndex = i
		}
	}
	if maxDist2 < thresh2 {
		return
	}
	keep[maxIndex] = true
	simplifyRange(pts, keep, start, maxIndex, thresh2)
	simplifyRange(pts, keep, maxIndex, end, thresh2)
}

// simplifyKeepMask marks which points survive simplification with
// threshold thresh. End points always survive. A nil result means no
// simplification applies and all points are kept.
func simplifyKeepMask(pts []Point, thresh float64) []bool {
	if thresh <= 0 || len(pts) < 3 {
		return nil
	}
	keep := make([]bool, len(pts))
	keep[0] = true
	keep[len(pts)-1] = true
	simplifyRange(pts, keep, 0, len(pts)-1, thresh*thresh)
	return keep
}
