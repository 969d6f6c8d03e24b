// SPDX-License-Identifier: MIT

package main

import "testing"

func applyMask(pts []Point, keep []bool) []Point {
	if keep == nil {
		return pts
	}
	out := make([]Point, 0, len(pts))
	for i, p := range pts {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

func TestSimplifyCollinear(t *testing.T) {
	pts := []Point{{0, 0}, {0.25, 0}, {0.5, 0}, {0.75, 0}, {1, 0}}
	got := applyMask(pts, simplifyKeepMask(pts, 0.01))
	if len(got) != 2 || got[0] != pts[0] || got[1] != pts[4] {
		t.Errorf("collinear points should reduce to endpoints, got %v", got)
	}
}

func TestSimplifyKeepsDetail(t *testing.T) {
	pts := []Point{{0, 0}, {0.5, 0.3}, {1, 0}}
	got := applyMask(pts, simplifyKeepMask(pts, 0.01))
	if len(got) != 3 {
		t.Errorf("significant vertex dropped, got %v", got)
	}
}

func TestSimplifyThresholdZero(t *testing.T) {
	pts := []Point{{0, 0}, {0.25, 0}, {0.5, 0}, {1, 0}}
	if mask := simplifyKeepMask(pts, 0); mask != nil {
		t.Errorf("zero threshold must keep everything, got mask %v", mask)
	}
}

func TestSimplifyEndpointsSurvive(t *testing.T) {
	pts := []Point{{0, 0}, {0.1, 0.01}, {0.2, -0.01}, {0.3, 0}, {1, 1}}
	mask := simplifyKeepMask(pts, 0.5)
	if mask == nil {
		t.Fatal("expected a mask")
	}
	if !mask[0] || !mask[len(pts)-1] {
		t.Errorf("endpoints must survive, mask %v", mask)
	}
}
