// SPDX-License-Identifier: MIT

package main

import (
	"math"
	"testing"
)

func ringsEqual(a, b Ring) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(float64(a[i].X-b[i].X)) > 1e-6 || math.Abs(float64(a[i].Y-b[i].Y)) > 1e-6 {
			return false
		}
	}
	return true
}

func TestClipRingInside(t *testing.T) {
	ring := Ring{{0.2, 0.2}, {0.8, 0.2}, {0.8, 0.8}, {0.2, 0.8}, {0.2, 0.2}}
	got := clipRingUnit(ring)
	if !ringsEqual(got, ring) {
		t.Errorf("fully inside ring changed: %v", got)
	}
}

func TestClipRingOutside(t *testing.T) {
	ring := Ring{{2, 2}, {3, 2}, {3, 3}, {2, 3}, {2, 2}}
	if got := clipRingUnit(ring); got != nil {
		t.Errorf("fully outside ring should clip to nil, got %v", got)
	}
}

func TestClipRingStraddling(t *testing.T) {
	// A square poking out of the east edge clips to the unit square part.
	ring := Ring{{0.5, 0.25}, {1.5, 0.25}, {1.5, 0.75}, {0.5, 0.75}, {0.5, 0.25}}
	got := clipRingUnit(ring)
	if got == nil {
		t.Fatal("straddling ring clipped away entirely")
	}
	if got[0] != got[len(got)-1] {
		t.Errorf("clipped ring is not closed: %v", got)
	}
	area := math.Abs(ringArea(got))
	if math.Abs(area-0.25) > 1e-6 {
		t.Errorf("clipped area = %f, want 0.25", area)
	}
	for _, p := range got {
		if p.X < -1e-6 || p.X > 1+1e-6 || p.Y < -1e-6 || p.Y > 1+1e-6 {
			t.Errorf("clipped point %v outside unit square", p)
		}
	}
}

func TestClipRingIdempotent(t *testing.T) {
	ring := Ring{{-0.5, 0.5}, {0.5, -0.5}, {1.5, 0.5}, {0.5, 1.5}, {-0.5, 0.5}}
	once := clipRingUnit(ring)
	twice := clipRingUnit(once)
	if !ringsEqual(once, twice) {
		t.Errorf("clipping twice changed the result:\nonce:  %v\ntwice: %v", once, twice)
	}
}

func TestClipLinesSplit(t *testing.T) {
	// A horizontal zig-zag leaving and re-entering the square splits in
	// two pieces.
	lines := MultiLineString{{{0.2, 0.5}, {1.5, 0.5}, {1.5, 0.7}, {0.8, 0.7}}}
	got := clipLinesUnit(lines)
	if len(got) != 2 {
		t.Fatalf("got %d pieces, want 2: %v", len(got), got)
	}
	for _, line := range got {
		if len(line) < 2 {
			t.Errorf("degenerate piece %v", line)
		}
		for _, p := range line {
			if p.X < -1e-6 || p.X > 1+1e-6 {
				t.Errorf("point %v outside unit square", p)
			}
		}
	}
}

func TestClipLinesInside(t *testing.T) {
	lines := MultiLineString{{{0.1, 0.1}, {0.9, 0.9}}}
	got := clipLinesUnit(lines)
	if len(got) != 1 || len(got[0]) != 2 {
		t.Errorf("fully inside line changed: %v", got)
	}
}
