// SPDX-License-Identifier: MIT

package main

import (
	"log"
	"math"
	"sort"
)

// Coastline ways carry water on their right side, so after clipping to
// the tile the land side is bounded by the segments plus stretches of
// the tile perimeter. Stitching joins segments end to end, closes the
// remaining open ones clockwise along the perimeter, and assigns inner
// rings (lakes inside land) to their outer rings.

// perimDistCW returns the clockwise distance along the tile perimeter
// from (0,0) to p, in [0,4). Returns -1 when p is not on the perimeter.
func perimDistCW(p Point) float64 {
	switch {
	case p.X == 0:
		return float64(p.Y)
	case p.Y == 1:
		return 1 + float64(p.X)
	case p.X == 1:
		return 2 + float64(1-p.Y)
	case p.Y == 0:
		return 3 + float64(1-p.X)
	}
	return -1
}

var tileCorners = [4]Point{{0, 0}, {0, 1}, {1, 1}, {1, 0}}

func (b *tileBuilder) addCoastline(way Feature) {
	b.coastline = append(b.coastline, b.loadWayFeature(way)...)
}

func (b *tileBuilder) buildCoastline() {
	if verbose {
		log.Printf("processing %d coastline segments for tile %s", len(b.coastline), b.id)
	}

	var outers MultiPolygon
	var inners []Ring
	addRing := func(ring Ring) {
		// Outer rings run clockwise here (water right of way), so their
		// signed area is negative.
		if ringArea(ring) > 0 {
			inners = append(inners, ring)
		} else {
			outers = append(outers, Polygon{ring})
		}
	}

	segments := make(map[Point]LineString)
	for _, way := range b.coastline {
		if len(way) < 2 {
			continue
		}
		if way[0] == way[len(way)-1] {
			addRing(Ring(way))
		} else {
			segments[way[0]] = way
		}
	}

	// Join segments whose tail matches another segment's head. Heads are
	// visited in sorted order so the output is deterministic.
	heads := make([]Point, 0, len(segments))
	for h := range segments {
		heads = append(heads, h)
	}
	sort.Slice(heads, func(i, j int) bool {
		a, b := heads[i], heads[j]
		return a.X < b.X || (a.X == b.X && a.Y < b.Y)
	})
	for _, h := range heads {
		ring, ok := segments[h]
		if !ok {
			continue
		}
		for {
			tail := ring[len(ring)-1]
			if tail == h {
				delete(segments, h)
				addRing(Ring(ring))
				break
			}
			next, ok := segments[tail]
			if !ok {
				segments[h] = ring
				break
			}
			delete(segments, tail)
			ring = append(ring, next...)
		}
	}

	// The remaining open segments enter and leave the tile. Walk each
	// one's tail clockwise along the perimeter, inserting corners, until
	// it reaches the head of the next segment.
	type edgeSeg struct {
		d   float64
		pts LineString
	}
	var edge []edgeSeg
	for _, h := range heads {
		seg, ok := segments[h]
		if !ok {
			continue
		}
		d := perimDistCW(seg[0])
		if d < 0 {
			log.Printf("invalid coastline segment for tile %s", b.id)
			return
		}
		edge = append(edge, edgeSeg{d: d, pts: seg})
	}
	sort.Slice(edge, func(i, j int) bool { return edge[i].d < edge[j].d })

	removed := make([]bool, len(edge))
	findNext := func(d float64) int {
		for k := range edge {
			if !removed[k] && edge[k].d >= d {
				return k
			}
		}
		for k := range edge {
			if !removed[k] {
				return k
			}
		}
		return -1
	}
	for ii := range edge {
		if removed[ii] {
			continue
		}
		ring := edge[ii].pts
		for {
			dback := perimDistCW(ring[len(ring)-1])
			if dback < 0 {
				log.Printf("invalid coastline segment for tile %s", b.id)
				return
			}
			next := findNext(dback)
			dfront := edge[next].d
			dest := edge[next].pts[0]
			if dfront < dback {
				dfront += 4
			}
			for c := int(math.Ceil(dback)); float64(c) < dfront; c++ {
				ring = append(ring, tileCorners[c%4])
			}
			if next == ii {
				ring = append(ring, dest)
				addRing(Ring(ring))
				removed[ii] = true
				break
			}
			ring = append(ring, edge[next].pts...)
			removed[next] = true
		}
	}

	// A tile without outer rings is open water with islands at most.
	if len(outers) == 0 {
		outers = MultiPolygon{{Ring{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}}}
	}
	if len(outers) == 1 {
		for _, inner := range inners {
			outers[0] = append(outers[0], inner)
		}
	} else {
		for _, inner := range inners {
			// Prefer a point off the tile edge, since outer rings run
			// along the edge and containment there is shaky.
			pin := inner[0]
			for _, p := range inner {
				if p.X != 0 && p.Y != 0 && p.X != 1 && p.Y != 1 {
					pin = p
					break
				}
			}
			for oi := range outers {
				if pointInRing(outers[oi][0], pin) {
					outers[oi] = append(outers[oi], inner)
					break
				}
			}
		}
	}

	for _, outer := range outers {
		for _, ring := range outer {
			tilePts := b.toTilePts(ring, true)
			if len(tilePts) < 4 {
				continue
			}
			if tilePts[0] != tilePts[len(tilePts)-1] {
				if verbose {
					log.Printf("invalid coastline polygon for tile %s", b.id)
				}
				continue
			}
			b.hasGeom = true
			b.builtPts += len(tilePts)
			b.cur.addRing(tilePts)
		}
	}
}
