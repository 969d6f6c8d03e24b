// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TileID identifies a map tile in the web mercator tile pyramid. Z is the
// zoom level whose data the tile carries; S is the styling zoom, which can
// exceed Z when a deep tile is synthesized from coarser source data.
type TileID struct {
	X int32
	Y int32
	Z int8
	S int8
}

// NoTileID is an out-of-range value, handy as a parse failure result.
var NoTileID = TileID{X: -1, Y: -1, Z: -1, S: -1}

func MakeTileID(zoom, x, y int32) TileID {
	return TileID{X: x, Y: y, Z: int8(zoom), S: int8(zoom)}
}

func (t TileID) String() string {
	if t.S != t.Z {
		return fmt.Sprintf("%d/%d/%d@%d", t.Z, t.X, t.Y, t.S)
	}
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// ParseTileID parses "z/x/y" as produced by String for same-zoom tiles.
func ParseTileID(s string) TileID {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return NoTileID
	}
	z, err1 := strconv.ParseInt(parts[0], 10, 8)
	x, err2 := strconv.ParseInt(parts[1], 10, 32)
	y, err3 := strconv.ParseInt(parts[2], 10, 32)
	if err1 != nil || err2 != nil || err3 != nil {
		return NoTileID
	}
	id := MakeTileID(int32(z), int32(x), int32(y))
	if !id.Valid() {
		return NoTileID
	}
	return id
}

func (t TileID) Valid() bool {
	if t.Z < 0 || t.Z > 30 || t.S < t.Z {
		return false
	}
	n := int32(1) << uint(t.Z)
	return t.X >= 0 && t.X < n && t.Y >= 0 && t.Y < n
}

// YTMS converts between XYZ and TMS row numbering. The conversion is its
// own inverse.
func (t TileID) YTMS() int32 {
	return (int32(1) << uint(t.Z)) - 1 - t.Y
}

// Less orders tiles by styling zoom (deepest first), then source zoom
// (deepest first), then column and row. Deep tiles come first so that
// pre-building a region fills the most detailed tiles before overviews.
func (t TileID) Less(o TileID) bool {
	if t.S != o.S {
		return t.S > o.S
	}
	if t.Z != o.Z {
		return t.Z > o.Z
	}
	if t.X != o.X {
		return t.X < o.X
	}
	return t.Y < o.Y
}

// WithMaxSourceZoom caps the source zoom at maxZoom, keeping the styling
// zoom. A 15/100/200 tile with maxZoom 14 becomes the 14/50/100 tile
// styled for zoom 15.
func (t TileID) WithMaxSourceZoom(maxZoom int8) TileID {
	id := t
	for id.Z > maxZoom {
		id.X >>= 1
		id.Y >>= 1
		id.Z--
	}
	return id
}

// Parent returns the tile one styling zoom up. Over-zoomed tiles first
// shed styling zoom before the quad tree is ascended.
func (t TileID) Parent() TileID {
	if t.S > t.Z {
		return TileID{X: t.X, Y: t.Y, Z: t.Z, S: t.S - 1}
	}
	return TileID{X: t.X >> 1, Y: t.Y >> 1, Z: t.Z - 1, S: t.S - 1}
}

// Child returns one of the four tiles at the next styling zoom. Index
// counts quadrants column-first: 0 and 1 share the western column. When
// the child zoom exceeds maxZoom, the child keeps this tile's source data
// and only the styling zoom grows.
func (t TileID) Child(index int, maxZoom int8) TileID {
	if t.S >= maxZoom || t.S > t.Z {
		return TileID{X: t.X, Y: t.Y, Z: t.Z, S: t.S + 1}
	}
	i := int32(index) / 2
	j := int32(index) % 2
	return TileID{X: t.X<<1 + i, Y: t.Y<<1 + j, Z: t.Z + 1, S: t.S + 1}
}

// Web mercator projection. Coordinates in projected meters have their
// origin at lng 0 / lat 0 and span ±half the earth circumference.

const (
	earthRadius        = 6378137.0
	earthCircumference = 2 * math.Pi * earthRadius
	earthHalfCircumf   = earthCircumference / 2
)

type LngLat struct {
	Lng float64
	Lat float64
}

type ProjectedMeters struct {
	X float64
	Y float64
}

func metersPerTileAtZoom(zoom int8) float64 {
	return earthCircumference / float64(int64(1)<<uint(zoom))
}

func lngLatToProjectedMeters(p LngLat) ProjectedMeters {
	return ProjectedMeters{
		X: p.Lng * earthHalfCircumf / 180,
		Y: earthRadius * math.Log(math.Tan(math.Pi/4+p.Lat*math.Pi/360)),
	}
}

func projectedMetersToLngLat(m ProjectedMeters) LngLat {
	return LngLat{
		Lng: m.X / earthHalfCircumf * 180,
		Lat: (2*math.Atan(math.Exp(m.Y/earthRadius)) - math.Pi/2) * 180 / math.Pi,
	}
}

func wrapLongitude(lng float64) float64 {
	for lng < -180 {
		lng += 360
	}
	for lng > 180 {
		lng -= 360
	}
	return lng
}

// tileSouthWestCorner returns the projected coordinates of the tile's
// south-western corner. Tile rows count from the north, so the corner is
// one row below Y.
func tileSouthWestCorner(t TileID) ProjectedMeters {
	size := metersPerTileAtZoom(t.Z)
	return ProjectedMeters{
		X: float64(t.X)*size - earthHalfCircumf,
		Y: earthHalfCircumf - float64(t.Y+1)*size,
	}
}

func tileCenter(t TileID) ProjectedMeters {
	sw := tileSouthWestCorner(t)
	half := metersPerTileAtZoom(t.Z) / 2
	return ProjectedMeters{X: sw.X + half, Y: sw.Y + half}
}

// tileBounds returns the tile's extent in projected meters.
func tileBounds(t TileID) Box {
	sw := tileSouthWestCorner(t)
	size := metersPerTileAtZoom(t.Z)
	return Box{MinX: sw.X, MinY: sw.Y, MaxX: sw.X + size, MaxY: sw.Y + size}
}
