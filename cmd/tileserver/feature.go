// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// The tile builder consumes features through this surface. A feature is
// an OSM node, way or relation with its tags and geometry in projected
// meters; stores index features by bounding box.

type FeatureKind int

const (
	NodeFeature FeatureKind = iota
	WayFeature
	RelationFeature
)

func (k FeatureKind) String() string {
	switch k {
	case NodeFeature:
		return "node"
	case WayFeature:
		return "way"
	default:
		return "relation"
	}
}

// TagValue is an OSM tag value. The zero value means the tag is absent.
type TagValue string

// Bool reports whether the tag is present at all. OSM semantics: any
// value counts, including "no" and "0".
func (v TagValue) Bool() bool { return v != "" }

func (v TagValue) Str() string { return string(v) }

// Num parses the value as a number, 0 if absent or malformed.
func (v TagValue) Num() float64 {
	f, err := strconv.ParseFloat(string(v), 64)
	if err != nil {
		return 0
	}
	return f
}

// Box is an axis-aligned bounding box in projected meters.
type Box struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

func (b Box) Intersects(o Box) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX && b.MinY <= o.MaxY && o.MinY <= b.MaxY
}

func (b Box) ContainsPoint(p ProjectedMeters) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

func (b Box) Width() float64  { return b.MaxX - b.MinX }
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// MercRing is a ring or linestring in projected meters.
type MercRing []ProjectedMeters

// MercPolygon is an outer ring followed by inner rings.
type MercPolygon []MercRing

type Feature interface {
	ID() int64
	Kind() FeatureKind
	// IsArea reports whether the feature is a closed shape rather than a
	// linear way or a point.
	IsArea() bool
	// BelongsToRelation reports whether some relation has this feature as
	// a member.
	BelongsToRelation() bool
	Bounds() Box
	Tag(key string) TagValue
	Tags() map[string]string
	// Coords returns the vertex stream of a node or linear way.
	Coords() MercRing
	// Polygons returns the assembled rings of an area feature.
	Polygons() []MercPolygon
	// Members returns the member features of a relation.
	Members() []Feature
	Centroid() ProjectedMeters
	// Length returns the projected length of a linear way in meters.
	Length() float64
}

// FeatureStore indexes features by bounding box.
type FeatureStore interface {
	// Find calls fn for every feature whose bounds intersect box, until
	// fn returns false.
	Find(box Box, fn func(Feature) bool) error
	// FindMatching is Find restricted to features matching a tag query
	// such as "n[place=city,town]" or "wra[boundary=administrative]".
	FindMatching(query string, box Box, fn func(Feature) bool) error
	// FindContaining calls fn for every area feature whose polygon
	// contains the given location, until fn returns false.
	FindContaining(pos LngLat, fn func(Feature) bool) error
	Close() error
}

// tagQuery is a parsed feature query: a kind filter, an optional
// areas-only marker, a tag key and accepted values.
type tagQuery struct {
	nodes     bool
	ways      bool
	relations bool
	areasOnly bool
	key       string
	values    []string // empty means any value
}

// parseTagQuery parses queries of the form "nwa[key=v1,v2]". The letters
// before the bracket select node/way/relation/area; "n[place=*]" accepts
// any value.
func parseTagQuery(q string) (tagQuery, error) {
	open := strings.IndexByte(q, '[')
	if open < 0 || !strings.HasSuffix(q, "]") {
		return tagQuery{}, fmt.Errorf("malformed feature query %q", q)
	}
	var tq tagQuery
	for _, c := range q[:open] {
		switch c {
		case 'n':
			tq.nodes = true
		case 'w':
			tq.ways = true
		case 'r':
			tq.relations = true
		case 'a':
			tq.areasOnly = true
		default:
			return tagQuery{}, fmt.Errorf("bad kind letter %q in query %q", c, q)
		}
	}
	if !tq.nodes && !tq.ways && !tq.relations {
		// A bare area query accepts area ways and area relations.
		tq.ways = tq.areasOnly
		tq.relations = tq.areasOnly
	}
	body := q[open+1 : len(q)-1]
	eq := strings.IndexByte(body, '=')
	if eq < 0 {
		tq.key = body
		return tq, nil
	}
	tq.key = body[:eq]
	for _, v := range strings.Split(body[eq+1:], ",") {
		if v == "*" {
			tq.values = nil
			break
		}
		tq.values = append(tq.values, v)
	}
	if tq.key == "" {
		return tagQuery{}, fmt.Errorf("empty key in query %q", q)
	}
	return tq, nil
}

func (tq tagQuery) matches(f Feature) bool {
	switch f.Kind() {
	case NodeFeature:
		if !tq.nodes {
			return false
		}
	case WayFeature:
		if !tq.ways {
			return false
		}
	case RelationFeature:
		if !tq.relations {
			return false
		}
	}
	if tq.areasOnly && !f.IsArea() {
		return false
	}
	v := f.Tag(tq.key)
	if !v.Bool() {
		return false
	}
	if len(tq.values) == 0 {
		return true
	}
	for _, want := range tq.values {
		if string(v) == want {
			return true
		}
	}
	return false
}

// osmFeature is the concrete feature used by both the SQLite store and
// the in-memory test store.
type osmFeature struct {
	id      int64
	kind    FeatureKind
	area    bool
	inRel   bool
	tags    map[string]string
	coords  MercRing      // nodes and linear ways
	polys   []MercPolygon // area features
	members []Feature
	bounds  Box
	hasBox  bool
}

func (f *osmFeature) ID() int64               { return f.id }
func (f *osmFeature) Kind() FeatureKind       { return f.kind }
func (f *osmFeature) IsArea() bool            { return f.area }
func (f *osmFeature) BelongsToRelation() bool { return f.inRel }
func (f *osmFeature) Tags() map[string]string { return f.tags }
func (f *osmFeature) Members() []Feature      { return f.members }
func (f *osmFeature) Coords() MercRing        { return f.coords }
func (f *osmFeature) Polygons() []MercPolygon { return f.polys }

func (f *osmFeature) Tag(key string) TagValue {
	return TagValue(f.tags[key])
}

func (f *osmFeature) Bounds() Box {
	if f.hasBox {
		return f.bounds
	}
	b := Box{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	grow := func(p ProjectedMeters) {
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	for _, p := range f.coords {
		grow(p)
	}
	for _, poly := range f.polys {
		for _, ring := range poly {
			for _, p := range ring {
				grow(p)
			}
		}
	}
	for _, m := range f.members {
		mb := m.Bounds()
		grow(ProjectedMeters{X: mb.MinX, Y: mb.MinY})
		grow(ProjectedMeters{X: mb.MaxX, Y: mb.MaxY})
	}
	if math.IsInf(b.MinX, 1) {
		b = Box{}
	}
	f.bounds = b
	f.hasBox = true
	return b
}

func (f *osmFeature) Centroid() ProjectedMeters {
	if len(f.coords) == 1 {
		return f.coords[0]
	}
	if len(f.coords) > 1 {
		return f.coords[len(f.coords)/2]
	}
	b := f.Bounds()
	return ProjectedMeters{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
}

func (f *osmFeature) Length() float64 {
	total := 0.0
	for i := 1; i < len(f.coords); i++ {
		dx := f.coords[i].X - f.coords[i-1].X
		dy := f.coords[i].Y - f.coords[i-1].Y
		total += math.Sqrt(dx*dx + dy*dy)
	}
	return total
}

// containsMerc tests whether an area feature's polygons contain a
// projected point, with the even-odd rule.
func (f *osmFeature) containsMerc(p ProjectedMeters) bool {
	for _, poly := range f.polys {
		inside := false
		for _, ring := range poly {
			if mercPointInRing(ring, p) {
				inside = !inside
			}
		}
		if inside {
			return true
		}
	}
	return false
}

func mercPointInRing(ring MercRing, p ProjectedMeters) bool {
	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		a, b := ring[i], ring[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}
