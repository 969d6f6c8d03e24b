// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"log"
	"math"
	"time"

	"github.com/klauspost/compress/gzip"
)

// tileBuilder turns the features inside one tile's bounding box into an
// MVT blob. The classifier drives it through the emission API: Layer
// opens a feature on a named layer, Attribute fills properties, and the
// next Layer call (or the final flush) commits the feature if it ended
// up with any geometry.

const oceanFeatureID = -2

// gzipLevel 5 compresses nearly as well as 6 but measurably faster.
const gzipLevel = 5

var verbose = false

type tileBuilder struct {
	id      TileID
	tile    *tileWriter
	tileBox Box

	origin         ProjectedMeters
	scale          float64 // tile units per projected meter
	simplifyThresh float64

	// current feature and its lazily loaded geometry
	feat     Feature
	featID   int64
	area     float64 // mercator m², NaN until loaded
	mpoly    MultiPolygon
	centroid Point
	cx, cy   float64
	polyMin  Point
	polyMax  Point

	cur     *featureWriter
	hasGeom bool

	coastline MultiLineString

	builtFeats int
	builtPts   int

	// classifier callback, invoked once per selected feature
	process func()
}

func newTileBuilder(id TileID, layers []string) *tileBuilder {
	b := &tileBuilder{
		id:      id,
		tile:    newTileWriter(layers),
		tileBox: tileBounds(id),
		origin:  tileSouthWestCorner(id),
		scale:   1 / metersPerTileAtZoom(id.Z),
	}
	// No simplification at the deepest zoom, which clients over-zoom.
	if id.Z < 14 {
		b.simplifyThresh = 1 / 512.0
	}
	return b
}

func (b *tileBuilder) setFeature(f Feature) {
	b.feat = f
	b.featID = f.ID()
	b.area = math.NaN()
	b.mpoly = nil
}

// build runs the per-tile pipeline and returns the MVT blob, gzipped
// when compress is set. An empty tile yields nil.
func (b *tileBuilder) build(world, ocean FeatureStore, compress bool) ([]byte, error) {
	start := time.Now()
	nfeats := 0
	each := func(f Feature) bool {
		b.setFeature(f)
		b.process()
		nfeats++
		return true
	}

	if b.id.Z < 8 {
		placeQuery := "n[place=continent,country,state,province,city]"
		if b.id.Z >= 7 {
			placeQuery = "n[place=continent,country,state,province,city,town]"
		}
		roadQuery := "w[highway=motorway]"
		if b.id.Z >= 7 {
			roadQuery = "w[highway=motorway,trunk,primary]"
		} else if b.id.Z >= 5 {
			roadQuery = "w[highway=motorway,trunk]"
		}
		queries := []string{
			placeQuery,
			roadQuery,
			"wra[boundary=administrative,disputed]",
			"a[place=island]",
			"a[natural=water,glacier]",
			"a[waterway=river]",
		}
		if b.id.Z >= 6 {
			queries = append(queries, "n[natural=peak,volcano]")
		}
		for _, q := range queries {
			if err := world.FindMatching(q, b.tileBox, each); err != nil {
				return nil, err
			}
		}
		// Ocean geometry comes from the ocean store at low zoom.
		oceanEach := func(f Feature) bool {
			b.setFeature(f)
			b.featID = oceanFeatureID
			b.process()
			nfeats++
			return true
		}
		if err := ocean.Find(b.tileBox, oceanEach); err != nil {
			return nil, err
		}
	} else {
		if err := world.Find(b.tileBox, each); err != nil {
			return nil, err
		}
		b.feat = nil
		b.featID = oceanFeatureID
		if len(b.coastline) > 0 {
			b.process()
		} else {
			center := projectedMetersToLngLat(tileCenter(b.id))
			inOcean := false
			err := ocean.FindContaining(center, func(Feature) bool {
				inOcean = true
				return false
			})
			if err != nil {
				return nil, err
			}
			if inOcean {
				b.process()
			}
		}
	}
	b.Layer("", false) // flush the last feature

	mvt := b.tile.serialize()
	if len(mvt) == 0 {
		log.Printf("no features for tile %s", b.id)
		return nil, nil
	}
	rawSize := len(mvt)
	if compress {
		var buf bytes.Buffer
		zw, err := gzip.NewWriterLevel(&buf, gzipLevel)
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(mvt); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		mvt = buf.Bytes()
	}
	log.Printf("tile %s (%d bytes) built in %.1f ms (%d/%d features, %d points, %d bytes raw)",
		b.id, len(mvt), float64(time.Since(start).Microseconds())/1000, b.builtFeats, nfeats, b.builtPts, rawSize)
	return mvt, nil
}

// toTileCoord converts projected meters to normalized tile coordinates.
func (b *tileBuilder) toTileCoord(m ProjectedMeters) Point {
	return Point{
		X: float32(b.scale * (m.X - b.origin.X)),
		Y: float32(b.scale * (m.Y - b.origin.Y)),
	}
}

// toTilePts simplifies and quantizes to MVT integer coordinates with the
// y axis flipped, dropping consecutive duplicates.
func (b *tileBuilder) toTilePts(pts []Point, closed bool) []TilePoint {
	var keep []bool
	if closed {
		keep = visvalingamKeepMask(pts, b.simplifyThresh)
	} else {
		keep = simplifyKeepMask(pts, b.simplifyThresh)
	}
	out := make([]TilePoint, 0, len(pts))
	for i, p := range pts {
		if keep != nil && !keep[i] {
			continue
		}
		ip := TilePoint{
			X: int32(p.X*tileExtent + 0.5),
			Y: int32((1-p.Y)*tileExtent + 0.5),
		}
		if len(out) == 0 || ip != out[len(out)-1] {
			out = append(out, ip)
		}
	}
	return out
}

// loadWayFeature converts a way's coordinates to tile space and clips
// them to the tile, splitting into multiple linestrings when needed.
func (b *tileBuilder) loadWayFeature(way Feature) MultiLineString {
	coords := way.Coords()
	line := make(LineString, 0, len(coords))
	pmin := Point{X: float32(math.Inf(1)), Y: float32(math.Inf(1))}
	pmax := Point{X: float32(math.Inf(-1)), Y: float32(math.Inf(-1))}
	for _, c := range coords {
		p := b.toTileCoord(c)
		line = append(line, p)
		pmin = Point{X: minf(pmin.X, p.X), Y: minf(pmin.Y, p.Y)}
		pmax = Point{X: maxf(pmax.X, p.X), Y: maxf(pmax.Y, p.Y)}
	}
	if pmin.X > 1 || pmin.Y > 1 || pmax.X < 0 || pmax.Y < 0 {
		return nil
	}
	if pmin.X < 0 || pmin.Y < 0 || pmax.X > 1 || pmax.Y > 1 {
		return clipLinesUnit(MultiLineString{line})
	}
	return MultiLineString{line}
}

func (b *tileBuilder) buildLine(way Feature) {
	for _, line := range b.loadWayFeature(way) {
		tilePts := b.toTilePts(line, false)
		if len(tilePts) > 1 {
			b.hasGeom = true
			b.builtPts += len(tilePts)
			b.cur.addLineString(tilePts)
		}
	}
}

// addRing converts one ring to tile space, accumulates area and centroid
// of the unclipped ring, clips it, and normalizes winding: outer rings
// end up clockwise in y-up tile coordinates, which the MVT y flip turns
// into the positive-area exterior rings the format requires.
func (b *tileBuilder) addRing(poly *Polygon, coords MercRing, outer bool) {
	ring := make(Ring, 0, len(coords))
	pmin := Point{X: float32(math.Inf(1)), Y: float32(math.Inf(1))}
	pmax := Point{X: float32(math.Inf(-1)), Y: float32(math.Inf(-1))}
	for _, c := range coords {
		p := b.toTileCoord(c)
		ring = append(ring, p)
		pmin = Point{X: minf(pmin.X, p.X), Y: minf(pmin.Y, p.Y)}
		pmax = Point{X: maxf(pmax.X, p.X), Y: maxf(pmax.Y, p.Y)}
	}

	// Area and centroid of the whole ring, before clipping. The first
	// and last points are assumed equal.
	var area, cx, cy float64
	for i := 0; i+1 < len(ring); i++ {
		a := float64(ring[i].X)*float64(ring[i+1].Y) - float64(ring[i+1].X)*float64(ring[i].Y)
		area += a
		cx += a * (float64(ring[i].X) + float64(ring[i+1].X))
		cy += a * (float64(ring[i].Y) + float64(ring[i+1].Y))
	}

	if pmin.X > 1 || pmin.Y > 1 || pmax.X < 0 || pmax.Y < 0 {
		ring = nil
	} else if pmin.X < 0 || pmin.Y < 0 || pmax.X > 1 || pmax.Y > 1 {
		ring = clipRingUnit(ring)
	}
	b.polyMin = Point{X: minf(b.polyMin.X, pmin.X), Y: minf(b.polyMin.Y, pmin.Y)}
	b.polyMax = Point{X: maxf(b.polyMax.X, pmax.X), Y: maxf(b.polyMax.Y, pmax.Y)}

	rev := (area > 0) == outer
	if rev {
		for i, j := 0, len(ring)-1; i < j; i, j = i+1, j-1 {
			ring[i], ring[j] = ring[j], ring[i]
		}
		b.area += area / 2
		b.cx += cx
		b.cy += cy
	} else {
		b.area -= area / 2
		b.cx -= cx
		b.cy -= cy
	}
	*poly = append(*poly, ring)
}

func (b *tileBuilder) loadAreaFeature() {
	if !math.IsNaN(b.area) {
		return
	}
	b.area = 0
	b.cx, b.cy = 0, 0
	b.polyMin = Point{X: float32(math.Inf(1)), Y: float32(math.Inf(1))}
	b.polyMax = Point{X: float32(math.Inf(-1)), Y: float32(math.Inf(-1))}
	for _, merc := range b.feat.Polygons() {
		if len(merc) == 0 {
			continue
		}
		var poly Polygon
		b.addRing(&poly, merc[0], true)
		for _, inner := range merc[1:] {
			b.addRing(&poly, inner, false)
			if len(poly[len(poly)-1]) == 0 {
				poly = poly[:len(poly)-1]
			}
		}
		b.mpoly = append(b.mpoly, poly)
	}
	// Centroid in tile units, then area in mercator m².
	if b.area != 0 {
		b.centroid = Point{
			X: float32(b.cx / (6 * b.area)),
			Y: float32(b.cy / (6 * b.area)),
		}
	}
	b.area *= sq(metersPerTileAtZoom(b.id.Z))
	if b.area < 0 && verbose {
		log.Printf("polygon for feature %d has negative area", b.featID)
	}
}

func (b *tileBuilder) buildPolygon() {
	b.loadAreaFeature()
	for _, poly := range b.mpoly {
		if len(poly) == 0 || len(poly[0]) < 4 {
			continue
		}
		for _, ring := range poly {
			tilePts := b.toTilePts(ring, true)
			if len(tilePts) < 4 {
				// Tiny rings quantize away entirely.
				continue
			}
			if tilePts[0] != tilePts[len(tilePts)-1] {
				if verbose {
					log.Printf("invalid polygon for feature %d", b.featID)
				}
				continue
			}
			b.hasGeom = true
			b.builtPts += len(tilePts)
			b.cur.addRing(tilePts)
		}
	}
}

// Area returns the current feature's area in mercator m², 0 for
// non-area features.
func (b *tileBuilder) Area() float64 {
	if math.IsNaN(b.area) {
		if !b.feat.IsArea() {
			b.area = 0
		} else {
			b.loadAreaFeature()
		}
	}
	return b.area
}

// MinZoom reports whether the tile is at or beyond zoom z.
func (b *tileBuilder) MinZoom(z int) bool {
	return int(b.id.Z) >= z
}

func (b *tileBuilder) Find(key string) TagValue {
	return b.feat.Tag(key)
}

func (b *tileBuilder) Holds(key string) bool {
	return b.feat.Tag(key).Bool()
}

func (b *tileBuilder) IsClosed() bool {
	coords := b.feat.Coords()
	return b.feat.IsArea() ||
		(len(coords) > 2 && coords[0] == coords[len(coords)-1])
}

func (b *tileBuilder) Length() float64 {
	return b.feat.Length()
}

// Attribute adds a string property to the in-progress feature, skipping
// empty values.
func (b *tileBuilder) Attribute(key string, value TagValue) {
	if b.cur == nil || value == "" {
		return
	}
	b.cur.addString(key, string(value))
}

// AttributeNumeric always emits, even for zero.
func (b *tileBuilder) AttributeNumeric(key string, value float64) {
	if b.cur == nil {
		return
	}
	b.cur.addNumber(key, value)
}

func (b *tileBuilder) Layer(name string, isClosed bool) {
	b.layerImpl(name, isClosed, false)
}

func (b *tileBuilder) LayerAsCentroid(name string) {
	b.layerImpl(name, false, true)
}

func (b *tileBuilder) layerImpl(name string, isClosed, asCentroid bool) {
	if b.cur != nil && b.hasGeom {
		b.builtFeats++
		b.cur.commit()
	}
	b.cur = nil
	b.hasGeom = false

	if name == "" { // flush only
		return
	}
	lw := b.tile.layer(name)
	if lw == nil {
		log.Printf("layer not found: %s", name)
		return
	}

	if b.feat == nil {
		// Synthesized ocean polygon.
		b.cur = lw.newFeature(geomTypePolygon)
		b.buildCoastline()
		return
	}

	if b.feat.Kind() == NodeFeature || asCentroid {
		p := Point{X: -1, Y: -1}
		if !b.feat.IsArea() {
			p = b.toTileCoord(b.feat.Centroid())
		} else {
			b.loadAreaFeature()
			p = b.centroid
			if inUnitSquare(p) && len(b.mpoly) == 1 && len(b.mpoly[0]) > 0 && len(b.mpoly[0][0]) > 3 {
				pl := b.labelPoint(p)
				if inUnitSquare(pl) {
					p = pl
				} else if verbose {
					log.Printf("rejecting label point %f,%f for feature %d (centroid %f,%f)",
						pl.X, pl.Y, b.featID, p.X, p.Y)
				}
			}
		}
		b.cur = lw.newFeature(geomTypePoint)
		b.hasGeom = inUnitSquare(p)
		if b.hasGeom {
			b.cur.addPoint(TilePoint{
				X: int32(p.X*tileExtent + 0.5),
				Y: int32((1-p.Y)*tileExtent + 0.5),
			})
			b.builtPts++
		}
		return
	}

	if b.feat.IsArea() {
		b.cur = lw.newFeature(geomTypePolygon)
		b.buildPolygon()
		return
	}

	b.cur = lw.newFeature(geomTypeLineString)
	if b.feat.Kind() == WayFeature {
		b.buildLine(b.feat)
	} else {
		for _, m := range b.feat.Members() {
			if m.Kind() == WayFeature && b.tileBox.Intersects(m.Bounds()) {
				b.buildLine(m)
			}
		}
	}
}

// labelPoint refines an area centroid into a pole of inaccessibility.
// Deep tiles use the polygon as is; shallower tiles clip it to the z14
// subtile containing the centroid, with precision tightened so the label
// lands in the same place across zooms.
func (b *tileBuilder) labelPoint(centroid Point) Point {
	if b.id.Z >= 14 {
		p, _ := polylabel(b.mpoly[0], 1/256.0)
		return p
	}
	zq := math.Exp2(float64(14 - b.id.Z))
	cellX := math.Floor(float64(centroid.X) * zq)
	cellY := math.Floor(float64(centroid.Y) * zq)
	minX := float32(cellX / zq)
	minY := float32(cellY / zq)
	maxX := float32((cellX + 1) / zq)
	maxY := float32((cellY + 1) / zq)
	clipped := make(Polygon, 0, len(b.mpoly[0]))
	for _, ring := range b.mpoly[0] {
		clipped = append(clipped, clipRingBox(ring, minX, minY, maxX, maxY))
	}
	if len(clipped[0]) < 4 {
		return Point{X: -1, Y: -1}
	}
	prec := 1 / 256.0 / math.Min(zq, 16)
	p, _ := polylabel(clipped, prec)
	return p
}
