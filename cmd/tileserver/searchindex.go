// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Search index builder: walks the tile pyramid, extracts named features
// per leaf tile, enriches them with the administrative areas containing
// them, and ships rows to the writer. Sharding by tile keeps each
// point-in-polygon test against a handful of local admin polygons
// instead of the whole planet.

const ftsSchema = `
CREATE TABLE IF NOT EXISTS pois(
  name TEXT, name_en TEXT, admin TEXT, tags TEXT, props TEXT, lng REAL, lat REAL);
CREATE VIRTUAL TABLE IF NOT EXISTS pois_fts USING fts5(
  name, name_en, admin, tags, content='pois');
CREATE VIRTUAL TABLE IF NOT EXISTS rtree_index USING rtree(
  id, minLng, maxLng, minLat, maxLat);
`

// Tiles with more features than this get subdivided before indexing.
const maxLeafFeatures = 16384

// poiRow is one search index row.
type poiRow struct {
	name   string
	nameEn string
	admin  string
	tags   string
	props  string
	lng    float64
	lat    float64
}

// adminArea is an administrative polygon in leaf-tile coordinates.
type adminArea struct {
	level  int
	name   string
	nameEn string
	bbMin  Point
	bbMax  Point
	mpoly  MultiPolygon
}

// Tag keys contributing to the ranker's tag string, in priority order.
// Same key set as the tile builder's POI table, minus highway.
var searchTagKeys = []string{
	"amenity", "tourism", "leisure", "shop", "sport", "landuse", "historic",
	"railway", "natural", "barrier", "building", "aerialway", "waterway",
}

var badSearchTags = []string{"traffic_sign", "public_transport"}

func buildSearchIndex(ctx context.Context, world FeatureStore, writer *storeWriter, root TileID, threads int) error {
	err := writer.WithFTS(func(db *sql.DB) error {
		if _, err := db.Exec(ftsSchema); err != nil {
			return err
		}
		_, err := db.Exec(`DELETE FROM pois`)
		return err
	})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, threads)
	var walk func(id TileID) error
	walk = func(id TileID) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if id.Z < 4 || (id.Z < 10 && countFeatures(world, tileBounds(id)) > maxLeafFeatures) {
			for i := 0; i < 4; i++ {
				child := id.Child(i, 30)
				g.Go(func() error { return walk(child) })
			}
			return nil
		}
		sem <- struct{}{}
		defer func() { <-sem }()
		rows, err := indexLeafTile(world, id)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return writer.WithFTS(func(db *sql.DB) error {
			return insertPoiRows(db, rows)
		})
	}
	g.Go(func() error { return walk(root) })
	if err := g.Wait(); err != nil {
		return err
	}

	log.Printf("search index rows written, rebuilding fts and rtree")
	return writer.WithFTS(func(db *sql.DB) error {
		if _, err := db.Exec(`INSERT INTO pois_fts(pois_fts) VALUES('rebuild')`); err != nil {
			return err
		}
		if _, err := db.Exec(`DELETE FROM rtree_index`); err != nil {
			return err
		}
		_, err := db.Exec(`INSERT INTO rtree_index SELECT rowid, lng, lng, lat, lat FROM pois`)
		return err
	})
}

// countFeatures probes how many features intersect box, stopping as
// soon as the subdivision limit is exceeded.
func countFeatures(world FeatureStore, box Box) int {
	n := 0
	world.Find(box, func(Feature) bool {
		n++
		return n <= maxLeafFeatures
	})
	return n
}

func insertPoiRows(db *sql.DB, rows []poiRow) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(
		`INSERT INTO pois (name, name_en, admin, tags, props, lng, lat) VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	for _, r := range rows {
		if _, err := stmt.Exec(r.name, r.nameEn, r.admin, r.tags, r.props, r.lng, r.lat); err != nil {
			stmt.Close()
			tx.Rollback()
			return err
		}
	}
	stmt.Close()
	return tx.Commit()
}

func indexLeafTile(world FeatureStore, id TileID) ([]poiRow, error) {
	origin := tileSouthWestCorner(id)
	scale := 1 / metersPerTileAtZoom(id.Z)
	toTile := func(m ProjectedMeters) Point {
		return Point{X: float32(scale * (m.X - origin.X)), Y: float32(scale * (m.Y - origin.Y))}
	}
	box := tileBounds(id)

	admins, err := collectAdminAreas(world, box, toTile)
	if err != nil {
		return nil, err
	}

	var rows []poiRow
	err = world.Find(box, func(f Feature) bool {
		name := f.Tag("name")
		if name == "" {
			return true
		}
		boundary := f.Tag("boundary")
		ownLevel := f.Tag("admin_level").Num()
		// Admin areas themselves are represented by their place nodes.
		if (boundary == "administrative" || boundary == "disputed") && ownLevel > 0 {
			return true
		}
		p := toTile(f.Centroid())
		if !inUnitSquare(p) {
			// Belongs to a neighboring leaf.
			return true
		}
		tags := searchTagString(f)
		if tags == "" {
			for _, bad := range badSearchTags {
				if f.Tag(bad).Bool() {
					return true
				}
			}
		}
		ll := projectedMetersToLngLat(f.Centroid())
		rows = append(rows, poiRow{
			name:   string(name),
			nameEn: string(f.Tag("name:en")),
			admin:  adminString(admins, p, int(ownLevel)),
			tags:   tags,
			props:  poiProps(f),
			lng:    ll.Lng,
			lat:    ll.Lat,
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func collectAdminAreas(world FeatureStore, box Box, toTile func(ProjectedMeters) Point) ([]adminArea, error) {
	var admins []adminArea
	err := world.FindMatching("wra[boundary=administrative,disputed]", box, func(f Feature) bool {
		if !f.IsArea() {
			return true
		}
		level := int(f.Tag("admin_level").Num())
		if level < 2 || level > 8 {
			return true
		}
		a := adminArea{
			level:  level,
			name:   string(f.Tag("name")),
			nameEn: string(f.Tag("name:en")),
			bbMin:  Point{X: float32(math.Inf(1)), Y: float32(math.Inf(1))},
			bbMax:  Point{X: float32(math.Inf(-1)), Y: float32(math.Inf(-1))},
		}
		for _, merc := range f.Polygons() {
			var poly Polygon
			for _, ring := range merc {
				if len(ring) < 4 {
					continue
				}
				r := make(Ring, 0, len(ring))
				for _, c := range ring {
					p := toTile(c)
					r = append(r, p)
					a.bbMin = Point{X: minf(a.bbMin.X, p.X), Y: minf(a.bbMin.Y, p.Y)}
					a.bbMax = Point{X: maxf(a.bbMax.X, p.X), Y: maxf(a.bbMax.Y, p.Y)}
				}
				poly = append(poly, r)
			}
			if len(poly) > 0 {
				a.mpoly = append(a.mpoly, poly)
			}
		}
		if len(a.mpoly) > 0 && a.name != "" {
			admins = append(admins, a)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	// Level descending: smallest areas first, so the admin string reads
	// city before state before country.
	sort.SliceStable(admins, func(i, j int) bool { return admins[i].level > admins[j].level })
	return admins, nil
}

// adminString resolves the administrative areas containing p, taking
// the first hit per admin level.
func adminString(admins []adminArea, p Point, ownLevel int) string {
	var parts []string
	lastLevel := -1
	for _, a := range admins {
		if a.level == lastLevel || a.level <= ownLevel {
			continue
		}
		if p.X < a.bbMin.X || p.X > a.bbMax.X || p.Y < a.bbMin.Y || p.Y > a.bbMax.Y {
			continue
		}
		inside := false
		for _, poly := range a.mpoly {
			if pointInPolygon(poly, p) {
				inside = true
				break
			}
		}
		if !inside {
			continue
		}
		lastLevel = a.level
		parts = append(parts, a.name)
		if a.nameEn != "" && a.nameEn != a.name {
			parts = append(parts, a.nameEn)
		}
	}
	return strings.Join(parts, ", ")
}

// searchTagString builds the space-separated tag values the ranker
// scores: place values outrank heritage/wikipedia flags, which outrank
// ordinary POI tags.
func searchTagString(f Feature) string {
	var parts []string
	if place := f.Tag("place"); place != "" {
		parts = append(parts, string(place))
	} else {
		if f.Tag("heritage").Bool() {
			parts = append(parts, "heritage")
		}
		if f.Tag("wikipedia").Bool() {
			parts = append(parts, "wikipedia")
		}
	}
	for _, key := range searchTagKeys {
		if v := f.Tag(key); v != "" {
			parts = append(parts, string(v))
		}
	}
	return strings.Join(parts, " ")
}

// poiProps renders the JSON blob returned verbatim to search clients.
func poiProps(f Feature) string {
	props := map[string]string{
		"osm_id":   strconv.FormatInt(f.ID(), 10),
		"osm_type": f.Kind().String(),
	}
	for _, key := range append([]string{"place", "name", "name:en"}, searchTagKeys...) {
		if v := f.Tag(key); v != "" {
			props[key] = string(v)
		}
	}
	for _, key := range extraPoiTags {
		if v := f.Tag(key); v != "" {
			props[key] = string(v)
		}
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "{}"
	}
	return string(b)
}
