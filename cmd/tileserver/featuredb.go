// SPDX-License-Identifier: MIT

package main

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite-backed feature store. Features live in a plain table with tags
// as JSON and geometry as a delta-coded blob; an rtree over the bounding
// boxes answers the spatial queries. Tag predicates are applied in Go
// after the box scan.

const featureSchema = `
CREATE TABLE IF NOT EXISTS features(
  id INTEGER NOT NULL,
  kind INTEGER NOT NULL,
  is_area INTEGER NOT NULL DEFAULT 0,
  in_relation INTEGER NOT NULL DEFAULT 0,
  tags TEXT NOT NULL,
  geom BLOB NOT NULL);
CREATE INDEX IF NOT EXISTS feature_id_index ON features (kind, id);
CREATE VIRTUAL TABLE IF NOT EXISTS feature_rtree USING rtree(
  fid, min_x, max_x, min_y, max_y);
CREATE TABLE IF NOT EXISTS feature_members(
  rel_rowid INTEGER NOT NULL,
  member_kind INTEGER NOT NULL,
  member_id INTEGER NOT NULL,
  seq INTEGER NOT NULL);
CREATE INDEX IF NOT EXISTS member_rel_index ON feature_members (rel_rowid, seq);
`

type featureDB struct {
	db *sql.DB
}

func openFeatureDB(path string) (*featureDB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(featureSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating feature schema in %s: %w", path, err)
	}
	return &featureDB{db: db}, nil
}

func (s *featureDB) Close() error { return s.db.Close() }

// Geometry blobs store projected meters as centimeter integers,
// delta-coded with zigzag varints, grouped into polygons and rings.
// Linear geometry is a single one-ring group.

func encodeGeom(groups []MercPolygon) []byte {
	buf := make([]byte, 0, 64)
	buf = binary.AppendUvarint(buf, uint64(len(groups)))
	for _, poly := range groups {
		buf = binary.AppendUvarint(buf, uint64(len(poly)))
		for _, ring := range poly {
			buf = binary.AppendUvarint(buf, uint64(len(ring)))
			var px, py int64
			for _, p := range ring {
				x := int64(math.Round(p.X * 100))
				y := int64(math.Round(p.Y * 100))
				buf = binary.AppendVarint(buf, x-px)
				buf = binary.AppendVarint(buf, y-py)
				px, py = x, y
			}
		}
	}
	return buf
}

func decodeGeom(buf []byte) ([]MercPolygon, error) {
	pos := 0
	next := func() (int64, error) {
		v, n := binary.Varint(buf[pos:])
		if n <= 0 {
			return 0, fmt.Errorf("truncated geometry blob")
		}
		pos += n
		return v, nil
	}
	nextU := func() (uint64, error) {
		v, n := binary.Uvarint(buf[pos:])
		if n <= 0 {
			return 0, fmt.Errorf("truncated geometry blob")
		}
		pos += n
		return v, nil
	}

	npolys, err := nextU()
	if err != nil {
		return nil, err
	}
	groups := make([]MercPolygon, 0, npolys)
	for p := uint64(0); p < npolys; p++ {
		nrings, err := nextU()
		if err != nil {
			return nil, err
		}
		poly := make(MercPolygon, 0, nrings)
		for r := uint64(0); r < nrings; r++ {
			npts, err := nextU()
			if err != nil {
				return nil, err
			}
			ring := make(MercRing, 0, npts)
			var px, py int64
			for i := uint64(0); i < npts; i++ {
				dx, err := next()
				if err != nil {
					return nil, err
				}
				dy, err := next()
				if err != nil {
					return nil, err
				}
				px += dx
				py += dy
				ring = append(ring, ProjectedMeters{X: float64(px) / 100, Y: float64(py) / 100})
			}
			poly = append(poly, ring)
		}
		groups = append(groups, poly)
	}
	return groups, nil
}

// Insert adds a feature and its spatial index entry. Relations also get
// member links so boundary members can be resolved later.
func (s *featureDB) Insert(f *osmFeature) error {
	tags, err := json.Marshal(f.tags)
	if err != nil {
		return err
	}
	var groups []MercPolygon
	if f.area || len(f.polys) > 0 {
		groups = f.polys
	} else {
		groups = []MercPolygon{{f.coords}}
	}
	res, err := s.db.Exec(
		`INSERT INTO features (id, kind, is_area, in_relation, tags, geom) VALUES (?,?,?,?,?,?)`,
		f.id, int(f.kind), f.area, f.inRel, string(tags), encodeGeom(groups))
	if err != nil {
		return err
	}
	rowid, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b := f.Bounds()
	if _, err := s.db.Exec(
		`INSERT INTO feature_rtree (fid, min_x, max_x, min_y, max_y) VALUES (?,?,?,?,?)`,
		rowid, b.MinX, b.MaxX, b.MinY, b.MaxY); err != nil {
		return err
	}
	for seq, m := range f.members {
		if _, err := s.db.Exec(
			`INSERT INTO feature_members (rel_rowid, member_kind, member_id, seq) VALUES (?,?,?,?)`,
			rowid, int(m.Kind()), m.ID(), seq); err != nil {
			return err
		}
	}
	return nil
}

const findSQL = `
SELECT f.rowid, f.id, f.kind, f.is_area, f.in_relation, f.tags, f.geom
  FROM features f JOIN feature_rtree r ON f.rowid = r.fid
 WHERE r.max_x >= ? AND r.min_x <= ? AND r.max_y >= ? AND r.min_y <= ?`

func (s *featureDB) scanFeature(rows *sql.Rows, loadMembers bool) (*osmFeature, error) {
	var rowid, id int64
	var kind int
	var isArea, inRel bool
	var tagsJSON string
	var geom []byte
	if err := rows.Scan(&rowid, &id, &kind, &isArea, &inRel, &tagsJSON, &geom); err != nil {
		return nil, err
	}
	f := &osmFeature{id: id, kind: FeatureKind(kind), area: isArea, inRel: inRel}
	if err := json.Unmarshal([]byte(tagsJSON), &f.tags); err != nil {
		return nil, fmt.Errorf("tags of %s %d: %w", f.kind, id, err)
	}
	groups, err := decodeGeom(geom)
	if err != nil {
		return nil, fmt.Errorf("geometry of %s %d: %w", f.kind, id, err)
	}
	if isArea {
		f.polys = groups
	} else if len(groups) > 0 && len(groups[0]) > 0 {
		f.coords = groups[0][0]
	}
	if loadMembers && f.kind == RelationFeature {
		if err := s.loadMembers(rowid, f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (s *featureDB) loadMembers(relRowid int64, rel *osmFeature) error {
	rows, err := s.db.Query(`
		SELECT f.rowid, f.id, f.kind, f.is_area, f.in_relation, f.tags, f.geom
		  FROM feature_members m JOIN features f
		    ON f.kind = m.member_kind AND f.id = m.member_id
		 WHERE m.rel_rowid = ? ORDER BY m.seq`, relRowid)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		// Nested relations stop here; boundary and route members are
		// ways.
		m, err := s.scanFeature(rows, false)
		if err != nil {
			return err
		}
		rel.members = append(rel.members, m)
	}
	return rows.Err()
}

func (s *featureDB) find(box Box, filter func(*osmFeature) bool, fn func(Feature) bool) error {
	rows, err := s.db.Query(findSQL, box.MinX, box.MaxX, box.MinY, box.MaxY)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		f, err := s.scanFeature(rows, true)
		if err != nil {
			return err
		}
		if filter != nil && !filter(f) {
			continue
		}
		if !fn(f) {
			return nil
		}
	}
	return rows.Err()
}

func (s *featureDB) Find(box Box, fn func(Feature) bool) error {
	return s.find(box, nil, fn)
}

func (s *featureDB) FindMatching(query string, box Box, fn func(Feature) bool) error {
	tq, err := parseTagQuery(query)
	if err != nil {
		return err
	}
	return s.find(box, func(f *osmFeature) bool { return tq.matches(f) }, fn)
}

func (s *featureDB) FindContaining(pos LngLat, fn func(Feature) bool) error {
	p := lngLatToProjectedMeters(pos)
	box := Box{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}
	return s.find(box, func(f *osmFeature) bool {
		return f.area && f.containsMerc(p)
	}, fn)
}
