// SPDX-License-Identifier: MIT

package main

import (
	"math"
	"path/filepath"
	"testing"
)

func TestGeomBlobRoundTrip(t *testing.T) {
	in := []MercPolygon{
		{
			{{X: 100.25, Y: -200.5}, {X: 101, Y: -199}, {X: 102.5, Y: -201}, {X: 100.25, Y: -200.5}},
			{{X: 100.5, Y: -200.25}, {X: 100.75, Y: -200.25}, {X: 100.5, Y: -200.5}, {X: 100.5, Y: -200.25}},
		},
		{
			{{X: -5000000, Y: 4000000}, {X: -5000010, Y: 4000020}},
		},
	}
	out, err := decodeGeom(encodeGeom(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d polygons, want %d", len(out), len(in))
	}
	for p := range in {
		if len(out[p]) != len(in[p]) {
			t.Fatalf("polygon %d: got %d rings, want %d", p, len(out[p]), len(in[p]))
		}
		for r := range in[p] {
			for i := range in[p][r] {
				got, want := out[p][r][i], in[p][r][i]
				// Storage rounds to centimeters.
				if math.Abs(got.X-want.X) > 0.005 || math.Abs(got.Y-want.Y) > 0.005 {
					t.Errorf("point %d/%d/%d: got %v, want %v", p, r, i, got, want)
				}
			}
		}
	}
}

func TestDecodeGeomTruncated(t *testing.T) {
	blob := encodeGeom([]MercPolygon{{{{X: 1, Y: 2}, {X: 3, Y: 4}}}})
	if _, err := decodeGeom(blob[:len(blob)-1]); err == nil {
		t.Error("truncated blob should fail to decode")
	}
}

func newTestFeatureDB(t *testing.T) *featureDB {
	t.Helper()
	db, err := openFeatureDB(filepath.Join(t.TempDir(), "features.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFeatureDBFind(t *testing.T) {
	db := newTestFeatureDB(t)
	node := newNode(7, 8.54, 47.37, map[string]string{"place": "city", "name": "Zürich"})
	way := newWay(8, [][2]float64{{8.5, 47.3}, {8.6, 47.4}}, map[string]string{"highway": "primary"})
	far := newNode(9, -122.4, 37.7, map[string]string{"place": "city", "name": "San Francisco"})
	for _, f := range []*osmFeature{node, way, far} {
		if err := db.Insert(f); err != nil {
			t.Fatal(err)
		}
	}

	box := Box{MinX: lngLatToProjectedMeters(LngLat{Lng: 8, Lat: 47}).X,
		MinY: lngLatToProjectedMeters(LngLat{Lng: 8, Lat: 47}).Y,
		MaxX: lngLatToProjectedMeters(LngLat{Lng: 9, Lat: 48}).X,
		MaxY: lngLatToProjectedMeters(LngLat{Lng: 9, Lat: 48}).Y}

	var ids []int64
	err := db.Find(box, func(f Feature) bool {
		ids = append(ids, f.ID())
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Errorf("found %v, want the node and the way", ids)
	}

	var cities []string
	err = db.FindMatching("n[place=city,town]", box, func(f Feature) bool {
		cities = append(cities, string(f.Tag("name")))
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(cities) != 1 || cities[0] != "Zürich" {
		t.Errorf("cities = %v, want [Zürich]", cities)
	}
}

func TestFeatureDBFindContaining(t *testing.T) {
	db := newTestFeatureDB(t)
	area := newArea(10, [][2]float64{
		{8.0, 47.0}, {9.0, 47.0}, {9.0, 48.0}, {8.0, 48.0}, {8.0, 47.0},
	}, map[string]string{"natural": "water"})
	if err := db.Insert(area); err != nil {
		t.Fatal(err)
	}

	count := 0
	err := db.FindContaining(LngLat{Lng: 8.5, Lat: 47.5}, func(f Feature) bool {
		count++
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("point inside the area found %d features, want 1", count)
	}

	count = 0
	err = db.FindContaining(LngLat{Lng: 10, Lat: 47.5}, func(f Feature) bool {
		count++
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("point outside the area found %d features, want 0", count)
	}
}

func TestFeatureDBRelationMembers(t *testing.T) {
	db := newTestFeatureDB(t)
	member := newWay(20, [][2]float64{{8.5, 47.3}, {8.6, 47.4}}, map[string]string{})
	rel := newRelation(21, []Feature{member}, map[string]string{
		"boundary": "administrative", "admin_level": "4", "name": "Testland",
	})
	if err := db.Insert(member); err != nil {
		t.Fatal(err)
	}
	if err := db.Insert(rel); err != nil {
		t.Fatal(err)
	}

	found := false
	box := member.Bounds()
	err := db.FindMatching("r[boundary=administrative]", box, func(f Feature) bool {
		found = true
		members := f.Members()
		if len(members) != 1 || members[0].ID() != 20 {
			t.Errorf("members = %v", members)
		}
		if !members[0].BelongsToRelation() {
			t.Error("member should know it belongs to a relation")
		}
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Error("relation not found")
	}
}

func TestParseTagQuery(t *testing.T) {
	tq, err := parseTagQuery("wra[boundary=administrative,disputed]")
	if err != nil {
		t.Fatal(err)
	}
	admin := newWay(1, [][2]float64{{0, 0}, {1, 1}}, map[string]string{"boundary": "administrative"})
	road := newWay(2, [][2]float64{{0, 0}, {1, 1}}, map[string]string{"highway": "primary"})
	if !tq.matches(admin) {
		t.Error("administrative way should match")
	}
	if tq.matches(road) {
		t.Error("plain highway should not match")
	}

	if _, err := parseTagQuery("x[natural=water]"); err == nil {
		t.Error("unknown kind letter should fail to parse")
	}
}
