// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSearchTagString(t *testing.T) {
	for _, tc := range []struct {
		tags map[string]string
		want string
	}{
		{map[string]string{"place": "city"}, "city"},
		{map[string]string{"amenity": "cafe", "cuisine": "italian"}, "cafe"},
		{map[string]string{"wikipedia": "en:Foo", "amenity": "townhall"}, "wikipedia townhall"},
		{map[string]string{"heritage": "2", "tourism": "attraction"}, "heritage attraction"},
		{map[string]string{"place": "town", "amenity": "cafe"}, "town cafe"},
		{map[string]string{"traffic_sign": "city_limit"}, ""},
	} {
		f := newNode(1, 0, 0, tc.tags)
		if got := searchTagString(f); got != tc.want {
			t.Errorf("searchTagString(%v) = %q, want %q", tc.tags, got, tc.want)
		}
	}
}

func TestIndexLeafTile(t *testing.T) {
	id := MakeTileID(10, 163, 395)
	world := &memStore{}
	ll := lngLatAt(id, 0.5, 0.5)
	world.add(newNode(1, ll[0], ll[1], map[string]string{
		"place": "city", "name": "San Francisco",
	}))
	world.add(newAreaRelation(2, [][][][2]float64{{rectAt(id, -3, -3, 4, 4)}}, map[string]string{
		"boundary": "administrative", "admin_level": "4", "name": "California",
	}))
	// Named but junk-tagged features stay out of the index.
	ll2 := lngLatAt(id, 0.3, 0.3)
	world.add(newNode(3, ll2[0], ll2[1], map[string]string{
		"traffic_sign": "city_limit", "name": "Springfield",
	}))
	// Features outside the tile belong to a neighboring leaf.
	llOut := lngLatAt(id, 1.5, 0.5)
	world.add(newNode(4, llOut[0], llOut[1], map[string]string{
		"place": "town", "name": "Elsewhere",
	}))

	rows, err := indexLeafTile(world, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1: %+v", len(rows), rows)
	}
	row := rows[0]
	if row.name != "San Francisco" {
		t.Errorf("name = %q", row.name)
	}
	if !strings.Contains(row.admin, "California") {
		t.Errorf("admin = %q, want it to contain California", row.admin)
	}
	if row.tags != "city" {
		t.Errorf("tags = %q, want city", row.tags)
	}
	var props map[string]string
	if err := json.Unmarshal([]byte(row.props), &props); err != nil {
		t.Fatal(err)
	}
	if props["osm_id"] != "1" || props["osm_type"] != "node" {
		t.Errorf("props = %v", props)
	}
}

func TestIndexLeafSkipsAdminBoundaries(t *testing.T) {
	// The admin polygon itself is not a search row; its place node is.
	id := MakeTileID(10, 163, 395)
	world := &memStore{}
	world.add(newAreaRelation(2, [][][][2]float64{{rectAt(id, 0.1, 0.1, 0.9, 0.9)}}, map[string]string{
		"boundary": "administrative", "admin_level": "4", "name": "California",
	}))
	rows, err := indexLeafTile(world, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows, want 0: %+v", len(rows), rows)
	}
}

func TestAdminStringOrder(t *testing.T) {
	sq := func(x0, y0, x1, y1 float32) MultiPolygon {
		return MultiPolygon{{Ring{
			{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0},
		}}}
	}
	admins := []adminArea{
		{level: 2, name: "United States", bbMin: Point{0, 0}, bbMax: Point{1, 1}, mpoly: sq(0, 0, 1, 1)},
		{level: 4, name: "California", bbMin: Point{0, 0}, bbMax: Point{0.5, 1}, mpoly: sq(0, 0, 0.5, 1)},
		{level: 4, name: "Nevada", bbMin: Point{0.5, 0}, bbMax: Point{1, 1}, mpoly: sq(0.5, 0, 1, 1)},
		{level: 8, name: "San Francisco", bbMin: Point{0.1, 0.1}, bbMax: Point{0.2, 0.2}, mpoly: sq(0.1, 0.1, 0.2, 0.2)},
	}
	// Input comes pre-sorted by level descending.
	sorted := []adminArea{admins[3], admins[1], admins[2], admins[0]}

	got := adminString(sorted, Point{0.15, 0.15}, 0)
	if got != "San Francisco, California, United States" {
		t.Errorf("admin = %q", got)
	}
	// Levels at or above the feature's own rank are ignored.
	if got := adminString(sorted, Point{0.7, 0.5}, 4); got != "" {
		t.Errorf("admin with own level 4 = %q, want none", got)
	}
	// First hit per level wins.
	if got := adminString(sorted, Point{0.7, 0.5}, 0); got != "Nevada, United States" {
		t.Errorf("admin = %q, want Nevada, United States", got)
	}
}

func TestCountFeaturesShortCircuits(t *testing.T) {
	world := &memStore{}
	for i := 0; i < 10; i++ {
		world.add(newNode(int64(i), float64(i)/100, 0, map[string]string{"name": "n"}))
	}
	box := Box{MinX: -1e7, MinY: -1e7, MaxX: 1e7, MaxY: 1e7}
	if got := countFeatures(world, box); got != 10 {
		t.Errorf("countFeatures = %d, want 10", got)
	}
}
