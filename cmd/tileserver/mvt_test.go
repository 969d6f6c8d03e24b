// SPDX-License-Identifier: MIT

package main

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
)

func TestTileWriterRoundTrip(t *testing.T) {
	w := newTileWriter([]string{"water", "poi"})

	water := w.layer("water").newFeature(geomTypePolygon)
	water.addRing([]TilePoint{{0, 0}, {4096, 0}, {4096, 4096}, {0, 4096}, {0, 0}})
	water.addString("water", "ocean")
	water.commit()

	poi := w.layer("poi").newFeature(geomTypePoint)
	poi.addPoint(TilePoint{2048, 1024})
	poi.addString("name", "Lighthouse")
	poi.addNumber("ele", 42)
	poi.commit()

	data := w.serialize()
	if data == nil {
		t.Fatal("serialize returned nil")
	}
	layers, err := mvt.Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(layers) != 2 {
		t.Fatalf("got %d layers, want 2", len(layers))
	}
	byName := map[string]*mvt.Layer{}
	for _, l := range layers {
		byName[l.Name] = l
		if l.Extent != tileExtent {
			t.Errorf("layer %s extent = %d, want %d", l.Name, l.Extent, tileExtent)
		}
		if l.Version != 2 {
			t.Errorf("layer %s version = %d, want 2", l.Name, l.Version)
		}
	}

	wl := byName["water"]
	if wl == nil || len(wl.Features) != 1 {
		t.Fatal("missing water feature")
	}
	poly, ok := wl.Features[0].Geometry.(orb.Polygon)
	if !ok {
		t.Fatalf("water geometry is %T, want polygon", wl.Features[0].Geometry)
	}
	if got := wl.Features[0].Properties.MustString("water"); got != "ocean" {
		t.Errorf("water tag = %q, want ocean", got)
	}
	// Exterior rings carry positive area in tile coordinates.
	if area := screenRingArea(poly[0]); area <= 0 {
		t.Errorf("exterior ring area = %f, want positive", area)
	}

	pl := byName["poi"]
	if pl == nil || len(pl.Features) != 1 {
		t.Fatal("missing poi feature")
	}
	pt, ok := pl.Features[0].Geometry.(orb.Point)
	if !ok {
		t.Fatalf("poi geometry is %T, want point", pl.Features[0].Geometry)
	}
	if pt[0] != 2048 || pt[1] != 1024 {
		t.Errorf("poi point = %v, want (2048, 1024)", pt)
	}
	if got := pl.Features[0].Properties.MustString("name"); got != "Lighthouse" {
		t.Errorf("poi name = %q", got)
	}
	if got := pl.Features[0].Properties.MustFloat64("ele"); got != 42 {
		t.Errorf("poi ele = %f, want 42", got)
	}
}

func TestTileWriterSkipsEmptyLayers(t *testing.T) {
	w := newTileWriter([]string{"place", "water"})
	f := w.layer("water").newFeature(geomTypePoint)
	f.addPoint(TilePoint{1, 1})
	f.commit()
	layers, err := mvt.Unmarshal(w.serialize())
	if err != nil {
		t.Fatal(err)
	}
	if len(layers) != 1 || layers[0].Name != "water" {
		t.Errorf("got %d layers, want only water", len(layers))
	}
}

func TestTileWriterEmptyTile(t *testing.T) {
	w := newTileWriter(ascendLayers)
	if got := w.serialize(); got != nil {
		t.Errorf("empty tile should serialize to nil, got %d bytes", len(got))
	}
	if w.numFeatures() != 0 {
		t.Errorf("numFeatures = %d, want 0", w.numFeatures())
	}
}

func TestValueInterning(t *testing.T) {
	w := newTileWriter([]string{"poi"})
	l := w.layer("poi")
	for i := 0; i < 3; i++ {
		f := l.newFeature(geomTypePoint)
		f.addPoint(TilePoint{int32(i), 0})
		f.addString("class", "cafe")
		f.commit()
	}
	if len(l.keys) != 1 || len(l.values) != 1 {
		t.Errorf("got %d keys and %d values, want 1 and 1", len(l.keys), len(l.values))
	}
}

func TestZigzag(t *testing.T) {
	for _, tc := range []struct {
		in   int32
		want uint32
	}{{0, 0}, {-1, 1}, {1, 2}, {-2, 3}, {2147483647, 4294967294}} {
		if got := zigzag(tc.in); got != tc.want {
			t.Errorf("zigzag(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

// screenRingArea is the surveyor's formula in tile coordinates, where
// the y axis points down.
func screenRingArea(ring orb.Ring) float64 {
	area := 0.0
	for i := 0; i < len(ring)-1; i++ {
		area += ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
	}
	return area / 2
}
