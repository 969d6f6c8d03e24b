// SPDX-License-Identifier: MIT

package main

import (
	"encoding/binary"
	"math"
)

// Mapbox Vector Tile v2 encoder. Layers intern keys and values; features
// accumulate geometry commands and properties and become part of the
// layer only on commit, so a classifier can abandon a half-built feature.

const tileExtent = 4096

const (
	geomTypePoint      = 1
	geomTypeLineString = 2
	geomTypePolygon    = 3
)

const (
	cmdMoveTo    = 1
	cmdLineTo    = 2
	cmdClosePath = 7
)

// TilePoint is a quantized point in MVT integer coordinates, y growing
// south.
type TilePoint struct {
	X int32
	Y int32
}

type pbuf struct {
	b []byte
}

func (p *pbuf) varint(v uint64) {
	p.b = binary.AppendUvarint(p.b, v)
}

func (p *pbuf) key(field, wire int) {
	p.varint(uint64(field)<<3 | uint64(wire))
}

func (p *pbuf) bytesField(field int, b []byte) {
	p.key(field, 2)
	p.varint(uint64(len(b)))
	p.b = append(p.b, b...)
}

func (p *pbuf) stringField(field int, s string) {
	p.key(field, 2)
	p.varint(uint64(len(s)))
	p.b = append(p.b, s...)
}

func (p *pbuf) varintField(field int, v uint64) {
	p.key(field, 0)
	p.varint(v)
}

func (p *pbuf) doubleField(field int, v float64) {
	p.key(field, 1)
	p.b = binary.LittleEndian.AppendUint64(p.b, math.Float64bits(v))
}

func zigzag(v int32) uint32 {
	return uint32((v << 1) ^ (v >> 31))
}

func geomCommand(id, count uint32) uint32 {
	return (id & 0x7) | (count << 3)
}

type tileWriter struct {
	names  []string
	layers map[string]*layerWriter
}

func newTileWriter(layerNames []string) *tileWriter {
	t := &tileWriter{names: layerNames, layers: make(map[string]*layerWriter)}
	for _, name := range layerNames {
		t.layers[name] = &layerWriter{
			name:       name,
			keyIndex:   make(map[string]uint32),
			valueIndex: make(map[string]uint32),
		}
	}
	return t
}

func (t *tileWriter) layer(name string) *layerWriter {
	return t.layers[name]
}

func (t *tileWriter) numFeatures() int {
	n := 0
	for _, l := range t.layers {
		n += len(l.features)
	}
	return n
}

// serialize encodes the tile, skipping empty layers. A tile without any
// features serializes to nil.
func (t *tileWriter) serialize() []byte {
	var tile pbuf
	for _, name := range t.names {
		l := t.layers[name]
		if len(l.features) == 0 {
			continue
		}
		var layer pbuf
		layer.varintField(15, 2) // version
		layer.stringField(1, l.name)
		for _, f := range l.features {
			layer.bytesField(2, f)
		}
		for _, k := range l.keys {
			layer.stringField(3, k)
		}
		for _, v := range l.values {
			layer.bytesField(4, v)
		}
		layer.varintField(5, tileExtent)
		tile.bytesField(3, layer.b)
	}
	if len(tile.b) == 0 {
		return nil
	}
	return tile.b
}

type layerWriter struct {
	name       string
	keys       []string
	keyIndex   map[string]uint32
	values     [][]byte
	valueIndex map[string]uint32
	features   [][]byte
}

func (l *layerWriter) internKey(key string) uint32 {
	if i, ok := l.keyIndex[key]; ok {
		return i
	}
	i := uint32(len(l.keys))
	l.keys = append(l.keys, key)
	l.keyIndex[key] = i
	return i
}

func (l *layerWriter) internValue(encoded []byte) uint32 {
	if i, ok := l.valueIndex[string(encoded)]; ok {
		return i
	}
	i := uint32(len(l.values))
	l.values = append(l.values, encoded)
	l.valueIndex[string(encoded)] = i
	return i
}

func encodeStringValue(s string) []byte {
	var p pbuf
	p.stringField(1, s)
	return p.b
}

func encodeDoubleValue(v float64) []byte {
	var p pbuf
	p.doubleField(3, v)
	return p.b
}

// featureWriter builds a single MVT feature. The cursor tracks the last
// written position for delta encoding across geometry commands.
type featureWriter struct {
	layer    *layerWriter
	geomType uint32
	geom     []uint32
	tags     []uint32
	cursorX  int32
	cursorY  int32
}

func (l *layerWriter) newFeature(geomType uint32) *featureWriter {
	return &featureWriter{layer: l, geomType: geomType}
}

func (f *featureWriter) addString(key, value string) {
	f.tags = append(f.tags, f.layer.internKey(key), f.layer.internValue(encodeStringValue(value)))
}

func (f *featureWriter) addNumber(key string, value float64) {
	f.tags = append(f.tags, f.layer.internKey(key), f.layer.internValue(encodeDoubleValue(value)))
}

func (f *featureWriter) moveTo(p TilePoint) {
	f.geom = append(f.geom, geomCommand(cmdMoveTo, 1),
		zigzag(p.X-f.cursorX), zigzag(p.Y-f.cursorY))
	f.cursorX, f.cursorY = p.X, p.Y
}

func (f *featureWriter) lineTo(pts []TilePoint) {
	f.geom = append(f.geom, geomCommand(cmdLineTo, uint32(len(pts))))
	for _, p := range pts {
		f.geom = append(f.geom, zigzag(p.X-f.cursorX), zigzag(p.Y-f.cursorY))
		f.cursorX, f.cursorY = p.X, p.Y
	}
}

func (f *featureWriter) closePath() {
	f.geom = append(f.geom, geomCommand(cmdClosePath, 1))
}

func (f *featureWriter) addPoint(p TilePoint) {
	f.moveTo(p)
}

// addLineString appends one linestring part; pts needs at least two
// points.
func (f *featureWriter) addLineString(pts []TilePoint) {
	f.moveTo(pts[0])
	f.lineTo(pts[1:])
}

// addRing appends one polygon ring. The input repeats the first point at
// the end; on the wire the ring is closed with a ClosePath command
// instead.
func (f *featureWriter) addRing(pts []TilePoint) {
	pts = pts[:len(pts)-1]
	f.moveTo(pts[0])
	f.lineTo(pts[1:])
	f.closePath()
}

// hasGeometry reports whether any geometry command was written.
func (f *featureWriter) hasGeometry() bool {
	return len(f.geom) > 0
}

// commit encodes the feature and adds it to its layer.
func (f *featureWriter) commit() {
	var p pbuf
	if len(f.tags) > 0 {
		var tags pbuf
		for _, t := range f.tags {
			tags.varint(uint64(t))
		}
		p.bytesField(2, tags.b)
	}
	p.varintField(3, uint64(f.geomType))
	var geom pbuf
	for _, g := range f.geom {
		geom.varint(uint64(g))
	}
	p.bytesField(4, geom.b)
	f.layer.features = append(f.layer.features, p.b)
}
