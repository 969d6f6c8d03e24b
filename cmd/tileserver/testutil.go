// SPDX-License-Identifier: MIT

package main

// In-memory feature store, used by tests and as the reference semantics
// for the SQLite-backed store.

type memStore struct {
	feats []*osmFeature
}

func (s *memStore) add(f *osmFeature) *osmFeature {
	s.feats = append(s.feats, f)
	return f
}

func (s *memStore) Find(box Box, fn func(Feature) bool) error {
	for _, f := range s.feats {
		if !f.Bounds().Intersects(box) {
			continue
		}
		if !fn(f) {
			return nil
		}
	}
	return nil
}

func (s *memStore) FindMatching(query string, box Box, fn func(Feature) bool) error {
	tq, err := parseTagQuery(query)
	if err != nil {
		return err
	}
	for _, f := range s.feats {
		if !tq.matches(f) || !f.Bounds().Intersects(box) {
			continue
		}
		if !fn(f) {
			return nil
		}
	}
	return nil
}

func (s *memStore) FindContaining(pos LngLat, fn func(Feature) bool) error {
	p := lngLatToProjectedMeters(pos)
	for _, f := range s.feats {
		if !f.area || !f.Bounds().ContainsPoint(p) || !f.containsMerc(p) {
			continue
		}
		if !fn(f) {
			return nil
		}
	}
	return nil
}

func (s *memStore) Close() error { return nil }

// newNode makes a node feature at a lng/lat location.
func newNode(id int64, lng, lat float64, tags map[string]string) *osmFeature {
	if tags == nil {
		tags = map[string]string{}
	}
	return &osmFeature{
		id:     id,
		kind:   NodeFeature,
		tags:   tags,
		coords: MercRing{lngLatToProjectedMeters(LngLat{Lng: lng, Lat: lat})},
	}
}

// newWay makes a linear way from lng/lat pairs.
func newWay(id int64, lngLats [][2]float64, tags map[string]string) *osmFeature {
	if tags == nil {
		tags = map[string]string{}
	}
	coords := make(MercRing, len(lngLats))
	for i, ll := range lngLats {
		coords[i] = lngLatToProjectedMeters(LngLat{Lng: ll[0], Lat: ll[1]})
	}
	return &osmFeature{id: id, kind: WayFeature, tags: tags, coords: coords}
}

// newArea makes a closed way area from lng/lat pairs. The ring closes
// itself if the input does not.
func newArea(id int64, lngLats [][2]float64, tags map[string]string) *osmFeature {
	if tags == nil {
		tags = map[string]string{}
	}
	ring := make(MercRing, 0, len(lngLats)+1)
	for _, ll := range lngLats {
		ring = append(ring, lngLatToProjectedMeters(LngLat{Lng: ll[0], Lat: ll[1]}))
	}
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return &osmFeature{
		id:     id,
		kind:   WayFeature,
		area:   true,
		tags:   tags,
		coords: ring,
		polys:  []MercPolygon{{ring}},
	}
}

// newAreaRelation makes a multipolygon relation from pre-assembled
// polygons in lng/lat.
func newAreaRelation(id int64, polys [][][][2]float64, tags map[string]string) *osmFeature {
	if tags == nil {
		tags = map[string]string{}
	}
	mp := make([]MercPolygon, 0, len(polys))
	for _, poly := range polys {
		var rings MercPolygon
		for _, r := range poly {
			ring := make(MercRing, 0, len(r)+1)
			for _, ll := range r {
				ring = append(ring, lngLatToProjectedMeters(LngLat{Lng: ll[0], Lat: ll[1]}))
			}
			if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
				ring = append(ring, ring[0])
			}
			rings = append(rings, ring)
		}
		mp = append(mp, rings)
	}
	return &osmFeature{id: id, kind: RelationFeature, area: true, tags: tags, polys: mp}
}

// newRelation makes a non-area relation with the given members.
func newRelation(id int64, members []Feature, tags map[string]string) *osmFeature {
	if tags == nil {
		tags = map[string]string{}
	}
	for _, m := range members {
		if f, ok := m.(*osmFeature); ok {
			f.inRel = true
		}
	}
	return &osmFeature{id: id, kind: RelationFeature, tags: tags, members: members}
}
