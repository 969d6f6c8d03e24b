// SPDX-License-Identifier: MIT

package main

import (
	"log"
	"strconv"
)

// The Ascend schema: maps OSM tag combinations to output layers,
// attributes and minimum zoom levels. Dispatch is by geometry kind with
// fixed priority order per kind; the first accepted branch returns.

var ascendLayers = []string{
	"place", "boundary", "poi", "transportation", "transit", "building", "water", "landuse",
}

type ascendBuilder struct {
	tileBuilder
}

func newAscendBuilder(id TileID) *ascendBuilder {
	b := &ascendBuilder{tileBuilder: *newTileBuilder(id, ascendLayers)}
	b.process = b.processFeature
	return b
}

// buildTile builds one tile. A fault while processing any feature is
// confined to this tile: the panic is logged with the offending feature
// id and the tile comes back empty.
func buildTile(id TileID, world, ocean FeatureStore, compress bool) (mvt []byte) {
	b := newAscendBuilder(id)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic building tile %s (feature %d): %v", id, b.featID, r)
			mvt = nil
		}
	}()
	mvt, err := b.build(world, ocean, compress)
	if err != nil {
		log.Printf("error building tile %s (feature %d): %v", id, b.featID, err)
		return nil
	}
	return mvt
}

func (b *ascendBuilder) processFeature() {
	if b.feat == nil || b.featID == oceanFeatureID {
		// Ocean polygon, synthesized from coastline or the ocean store.
		b.Layer("water", true)
		b.Attribute("class", "ocean")
		b.Attribute("water", "ocean")
		return
	}
	switch {
	case b.feat.Kind() == WayFeature:
		b.processWay()
	case b.feat.Kind() == NodeFeature:
		b.processNode()
	case b.Find("type") == "multipolygon":
		b.processWay()
	default:
		b.processRelation()
	}
}

// stringSet answers membership; the empty string is never a member.
type stringSet map[string]struct{}

func newSet(items ...string) stringSet {
	s := make(stringSet, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

func (s stringSet) has(v TagValue) bool {
	if v == "" {
		return false
	}
	_, ok := s[string(v)]
	return ok
}

// excludeZoom marks tag values that are never emitted; it compares
// greater than any real zoom.
const excludeZoom = 100

// zmap maps values of one tag to minimum zoom levels.
type zmap struct {
	tag   string
	dflt  int
	items map[string]int
}

func newZMap(tag string, dflt int) *zmap {
	return &zmap{tag: tag, dflt: dflt, items: make(map[string]int)}
}

func (z *zmap) add(zoom int, values ...string) *zmap {
	for _, v := range values {
		z.items[v] = zoom
	}
	return z
}

func (z *zmap) get(v TagValue) int {
	if v == "" {
		return z.dflt
	}
	if zoom, ok := z.items[string(v)]; ok {
		return zoom
	}
	return z.dflt
}

// Highway classes pack the minzoom in the low byte and the label zoom in
// the next byte (0 means labels at z14). Negative values are on/off
// ramps: the _link suffix is stripped and ramp=1 emitted.
func hz(minzoom, labelZoom int) int { return minzoom | labelZoom<<8 }

var highwayValues = map[string]int{
	"motorway": hz(4, 8), "trunk": hz(5, 8), "primary": hz(7, 12),
	"secondary": hz(9, 12), "tertiary": hz(11, 12),
	// minor roads
	"unclassified": 12, "residential": 12, "road": 12, "living_street": 12, "service": 12,
	// tracks
	"cycleway": 10, "byway": 10, "bridleway": 10, "track": 10,
	// paths
	"footway": 10, "path": 10, "steps": 10, "pedestrian": 10,
	// link roads
	"motorway_link": -11, "trunk_link": -11, "primary_link": -11,
	"secondary_link": -11, "tertiary_link": -11,
}

var (
	aerodromeValues = newSet("international", "public", "regional", "military", "private")

	pavedValues = newSet("paved", "asphalt", "cobblestone", "concrete", "concrete:lanes",
		"concrete:plates", "metal", "paving_stones", "sett", "unhewn_cobblestone", "wood")
	unpavedValues = newSet("unpaved", "compacted", "dirt", "earth", "fine_gravel", "grass",
		"grass_paver", "gravel", "gravel_turf", "ground", "ice", "mud", "pebblestone",
		"salt", "sand", "snow", "woodchips")
	hardSacScales = newSet("demanding_mountain_hiking", "alpine_hiking",
		"demanding_alpine_hiking", "difficult_alpine_hiking")

	parkValues   = newSet("protected_area", "national_park")
	landuseAreas = newSet("retail", "military", "residential", "commercial", "industrial",
		"railway", "cemetery", "forest", "grass", "allotments", "meadow", "recreation_ground",
		"village_green", "landfill", "farmland", "farmyard", "orchard", "vineyard",
		"plant_nursery", "greenhouse_horticulture", "farm")
	naturalAreas = newSet("wood", "grassland", "grass", "scrub", "fell", "heath", "wetland",
		"glacier", "beach", "sand", "bare_rock", "scree")
	leisureAreas = newSet("pitch", "park", "garden", "playground", "golf_course", "stadium")
	amenityAreas = newSet("school", "university", "kindergarten", "college", "library",
		"hospital", "bus_station", "marketplace")
	tourismAreas = newSet("zoo", "theme_park", "aquarium")

	waterwayClasses = newSet("stream", "river", "canal", "drain", "ditch")
	waterwayAreas   = newSet("river", "riverbank", "stream", "canal", "drain", "ditch", "dock")
	waterLanduse    = newSet("reservoir", "basin", "salt_pond")
	noNameWater     = newSet("river", "basin", "wastewater", "canal", "stream", "ditch", "drain")
	manMadeClasses  = newSet("pier", "breakwater", "groyne")
	aerowayClasses  = newSet("taxiway", "hangar", "runway", "helipad", "aerodrome", "airstrip", "tower")
	aerowayBuildings = newSet("terminal", "gate", "tower")
)

var transitRoutes = newZMap("route", excludeZoom).
	add(8, "train").add(10, "subway").
	add(12, "tram", "share_taxi", "light_rail").
	add(14, "bus", "trolleybus")

var otherRoutes = newZMap("route", excludeZoom).
	add(8, "road").add(9, "ferry").
	add(10, "bicycle", "hiking", "mtb").
	add(12, "foot", "ski")

// Coastline ways known to break ocean stitching; skipped until fixed
// upstream.
var badCoastlineIDs = map[int64]bool{
	907541034: true,
	390812549: true,
}

func (b *ascendBuilder) processNode() {
	place := b.Find("place")
	if place != "" {
		pop := b.Find("population").Num()
		mz := 13
		switch string(place) {
		case "continent":
			mz = 0
		case "country":
			mz = 3 - b2i(pop > 50e6) - b2i(pop > 20e6)
		case "state", "province":
			mz = 4
		case "city":
			mz = 5 - b2i(pop > 5e6) - b2i(pop > 500e3)
		case "town":
			if pop > 8000 {
				mz = 7
			} else {
				mz = 8
			}
		case "village":
			if pop > 2000 {
				mz = 9
			} else {
				mz = 10
			}
		case "suburb":
			mz = 11
		case "hamlet", "quarter":
			mz = 12
		}
		if !b.MinZoom(mz) {
			return
		}
		b.Layer("place", false)
		b.Attribute("class", place)
		b.Attribute("place", place)
		b.Attribute("ref", b.Find("ref"))
		b.Attribute("capital", b.Find("capital"))
		if pop > 0 {
			b.AttributeNumeric("population", pop)
		}
		if sqkm := b.Find("sqkm"); sqkm != "" {
			b.AttributeNumeric("sqkm", sqkm.Num())
		}
		if place == "country" {
			b.Attribute("iso_a2", b.Find("ISO3166-1:alpha2"))
		}
		b.Attribute("place_CN", b.Find("place:CN"))
		b.setNameAttributes(0)
		b.setIDAttributes()
		return
	}

	// Smaller airports often only have an aerodrome node, no way.
	if b.Find("aeroway") == "aerodrome" {
		if !b.MinZoom(11) {
			return
		}
		b.writeAerodrome(0)
		return
	}

	natural := b.Find("natural")
	if natural == "peak" || natural == "volcano" {
		prom := b.Find("prominence").Num()
		mz := 11
		switch {
		case prom > 4000:
			mz = 6
		case prom > 3500:
			mz = 7
		case prom > 3000:
			mz = 8
		case prom > 2500:
			mz = 9
		case prom > 2000:
			mz = 10
		}
		if !b.MinZoom(mz) {
			return
		}
		b.Layer("poi", false)
		b.setNameAttributes(0)
		b.setIDAttributes()
		b.setEleAttributes()
		b.Attribute("natural", natural)
		return
	}

	if natural == "bay" {
		if !b.MinZoom(8) {
			return
		}
		b.Layer("water", false)
		b.setNameAttributes(0)
		return
	}

	b.writePOI(0, false)
}

func (b *ascendBuilder) processWay() {
	// Over half of all ways are buildings, so handle them first.
	if b.Find("building") != "" {
		if !b.MinZoom(13) || !b.setMinZoomByArea(0) {
			return
		}
		b.Layer("building", true)
		b.setBuildingHeightAttributes()
		if b.MinZoom(14) {
			b.Attribute("housenumber", b.Find("addr:housenumber"))
			b.writePOI(0, true)
		}
		return
	}

	if highwayTag := b.Find("highway"); highwayTag != "" {
		b.writeHighway(string(highwayTag))
		return
	}

	if railway := b.Find("railway"); railway != "" {
		service := b.Find("service")
		mz := 9
		if service != "" {
			mz = 12
		}
		if !b.MinZoom(mz) {
			return
		}
		b.Layer("transportation", false)
		b.Attribute("class", "rail")
		b.Attribute("railway", railway)
		b.setBrunnelAttributes()
		b.setNameAttributes(14)
		b.Attribute("service", service)
		return
	}

	isClosed := b.IsClosed()
	waterway := b.Find("waterway")
	landuse := b.Find("landuse")

	// A waterway way marks the course; wide rivers carry extra area
	// polygons for the water itself.
	if waterwayClasses.has(waterway) && !isClosed {
		namedRiver := waterway == "river" && b.Holds("name")
		mz := 12
		if namedRiver {
			mz = 8
		}
		if !b.MinZoom(mz) {
			return
		}
		b.Layer("water", false)
		if b.Find("intermittent") == "yes" {
			b.AttributeNumeric("intermittent", 1)
		}
		b.Attribute("class", waterway)
		b.Attribute("waterway", waterway)
		b.setNameAttributes(0)
		b.setBrunnelAttributes()
		return
	} else if waterway == "dam" {
		if !b.MinZoom(12) {
			return
		}
		b.Layer("building", isClosed)
		b.Attribute("waterway", waterway)
		return
	} else if waterway == "boatyard" || waterway == "fuel" {
		landuse = "industrial"
	}

	natural := b.Find("natural")
	leisure := b.Find("leisure")
	var waterbody TagValue
	switch {
	case waterLanduse.has(landuse):
		waterbody = landuse
	case waterwayAreas.has(waterway):
		waterbody = waterway
	case leisure == "swimming_pool":
		waterbody = leisure
	case natural == "water":
		waterbody = natural
	}

	if waterbody != "" {
		if !isClosed || !b.setMinZoomByArea(0) || b.Find("covered") == "yes" {
			return
		}
		cls := TagValue("lake")
		if waterway != "" {
			cls = "river"
		}
		water := b.Find("water")
		if water == "" {
			water = waterbody
		}
		named := b.Holds("name") && natural == "water" && !noNameWater.has(water)
		b.Layer("water", true)
		b.Attribute("class", cls)
		b.Attribute("water", water)
		if b.Find("intermittent") == "yes" {
			b.AttributeNumeric("intermittent", 1)
		}
		// Basins and rivers carry their name on the waterway way; lakes
		// get the name on the polygon plus a label point.
		if named {
			b.setNameAttributes(14)
			b.AttributeNumeric("area", b.Area())
			if b.MinZoom(14) {
				b.LayerAsCentroid("water")
				b.Attribute("class", cls)
				b.setNameAttributes(0)
				b.AttributeNumeric("area", b.Area())
			}
		}
		return
	}

	if natural == "coastline" {
		if !badCoastlineIDs[b.featID] {
			b.addCoastline(b.feat)
		}
		// Coastline ways can double as boundaries; keep going.
	} else if natural == "valley" || natural == "gorge" {
		length := b.Length()
		b.Layer("landuse", false)
		b.setMinZoomByArea(length * length)
		b.Attribute("natural", natural)
		b.setNameAttributes(0)
		return
	}

	boundary := b.Find("boundary")
	parkBoundary := parkValues.has(boundary)
	if parkBoundary || leisure == "nature_reserve" {
		if !b.setMinZoomByArea(0) {
			return
		}
		// National Forests blanket the western US and drown everything
		// else out.
		if b.Find("protection_title") == "National Forest" &&
			b.Find("operator") == "United States Forest Service" {
			return
		}
		cls := leisure
		if parkBoundary {
			cls = boundary
		}
		b.Layer("landuse", true)
		b.Attribute("class", cls)
		if parkBoundary {
			b.Attribute("boundary", boundary)
		}
		b.Attribute("leisure", leisure)
		b.Attribute("protect_class", b.Find("protect_class"))
		b.Attribute("access", b.Find("access"))
		b.setNameAttributes(0)
		b.writePOI(b.Area(), b.MinZoom(14))
	}

	if !b.feat.BelongsToRelation() && (boundary == "administrative" || boundary == "disputed") {
		b.writeBoundary()
	}

	place := b.Find("place")
	if place == "island" || place == "islet" {
		if !b.setMinZoomByArea(0) {
			return
		}
		b.LayerAsCentroid("place")
		b.Attribute("class", place)
		b.Attribute("place", place)
		b.setNameAttributes(0)
		b.setIDAttributes()
		return
	}

	amenity := b.Find("amenity")
	tourism := b.Find("tourism")
	if landuse == "field" {
		landuse = "farmland"
	} else if landuse == "meadow" && b.Find("meadow") == "agricultural" {
		landuse = "farmland"
	}

	if landuseAreas.has(landuse) || naturalAreas.has(natural) || leisureAreas.has(leisure) ||
		amenityAreas.has(amenity) || tourismAreas.has(tourism) {
		if !b.setMinZoomByArea(0) {
			return
		}
		b.Layer("landuse", true)
		b.Attribute("landuse", landuse)
		b.Attribute("natural", natural)
		b.Attribute("leisure", leisure)
		b.Attribute("amenity", amenity)
		b.Attribute("tourism", tourism)
		if natural == "wetland" {
			b.Attribute("wetland", b.Find("wetland"))
		}
		b.writePOI(b.Area(), b.MinZoom(14))
		return
	}

	if manMade := b.Find("man_made"); manMadeClasses.has(manMade) {
		if !b.setMinZoomByArea(0) {
			return
		}
		b.Layer("landuse", isClosed)
		b.Attribute("class", manMade)
		b.Attribute("man_made", manMade)
		return
	}

	if b.Find("route") == "ferry" {
		if !b.MinZoom(9) {
			return
		}
		// The parent route relation writes the ferry; skip members to
		// avoid duplicates.
		if b.feat.BelongsToRelation() {
			return
		}
		b.Layer("transportation", false)
		b.Attribute("route", "ferry")
		b.setBrunnelAttributes()
		b.setNameAttributes(12)
		return
	}

	if pisteDiff := b.Find("piste:difficulty"); pisteDiff != "" {
		if !b.MinZoom(10) {
			return
		}
		b.Layer("transportation", isClosed)
		b.Attribute("class", "piste")
		b.Attribute("route", "piste")
		b.Attribute("difficulty", pisteDiff)
		b.Attribute("piste_type", b.Find("piste:type"))
		// Grooming lets the style ignore backcountry "pistes".
		b.Attribute("piste_grooming", b.Find("piste:grooming"))
		b.setNameAttributes(14)
		return
	}

	if aerialway := b.Find("aerialway"); aerialway != "" {
		if !b.MinZoom(10) {
			return
		}
		b.Layer("transportation", false)
		b.Attribute("class", "aerialway")
		b.Attribute("aerialway", aerialway)
		b.setNameAttributes(14)
		return
	}

	aeroway := b.Find("aeroway")
	if aerowayBuildings.has(aeroway) {
		if !b.setMinZoomByArea(0) {
			return
		}
		b.Layer("building", true)
		b.Attribute("aeroway", aeroway)
		b.setBuildingHeightAttributes()
		if b.MinZoom(14) {
			b.writePOI(0, true)
		}
		return
	}
	if aerowayClasses.has(aeroway) {
		if !b.MinZoom(10) {
			return
		}
		if aeroway == "aerodrome" {
			b.writeAerodrome(b.Area())
		} else {
			b.Layer("transportation", isClosed)
			b.Attribute("aeroway", aeroway)
			b.Attribute("ref", b.Find("ref"))
		}
		return
	}

	if isClosed {
		b.writePOI(b.Area(), false)
	}
}

func (b *ascendBuilder) processRelation() {
	relType := b.Find("type")
	if relType == "route" {
		route := b.Find("route")
		if route == "ferry" {
			if !b.MinZoom(9) {
				return
			}
			b.Layer("transportation", false)
			b.Attribute("route", "ferry")
			b.setNameAttributes(12)
			return
		}
		if b.MinZoom(transitRoutes.get(route)) {
			b.Layer("transit", false)
		} else if b.MinZoom(otherRoutes.get(route)) {
			b.Layer("transportation", false)
		} else {
			return
		}
		b.Attribute("class", "route")
		b.Attribute("route", route)
		b.Attribute("name", b.Find("name"))
		b.Attribute("ref", b.Find("ref"))
		b.Attribute("network", b.Find("network"))
		b.Attribute("color", b.Find("colour")) // note spelling
		b.setIDAttributes()
		return
	}
	if relType == "boundary" {
		boundary := b.Find("boundary")
		if boundary == "administrative" || boundary == "disputed" {
			b.writeBoundary()
			return
		}
		if !parkValues.has(boundary) || !b.MinZoom(8) {
			return
		}
		// Marine sanctuaries are not useful for typical map use.
		if b.Find("maritime") == "yes" {
			return
		}
		leisure := b.Find("leisure")
		protectClass := b.Find("protect_class")
		access := b.Find("access")
		area := b.Area()
		b.Layer("landuse", true)
		b.Attribute("class", boundary)
		b.Attribute("boundary", boundary)
		b.Attribute("leisure", leisure)
		b.Attribute("protect_class", protectClass)
		b.Attribute("access", access)
		b.setNameAttributes(0)
		b.AttributeNumeric("area", area)
		b.LayerAsCentroid("poi")
		b.Attribute("class", boundary)
		b.Attribute("boundary", boundary)
		b.Attribute("leisure", leisure)
		b.Attribute("protect_class", protectClass)
		b.Attribute("access", access)
		b.setNameAttributes(0)
		b.setIDAttributes()
		b.AttributeNumeric("area", area)
	}
}

func (b *ascendBuilder) writeHighway(highway string) {
	packed, ok := highwayValues[highway]
	if !ok {
		return
	}
	ramp := packed < 0
	if ramp {
		highway = highway[:len(highway)-len("_link")]
		packed = -packed
	}
	labelZoom := packed >> 8
	if labelZoom == 0 {
		labelZoom = 14
	}
	if !b.MinZoom(packed & 0xff) {
		return
	}

	if access := b.Find("access"); access == "private" || access == "no" {
		return
	}
	// Most footways with a sub-value are sidewalks or crossings, which
	// are mapped too inconsistently to be anything but clutter.
	if highway == "footway" && b.Holds("footway") {
		return
	}
	// Highways mapped as areas (pedestrian plazas) pass the area filter;
	// closed linear ways like roundabouts stay.
	if b.feat.IsArea() && !b.setMinZoomByArea(0) {
		return
	}

	b.Layer("transportation", false)
	b.Attribute("highway", TagValue(highway))
	b.setBrunnelAttributes()
	if ramp {
		b.AttributeNumeric("ramp", 1)
	}
	if highway == "service" {
		b.Attribute("service", b.Find("service"))
	}
	if oneway := b.Find("oneway"); oneway == "yes" || oneway == "1" {
		b.AttributeNumeric("oneway", 1)
	}

	cycleway := b.Find("cycleway")
	if cycleway == "" {
		cycleway = b.Find("cycleway:both")
	}
	if cycleway != "" && cycleway != "no" {
		b.Attribute("cycleway", cycleway)
	}
	if v := b.Find("cycleway:left"); v != "" && v != "no" {
		b.Attribute("cycleway_left", v)
	}
	if v := b.Find("cycleway:right"); v != "" && v != "no" {
		b.Attribute("cycleway_right", v)
	}
	if v := b.Find("bicycle"); v != "" && v != "no" {
		b.Attribute("bicycle", v)
	}

	if surface := b.Find("surface"); pavedValues.has(surface) {
		b.Attribute("surface", "paved")
	} else if unpavedValues.has(surface) {
		b.Attribute("surface", "unpaved")
	}

	if v := b.Find("trail_visibility"); v != "" && v != "good" && v != "excellent" {
		b.Attribute("trail_visibility", v)
	}
	if v := b.Find("sac_scale"); hardSacScales.has(v) {
		b.Attribute("sac_scale", v)
	}
	b.Attribute("mtb_scale", b.Find("mtb:scale"))
	if highway == "path" {
		b.Attribute("golf", b.Find("golf"))
	}

	b.setNameAttributes(labelZoom)
	b.Attribute("maxspeed", b.Find("maxspeed"))
	b.Attribute("lanes", b.Find("lanes"))
	b.Attribute("ref", b.Find("ref"))
}

func (b *ascendBuilder) writeAerodrome(area float64) {
	if b.feat.Kind() == NodeFeature {
		b.Layer("transportation", false)
	} else {
		b.Layer("transportation", b.IsClosed())
	}
	b.Attribute("aeroway", "aerodrome")
	b.Attribute("ref", b.Find("ref"))
	b.setNameAttributes(0)
	b.setEleAttributes()
	b.Attribute("iata", b.Find("iata"))
	b.Attribute("icao", b.Find("icao"))
	aerodrome := b.Find("aerodrome")
	if !aerodromeValues.has(aerodrome) {
		aerodrome = "other"
	}
	b.Attribute("aerodrome", aerodrome)
	if area > 0 {
		b.AttributeNumeric("area", area)
	}
	b.setIDAttributes()
}

// POI selection moves toward including every value of a key except for
// common unwanted values. The table order is the match priority.
var poiTags = []*zmap{
	// all amenity values with count > 1000 (as of Jan 2024) that we wish
	// to exclude
	newZMap("amenity", 14).add(12, "bus_station", "ferry_terminal").
		add(excludeZoom, "parking_space", "bench", "shelter", "waste_basket",
			"bicycle_parking", "recycling", "hunting_stand", "vending_machine",
			"post_box", "parking_entrance", "telephone", "bbq", "motorcycle_parking",
			"grit_bin", "clock", "letter_box", "watering_place", "loading_dock",
			"payment_terminal", "mobile_money_agent", "trolley_bay", "ticket_validator",
			"lounger", "feeding_place", "vacuum_cleaner", "game_feeding", "smoking_area",
			"photo_booth", "kneipp_water_cure", "table", "fixme", "office", "chair"),
	newZMap("tourism", 14).add(12, "attraction", "viewpoint", "museum").add(excludeZoom, "yes"),
	newZMap("leisure", 14).add(excludeZoom, "fitness_station", "picnic_table",
		"slipway", "outdoor_seating", "firepit", "bleachers", "common", "yes"),
	newZMap("shop", 14),
	newZMap("sport", 14),
	newZMap("landuse", excludeZoom).add(14, "basin", "brownfield", "cemetery", "reservoir", "winter_sports"),
	newZMap("historic", excludeZoom).add(14, "monument", "castle", "ruins", "fort", "mine", "archaeological_site"),
	newZMap("highway", excludeZoom).add(12, "bus_stop", "trailhead").add(14, "traffic_signals"),
	newZMap("railway", excludeZoom).add(12, "halt", "station", "tram_stop").
		add(14, "subway_entrance", "train_station_entrance"),
	newZMap("natural", excludeZoom).add(13, "spring", "hot_spring", "fumarole", "geyser",
		"sinkhole", "arch", "cave_entrance", "saddle"),
	newZMap("barrier", excludeZoom).add(14, "bollard", "border_control", "cycle_barrier",
		"gate", "lift_gate", "sally_port", "stile", "toll_booth"),
	newZMap("building", excludeZoom).add(14, "dormitory"),
	newZMap("aerialway", excludeZoom).add(14, "station"),
	newZMap("waterway", excludeZoom).add(14, "dock"),
}

var extraPoiTags = []string{"cuisine", "station", "religion", "operator", "archaeological_site", "ref"}

// writePOI emits a generic POI at the feature centroid. Features below
// z12 only qualify through their area; above, a table minzoom match, an
// area, a wikipedia/wikidata tag, or force with a name all qualify.
func (b *ascendBuilder) writePOI(area float64, force bool) bool {
	if !b.MinZoom(12) && area <= 0 {
		return false
	}
	force12 := area > 0 || b.Holds("wikipedia") || b.Holds("wikidata")
	emit := func() {
		b.LayerAsCentroid("poi")
		b.setNameAttributes(0)
		b.setIDAttributes()
		if area > 0 {
			b.AttributeNumeric("area", area)
		}
		for _, z := range poiTags {
			b.Attribute(z.tag, b.Find(z.tag))
		}
		for _, tag := range extraPoiTags {
			b.Attribute(tag, b.Find(tag))
		}
		if b.Holds("wikipedia") {
			b.AttributeNumeric("wikipedia", 1)
		}
		if b.Holds("wikidata") {
			b.AttributeNumeric("wikidata", 1)
		}
	}
	for _, z := range poiTags {
		val := b.Find(z.tag)
		if val != "" && (force12 || b.MinZoom(z.get(val))) {
			emit()
			return true
		}
	}
	if force && b.Holds("name") {
		emit()
		return true
	}
	return false
}

func (b *ascendBuilder) setNameAttributes(minZoom int) {
	if !b.MinZoom(minZoom) {
		return
	}
	name := b.Find("name")
	b.Attribute("name", name)
	if nameEn := b.Find("name:en"); nameEn != "" && nameEn != name {
		b.Attribute("name_en", nameEn)
	}
}

// IDs go on poi, place and transit layers, where the app needs to refer
// back to the OSM object.
func (b *ascendBuilder) setIDAttributes() {
	b.Attribute("osm_id", TagValue(strconv.FormatInt(b.featID, 10)))
	b.Attribute("osm_type", TagValue(b.feat.Kind().String()))
}

func (b *ascendBuilder) setEleAttributes() {
	if ele := b.Find("ele"); ele != "" {
		b.AttributeNumeric("ele", ele.Num())
	}
}

func (b *ascendBuilder) setBrunnelAttributes() {
	if b.Find("bridge") == "yes" {
		b.Attribute("brunnel", "bridge")
	} else if b.Find("tunnel") == "yes" {
		b.Attribute("brunnel", "tunnel")
	} else if b.Find("ford") == "yes" {
		b.Attribute("brunnel", "ford")
	}
}

const buildingFloorHeight = 3.66 // meters

func (b *ascendBuilder) setBuildingHeightAttributes() {
	var height, minHeight float64
	if h := b.Find("height"); h != "" {
		height = h.Num()
		minHeight = b.Find("min_height").Num()
	} else if levels := b.Find("building:levels"); levels != "" {
		height = levels.Num() * buildingFloorHeight
		minHeight = b.Find("building:min_level").Num() * buildingFloorHeight
	}
	if height < minHeight {
		height += minHeight
	}
	if height > 0 {
		b.AttributeNumeric("height", height)
	}
	if minHeight > 0 {
		b.AttributeNumeric("min_height", minHeight)
	}
}

// setMinZoomByArea filters out features too small to show at this zoom:
// anything below one 256th of a tile edge at the parent zoom, squared.
// The bounding box serves as a cheap upper bound before the exact area
// is computed.
func (b *ascendBuilder) setMinZoomByArea(area float64) bool {
	if b.MinZoom(14) {
		return true
	}
	bounds := b.feat.Bounds()
	// Degenerate geometry spanning past ±85° latitude.
	if bounds.Height() > earthHalfCircumf {
		return false
	}
	thresh := sq(metersPerTileAtZoom(b.id.Z-1) / 256)
	if area > 0 {
		return area > thresh
	}
	if bounds.Width()*bounds.Height() < thresh {
		return false
	}
	return b.Area() > thresh
}

func (b *ascendBuilder) writeBoundary() {
	adminLevel := b.Find("admin_level").Num()
	if adminLevel < 1 {
		adminLevel = 11
	}
	var mz int
	switch {
	case adminLevel >= 8:
		mz = 12
	case adminLevel >= 7:
		mz = 10
	case adminLevel >= 5:
		mz = 8
	case adminLevel >= 3:
		mz = 4
	default:
		mz = 2
	}
	if !b.MinZoom(mz) {
		return
	}

	maritime := b.Find("maritime") == "yes"
	disputed := b.Find("boundary") == "disputed" || b.Find("disputed") == "yes"
	if b.feat.Kind() == WayFeature {
		b.Layer("boundary", false)
		b.AttributeNumeric("admin_level", adminLevel)
		b.setNameAttributes(0)
		// natural=coastline lets the style hide coastal boundaries.
		b.Attribute("natural", b.Find("natural"))
		if maritime {
			b.Attribute("maritime", "yes")
		}
		if disputed {
			b.Attribute("disputed", "yes")
		}
		return
	}

	// Relation: the members carry the geometry, the relation the name.
	name := b.Find("name")
	nameEn := b.Find("name:en")
	if nameEn == name {
		nameEn = ""
	}
	iso := b.Find("ISO3166-2")
	if len(iso) > 2 {
		iso = iso[:2]
	}
	relFeat := b.feat
	for _, m := range relFeat.Members() {
		if m.Kind() != WayFeature || !b.tileBox.Intersects(m.Bounds()) {
			continue
		}
		b.setFeature(m)
		b.Layer("boundary", false)
		b.AttributeNumeric("admin_level", adminLevel)
		b.Attribute("name", name)
		b.Attribute("name_en", nameEn)
		b.Attribute("iso_a2", iso)
		b.Attribute("natural", b.Find("natural"))
		if maritime || b.Find("maritime") == "yes" {
			b.Attribute("maritime", "yes")
		}
		if disputed || b.Find("boundary") == "disputed" || b.Find("disputed") == "yes" {
			b.Attribute("disputed", "yes")
		}
	}
	b.setFeature(relFeat)
}

func b2i(v bool) int {
	if v {
		return 1
	}
	return 0
}
