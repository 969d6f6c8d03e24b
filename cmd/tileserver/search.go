// SPDX-License-Identifier: MIT

package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Search endpoint. FTS5 narrows the candidate set; ranking happens in
// Go (see searchrank.go) before pagination.

const (
	searchDefaultLimit = 50
	searchMaxLimit     = 50
	searchMaxOffset    = 1000
	searchCandidates   = 1024
)

const searchNoDist = `
SELECT p.name, p.name_en, p.admin, p.tags, p.props, p.lng, p.lat
  FROM pois_fts f JOIN pois p ON p.rowid = f.rowid
 WHERE pois_fts MATCH ? LIMIT ?`

const searchBounded = `
SELECT p.name, p.name_en, p.admin, p.tags, p.props, p.lng, p.lat
  FROM pois_fts f
  JOIN pois p ON p.rowid = f.rowid
  JOIN rtree_index r ON r.id = f.rowid
 WHERE pois_fts MATCH ?
   AND r.maxLng >= ? AND r.minLng <= ? AND r.maxLat >= ? AND r.minLat <= ?
 LIMIT ?`

const countMatches = `SELECT count(*) FROM pois_fts WHERE pois_fts MATCH ?`

type searchServer struct {
	ftsPath string

	mu sync.Mutex
	db *sql.DB
}

func newSearchServer(ftsPath string) *searchServer {
	return &searchServer{ftsPath: ftsPath}
}

func (s *searchServer) database() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}
	db, err := sql.Open("sqlite3", "file:"+s.ftsPath+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	s.db = db
	return db, nil
}

type searchResult struct {
	Lng   float64         `json:"lng"`
	Lat   float64         `json:"lat"`
	Score float64         `json:"score"`
	Tags  string          `json:"tags"`
	Props json.RawMessage `json:"props"`

	dist float64
}

type searchResponse struct {
	Results []searchResult `json:"results"`
	Total   *int64         `json:"total,omitempty"`
}

func (s *searchServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := params.Get("q")
	if strings.TrimSpace(q) == "" {
		http.Error(w, "missing q parameter", http.StatusBadRequest)
		return
	}
	db, err := s.database()
	if err != nil {
		log.Printf("opening search store: %v", err)
		http.Error(w, http.StatusText(http.StatusServiceUnavailable),
			http.StatusServiceUnavailable)
		return
	}

	autocomplete := params.Get("autocomplete") == "1"
	bounded := params.Get("bounded") == "1"
	sortByDist := params.Get("sort") == "dist"
	debug := params.Get("debug") == "1"
	limit, offset := searchPaging(params, debug)

	var west, south, east, north float64
	haveBounds := false
	if b := params.Get("bounds"); b != "" {
		parts := strings.Split(b, ",")
		if len(parts) == 4 {
			var errs [4]error
			west, errs[0] = strconv.ParseFloat(parts[0], 64)
			south, errs[1] = strconv.ParseFloat(parts[1], 64)
			east, errs[2] = strconv.ParseFloat(parts[2], 64)
			north, errs[3] = strconv.ParseFloat(parts[3], 64)
			haveBounds = errs[0] == nil && errs[1] == nil && errs[2] == nil && errs[3] == nil
		}
		if !haveBounds {
			http.Error(w, "malformed bounds", http.StatusBadRequest)
			return
		}
	}
	center := orb.Point{(west + east) / 2, (south + north) / 2}
	radiusKm := 0.0
	if haveBounds {
		radiusKm = geo.Distance(center, orb.Point{east, north}) / 1000
	}

	match := rewriteQuery(q, autocomplete)
	if match == "" {
		http.Error(w, "empty query", http.StatusBadRequest)
		return
	}

	var rows *sql.Rows
	if bounded && haveBounds {
		rows, err = db.Query(searchBounded, match, west, east, south, north, searchCandidates)
	} else {
		rows, err = db.Query(searchNoDist, match, searchCandidates)
	}
	if err != nil {
		log.Printf("search %q: %v", match, err)
		http.Error(w, http.StatusText(http.StatusServiceUnavailable),
			http.StatusServiceUnavailable)
		return
	}
	defer rows.Close()

	phrases := queryPhrases(match)
	idf := s.phraseIDF(db, phrases)

	results := []searchResult{}
	haveDist := haveBounds && radiusKm > 0
	for rows.Next() {
		var name, nameEn, admin, tags, props string
		var res searchResult
		if err := rows.Scan(&name, &nameEn, &admin, &tags, &props, &res.Lng, &res.Lat); err != nil {
			log.Printf("search scan: %v", err)
			continue
		}
		score := scoreRow(phrases, idf, [4]string{name, nameEn, admin, tags})
		if haveDist {
			res.dist = geo.Distance(center, orb.Point{res.Lng, res.Lat}) / 1000
		}
		res.Score = rankRow(score, tags, res.dist, haveDist, bounded)
		res.Tags = tags
		res.Props = json.RawMessage(props)
		if !json.Valid(res.Props) {
			res.Props = json.RawMessage("{}")
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		log.Printf("search %q: %v", match, err)
	}

	if sortByDist && haveDist {
		sort.SliceStable(results, func(i, j int) bool { return results[i].dist < results[j].dist })
	} else {
		sort.SliceStable(results, func(i, j int) bool { return results[i].Score < results[j].Score })
	}
	if offset > len(results) {
		offset = len(results)
	}
	results = results[offset:]
	if len(results) > limit {
		results = results[:limit]
	}

	resp := searchResponse{Results: results}
	if debug {
		var total int64
		if err := db.QueryRow(countMatches, match).Scan(&total); err == nil {
			resp.Total = &total
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(resp)
}

// phraseIDF counts matching rows per phrase to weight rare terms above
// common ones.
func (s *searchServer) phraseIDF(db *sql.DB, phrases []phrase) []float64 {
	var total int64
	if err := db.QueryRow(`SELECT count(*) FROM pois`).Scan(&total); err != nil || total == 0 {
		total = 1
	}
	idf := make([]float64, len(phrases))
	for i, p := range phrases {
		expr := `"` + p.text + `"`
		if p.prefix {
			expr += "*"
		}
		var n int64
		if err := db.QueryRow(countMatches, expr).Scan(&n); err != nil {
			n = 0
		}
		idf[i] = idfScore(total, n)
	}
	return idf
}

// searchPaging resolves the limit and offset parameters. Debug mode
// lifts the caps to the candidate set size, so the whole result list
// can be paged through.
func searchPaging(params url.Values, debug bool) (limit, offset int) {
	maxLimit, maxOffset := searchMaxLimit, searchMaxOffset
	if debug {
		maxLimit, maxOffset = searchCandidates, searchCandidates
	}
	limit = clampParam(params.Get("limit"), searchDefaultLimit, maxLimit)
	offset = clampParam(params.Get("offset"), 0, maxOffset)
	return limit, offset
}

func clampParam(s string, def, max int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

func (s *searchServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}
