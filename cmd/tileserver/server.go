// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Tile server. Cached tiles come straight out of SQLite; misses are
// built on the worker pool, with concurrent requests for the same tile
// sharing one build through singleflight. The build function persists
// the tile before returning, so by the time the in-flight entry is
// forgotten the row is durable and later requests hit the cache.

const buildTimeout = 30 * time.Second

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tileserv_requests_total",
		Help: "Tile requests by status code.",
	}, []string{"code"})
	metricTilesBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tileserv_tiles_built_total",
		Help: "Tiles built on demand.",
	})
	metricBytesOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tileserv_bytes_out_total",
		Help: "Tile bytes sent to clients.",
	})
	metricBuildSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tileserv_build_seconds",
		Help:    "Wall time per tile build.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
)

type serverStats struct {
	reqs       atomic.Uint64
	reqsOK     atomic.Uint64
	bytesOut   atomic.Uint64
	tilesBuilt atomic.Uint64
	background atomic.Uint64
}

type tileServer struct {
	world    FeatureStore
	ocean    FeatureStore
	reader   *tileReader
	writer   *storeWriter
	search   *searchServer
	maxZoom  int
	adminKey string
	started  time.Time
	stats    serverStats
	builds   singleflight.Group
	// Bounds the number of concurrent tile builds.
	buildSem chan struct{}
	stopping atomic.Bool
}

func newTileServer(world, ocean FeatureStore, reader *tileReader, writer *storeWriter, maxZoom, threads int, adminKey string) *tileServer {
	return &tileServer{
		world:    world,
		ocean:    ocean,
		reader:   reader,
		writer:   writer,
		maxZoom:  maxZoom,
		adminKey: adminKey,
		started:  time.Now(),
		buildSem: make(chan struct{}, threads),
	}
}

func (s *tileServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/", s.handleTile)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())
	if s.search != nil {
		mux.HandleFunc("/search", s.search.handleSearch)
	}
	return mux
}

// buildAndStore runs one tile build on the worker pool and persists the
// result. Called through singleflight, so each tile builds once no
// matter how many requests wait on it.
func (s *tileServer) buildAndStore(id TileID) ([]byte, error) {
	s.buildSem <- struct{}{}
	defer func() { <-s.buildSem }()
	start := time.Now()
	mvt := buildTile(id, s.world, s.ocean, true)
	metricBuildSeconds.Observe(time.Since(start).Seconds())
	s.stats.tilesBuilt.Add(1)
	metricTilesBuilt.Inc()
	if len(mvt) == 0 {
		return nil, nil
	}
	if err := s.writer.PutTile(id, mvt); err != nil {
		return nil, err
	}
	return mvt, nil
}

func (s *tileServer) handleTile(w http.ResponseWriter, r *http.Request) {
	s.stats.reqs.Add(1)
	if r.Header.Get("X-Tile-Priority") == "background" {
		s.stats.background.Add(1)
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v1/"), "/")
	if len(parts) != 3 {
		s.fail(w, http.StatusBadRequest)
		return
	}
	z, errZ := strconv.Atoi(parts[0])
	x, errX := strconv.Atoi(parts[1])
	y, errY := strconv.Atoi(strings.TrimSuffix(parts[2], ".pbf"))
	if errZ != nil || errX != nil || errY != nil {
		s.fail(w, http.StatusBadRequest)
		return
	}
	id := MakeTileID(int32(z), int32(x), int32(y))
	if !id.Valid() {
		s.fail(w, http.StatusBadRequest)
		return
	}
	if z > s.maxZoom {
		s.fail(w, http.StatusNotFound)
		return
	}

	rebuild := s.adminKey != "" && r.Header.Get("X-Rebuild-Tile") != "" &&
		r.Header.Get("X-Admin-Key") == s.adminKey
	var blob []byte
	if !rebuild {
		var err error
		blob, err = s.reader.GetTile(id)
		if err != nil {
			log.Printf("reading tile %s: %v", id, err)
			s.fail(w, http.StatusInternalServerError)
			return
		}
	}

	if blob == nil {
		if s.stopping.Load() {
			s.fail(w, http.StatusServiceUnavailable)
			return
		}
		ch := s.builds.DoChan(id.String(), func() (interface{}, error) {
			defer s.builds.Forget(id.String())
			return s.buildAndStore(id)
		})
		select {
		case res := <-ch:
			if res.Err != nil {
				s.fail(w, http.StatusInternalServerError)
				return
			}
			blob = res.Val.([]byte)
		case <-time.After(buildTimeout):
			s.fail(w, http.StatusRequestTimeout)
			return
		}
		if blob == nil {
			s.fail(w, http.StatusNotFound)
			return
		}
	}

	s.stats.reqsOK.Add(1)
	s.stats.bytesOut.Add(uint64(len(blob)))
	metricRequests.WithLabelValues("200").Inc()
	metricBytesOut.Add(float64(len(blob)))
	w.Header().Set("Content-Type", "application/vnd.mapbox-vector-tile")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	// Tiles are stored gzipped; clients keeping a compressed cache set
	// X-Hide-Encoding so their network stack does not unzip them.
	if r.Header.Get("X-Hide-Encoding") == "" {
		w.Header().Set("Content-Encoding", "gzip")
	}
	w.Write(blob)
}

func (s *tileServer) fail(w http.ResponseWriter, code int) {
	metricRequests.WithLabelValues(strconv.Itoa(code)).Inc()
	http.Error(w, http.StatusText(code), code)
}

func (s *tileServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "Uptime: %.0f s\n", time.Since(s.started).Seconds())
	fmt.Fprintf(w, "Reqs: %d\n", s.stats.reqs.Load())
	fmt.Fprintf(w, "200 Reqs: %d\n", s.stats.reqsOK.Load())
	fmt.Fprintf(w, "Background reqs: %d\n", s.stats.background.Load())
	fmt.Fprintf(w, "Bytes out: %d\n", s.stats.bytesOut.Load())
	fmt.Fprintf(w, "Tiles built: %d\n", s.stats.tilesBuilt.Load())
}

// buildPyramid builds the quadtree rooted at top down to maxZoom,
// level by level, and persists every non-empty tile. A fixed worker
// pool drains each level's queue, so the pending frontier lives in one
// slice instead of a goroutine per tile.
func buildPyramid(ctx context.Context, top TileID, maxZoom int, world, ocean FeatureStore, writer *storeWriter, threads int) (int, error) {
	start := time.Now()
	built := 0
	pending := []TileID{top}
	for len(pending) > 0 {
		var mu sync.Mutex
		var next []TileID
		jobs := make(chan TileID)
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < threads; i++ {
			g.Go(func() error {
				for id := range jobs {
					log.Printf("building %s", id)
					mvt := buildTile(id, world, ocean, true)
					if len(mvt) > 0 {
						if err := writer.PutTile(id, mvt); err != nil {
							return err
						}
					}
					if int(id.Z) < maxZoom {
						mu.Lock()
						for c := 0; c < 4; c++ {
							next = append(next, id.Child(c, int8(maxZoom)))
						}
						mu.Unlock()
					}
				}
				return nil
			})
		}
	feed:
		for _, id := range pending {
			select {
			case jobs <- id:
				built++
			case <-gctx.Done():
				break feed
			}
		}
		close(jobs)
		if err := g.Wait(); err != nil {
			return built, err
		}
		if err := ctx.Err(); err != nil {
			return built, err
		}
		pending = next
	}
	log.Printf("built %d tiles in %.0fs", built, time.Since(start).Seconds())
	return built, nil
}
