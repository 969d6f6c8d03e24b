// SPDX-License-Identifier: MIT

// Serves vector map tiles from a feature database, building missing
// tiles on demand, and answers full-text search queries over named
// features.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
)

func main() {
	portFlag := flag.Int("port", 8080, "TCP port to listen on")
	threadsFlag := flag.Int("threads", 0, "number of tile builder workers; default is CPU cores - 1")
	dbFlag := flag.String("db", "planet.mbtiles", "sqlite file storing generated tiles")
	ftsFlag := flag.String("ftsdb", "search.sqlite", "sqlite file storing the search index")
	adminKeyFlag := flag.String("admin-key", "", "key enabling the X-Rebuild-Tile header")
	logFlag := flag.String("log", "", "log to this file instead of stderr")
	buildFlag := flag.String("build", "", "build tile z/x/y and all children to maxz, then exit")
	maxZoomFlag := flag.Int("maxz", 14, "maximum tile zoom level")
	buildFTSFlag := flag.Bool("buildfts", false, "build the search index, then exit")
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.LUTC | log.Lshortfile)

	if *logFlag != "" {
		f, err := os.OpenFile(*logFlag, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatalf("opening log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	if flag.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <world feature db> <ocean feature db>\n",
			os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	threads := *threadsFlag
	if threads <= 0 {
		threads = max(2, runtime.NumCPU()) - 1
	}

	world, err := openFeatureDB(flag.Arg(0))
	if err != nil {
		log.Fatalf("opening world features %s: %v", flag.Arg(0), err)
	}
	defer world.Close()
	ocean, err := openFeatureDB(flag.Arg(1))
	if err != nil {
		log.Fatalf("opening ocean features %s: %v", flag.Arg(1), err)
	}
	defer ocean.Close()
	log.Printf("loaded %s and %s", flag.Arg(0), flag.Arg(1))

	writer, err := newStoreWriter(*dbFlag, *ftsFlag)
	if err != nil {
		log.Fatalf("opening tile store %s: %v", *dbFlag, err)
	}
	defer writer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *buildFTSFlag {
		if err := buildSearchIndex(ctx, world, writer, MakeTileID(0, 0, 0), threads); err != nil {
			log.Fatalf("building search index: %v", err)
		}
		return
	}

	if *buildFlag != "" {
		top := ParseTileID(*buildFlag)
		if !top.Valid() {
			log.Fatalf("tile id %q is invalid (expected WMTS z/x/y)", *buildFlag)
		}
		if _, err := buildPyramid(ctx, top, *maxZoomFlag, world, ocean, writer, threads); err != nil {
			log.Fatalf("building tiles: %v", err)
		}
		return
	}

	reader, err := openTileReader(*dbFlag)
	if err != nil {
		log.Fatalf("opening tile store %s: %v", *dbFlag, err)
	}
	defer reader.Close()

	server := newTileServer(world, ocean, reader, writer, *maxZoomFlag, threads, *adminKeyFlag)
	server.search = newSearchServer(*ftsFlag)
	defer server.search.Close()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", *portFlag),
		Handler: server.Handler(),
	}
	go func() {
		<-ctx.Done()
		log.Printf("SIGINT: requesting shutdown (again to force exit)")
		server.stopping.Store(true)
		httpServer.Shutdown(context.Background())
		stop()
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		os.Exit(1)
	}()

	log.Printf("server listening on port %d with %d tile workers", *portFlag, threads)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server: %v", err)
	}
	log.Printf("exiting")
}
