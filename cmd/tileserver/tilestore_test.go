// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestTileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiles.mbtiles")
	writer, err := newStoreWriter(path, filepath.Join(dir, "search.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer writer.Close()
	reader, err := openTileReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	id := MakeTileID(14, 2620, 6331)
	if blob, err := reader.GetTile(id); err != nil || blob != nil {
		t.Fatalf("missing tile: got %v, %v; want nil, nil", blob, err)
	}

	if err := writer.PutTile(id, []byte("v1")); err != nil {
		t.Fatal(err)
	}
	blob, err := reader.GetTile(id)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(blob, []byte("v1")) {
		t.Errorf("got %q, want v1", blob)
	}

	// Rebuilding replaces the stored blob.
	if err := writer.PutTile(id, []byte("v2")); err != nil {
		t.Fatal(err)
	}
	blob, err = reader.GetTile(id)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(blob, []byte("v2")) {
		t.Errorf("got %q, want v2", blob)
	}
}

func TestTileStoreRowNumbering(t *testing.T) {
	// Tiles are stored with TMS row numbers, like mbtiles.
	dir := t.TempDir()
	path := filepath.Join(dir, "tiles.mbtiles")
	writer, err := newStoreWriter(path, filepath.Join(dir, "search.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer writer.Close()

	id := MakeTileID(3, 1, 2)
	if err := writer.PutTile(id, []byte("x")); err != nil {
		t.Fatal(err)
	}
	var row int32
	err = writer.tileDB.QueryRow(
		`SELECT tile_row FROM tiles WHERE zoom_level = 3 AND tile_column = 1`).Scan(&row)
	if err != nil {
		t.Fatal(err)
	}
	if row != 5 {
		t.Errorf("tile_row = %d, want 5", row)
	}
}

func TestStoreWriterPutAfterClose(t *testing.T) {
	dir := t.TempDir()
	writer, err := newStoreWriter(filepath.Join(dir, "tiles.mbtiles"),
		filepath.Join(dir, "search.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	// A build whose requester timed out can finish after shutdown; its
	// write must fail cleanly, not panic on the closed task channel.
	if err := writer.PutTile(MakeTileID(10, 1, 2), []byte("late")); err == nil {
		t.Error("PutTile after Close = nil, want error")
	}
	if err := writer.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestStoreWriterSerializes(t *testing.T) {
	dir := t.TempDir()
	writer, err := newStoreWriter(filepath.Join(dir, "tiles.mbtiles"),
		filepath.Join(dir, "search.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer writer.Close()

	done := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		go func(i int) {
			id := MakeTileID(10, int32(i), 0)
			done <- writer.PutTile(id, []byte{byte(i)}) == nil
		}(i)
	}
	for i := 0; i < 16; i++ {
		if !<-done {
			t.Error("concurrent PutTile failed")
		}
	}
	var n int
	if err := writer.tileDB.QueryRow(`SELECT count(*) FROM tiles`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 16 {
		t.Errorf("got %d rows, want 16", n)
	}
}
