// SPDX-License-Identifier: MIT

package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
)

// Tile persistence. All mutations of the tile store and the search
// store funnel through one writer goroutine, so SQLite never sees
// concurrent writers; HTTP handlers read through their own pooled
// read-only connections.

const tileSchema = `
CREATE TABLE IF NOT EXISTS tiles(
  zoom_level INTEGER NOT NULL,
  tile_column INTEGER NOT NULL,
  tile_row INTEGER NOT NULL,
  tile_data BLOB,
  created_at INTEGER NOT NULL DEFAULT (strftime('%s','now')));
CREATE UNIQUE INDEX IF NOT EXISTS tile_index ON tiles (zoom_level, tile_column, tile_row);
`

const putTileSQL = `
INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?,?,?,?)
  ON CONFLICT (zoom_level, tile_column, tile_row)
  DO UPDATE SET tile_data = excluded.tile_data, created_at = strftime('%s','now')`

const getTileSQL = `
SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?`

// tileReader serves cached tiles; database/sql pools one connection per
// concurrent handler.
type tileReader struct {
	db *sql.DB
}

func openTileReader(path string) (*tileReader, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	return &tileReader{db: db}, nil
}

// GetTile returns the stored blob for a tile, nil when absent.
func (r *tileReader) GetTile(id TileID) ([]byte, error) {
	var blob []byte
	err := r.db.QueryRow(getTileSQL, id.Z, id.X, id.YTMS()).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return blob, nil
}

func (r *tileReader) Close() error { return r.db.Close() }

type writerTask struct {
	fn   func(w *storeWriter) error
	done chan error
}

var errStoreClosed = errors.New("tile store is closed")

type storeWriter struct {
	tileDB  *sql.DB
	ftsDB   *sql.DB
	ftsPath string
	tasks   chan writerTask
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func newStoreWriter(tilePath, ftsPath string) (*storeWriter, error) {
	db, err := sql.Open("sqlite3", "file:"+tilePath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(tileSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tile schema in %s: %w", tilePath, err)
	}
	w := &storeWriter{tileDB: db, ftsPath: ftsPath, tasks: make(chan writerTask, 64)}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *storeWriter) run() {
	defer w.wg.Done()
	for task := range w.tasks {
		task.done <- task.fn(w)
	}
}

// exec runs fn on the writer goroutine and waits for it. A build can
// outlive its requester and land here after shutdown, so submission
// checks for a closed store instead of sending on a closed channel.
func (w *storeWriter) exec(fn func(w *storeWriter) error) error {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return errStoreClosed
	}
	done := make(chan error, 1)
	w.tasks <- writerTask{fn: fn, done: done}
	w.mu.RUnlock()
	return <-done
}

// PutTile upserts a tile blob. The call returns after the row is
// written, so a caller holding an in-flight build entry keeps it until
// the tile is durable.
func (w *storeWriter) PutTile(id TileID, blob []byte) error {
	err := w.exec(func(w *storeWriter) error {
		_, err := w.tileDB.Exec(putTileSQL, id.Z, id.X, id.YTMS(), blob)
		return err
	})
	if err != nil {
		log.Printf("storing tile %s: %v", id, err)
	}
	return err
}

// WithFTS runs fn against the search store on the writer goroutine,
// opening the store on first use.
func (w *storeWriter) WithFTS(fn func(db *sql.DB) error) error {
	return w.exec(func(w *storeWriter) error {
		if w.ftsDB == nil {
			db, err := sql.Open("sqlite3", "file:"+w.ftsPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
			if err != nil {
				return err
			}
			w.ftsDB = db
		}
		return fn(w.ftsDB)
	})
}

// Close drains pending writes and shuts the databases. Further writes
// fail with errStoreClosed.
func (w *storeWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.tasks)
	w.mu.Unlock()
	w.wg.Wait()
	if w.ftsDB != nil {
		w.ftsDB.Close()
	}
	return w.tileDB.Close()
}
