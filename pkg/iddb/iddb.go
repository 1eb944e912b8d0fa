// Package iddb implements the persistent, multi-process-safe id database:
// the mapping from (content+parameter) fingerprint to assigned image id,
// and the per-terminal upload-status state machine layered on top of it.
//
// The store is a single SQLite file opened in WAL mode with a busy timeout,
// so multiple coordinator processes sharing a terminal can assign and query
// ids concurrently without external locking.
package iddb

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Sentinel errors returned by DB methods; callers match with errors.Is.
var (
	ErrNotFound        = errors.New("iddb: no matching row")
	ErrIDInUse         = errors.New("iddb: id is already assigned to different content")
	ErrInvalidArgument = errors.New("iddb: invalid argument")
)

// DB is a handle to the id database for one id_database_dir.
type DB struct {
	sqlDB  *sql.DB
	path   string
	logger *slog.Logger
}

// Config tunes busy-retry and logging behavior; everything else about the
// schema is fixed.
type Config struct {
	// BusyTimeout bounds how long a writer waits on SQLITE_BUSY before
	// giving up. Zero uses a 5-second default.
	BusyTimeout time.Duration
	Logger      *slog.Logger
}

// Open opens (creating if necessary) the id database file at path and
// ensures its schema exists.
func Open(path string, cfg Config) (*DB, error) {
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)",
		path, cfg.BusyTimeout.Milliseconds())
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("iddb: open %s: %w", path, err)
	}
	// Cap the pool at 8 connections; concurrent writers among them wait on
	// SQLite's own lock (up to busy_timeout) while reads proceed from the
	// WAL.
	sqlDB.SetMaxOpenConns(8)

	db := &DB{sqlDB: sqlDB, path: path, logger: cfg.Logger}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the underlying SQLite connection pool.
func (db *DB) Close() error {
	return db.sqlDB.Close()
}

func (db *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS instances (
			fingerprint     TEXT PRIMARY KEY,
			id              INTEGER NOT NULL,
			id_space        TEXT NOT NULL,
			path            TEXT NOT NULL,
			mtime_ns        INTEGER NOT NULL,
			byte_size       INTEGER NOT NULL,
			cols            INTEGER NOT NULL,
			rows            INTEGER NOT NULL,
			format          TEXT NOT NULL,
			quality         INTEGER NOT NULL,
			chosen_quality  INTEGER,
			content_mode    TEXT NOT NULL,
			created_at_ns   INTEGER NOT NULL,
			accessed_at_ns  INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_instances_space_id ON instances(id_space, id)`,
		`CREATE INDEX IF NOT EXISTS idx_instances_accessed ON instances(accessed_at_ns)`,
		`CREATE TABLE IF NOT EXISTS upload_status (
			terminal_id         TEXT NOT NULL,
			id_space            TEXT NOT NULL,
			id                  INTEGER NOT NULL,
			state               TEXT NOT NULL,
			transport           TEXT,
			started_at_ns       INTEGER,
			last_progress_at_ns INTEGER,
			bytes_sent          INTEGER,
			total_bytes         INTEGER,
			uploaded_at_ns      INTEGER,
			uploaded_fingerprint TEXT,
			dirty_reason        TEXT,
			PRIMARY KEY (terminal_id, id_space, id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.sqlDB.Exec(stmt); err != nil {
			return fmt.Errorf("iddb: migrate: %w", err)
		}
	}
	return nil
}
