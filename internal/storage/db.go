// Package storage provides durable persistence for CRDT document state
// (spec §4.4): a SQLite-backed implementation of crdt.Storage for the
// desktop/server runtime, and an in-memory one for tests and the relay's
// ephemeral rooms.
//
// Grounded on internal/db/db.go's functional-options SqliteOption pattern
// and the dual cgo/pure-Go driver split in internal/db/db_sqlite3_cgo.go /
// db_sqlite3_default.go.
package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
)

const defaultPragma = `
PRAGMA journal_mode=WAL;
PRAGMA busy_timeout=5000;
PRAGMA foreign_keys=ON;
PRAGMA temp_store=MEMORY;
PRAGMA cache_size=8000;
`

type config struct {
	path            string
	pragmas         string
	schema          string
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
}

// SqliteOption configures NewSqliteDB.
type SqliteOption func(*config)

// WithPath sets the database file path. Use ":memory:" for an in-process
// database.
func WithPath(path string) SqliteOption {
	return func(c *config) { c.path = path }
}

// WithPragmas replaces the default pragma string.
func WithPragmas(pragmas string) SqliteOption {
	return func(c *config) { c.pragmas = pragmas }
}

// WithMaxOpenConns sets the connection pool's maximum open connections.
func WithMaxOpenConns(n int) SqliteOption {
	return func(c *config) { c.maxOpenConns = n }
}

// WithConnMaxLifetime bounds how long a pooled connection may be reused.
func WithConnMaxLifetime(d time.Duration) SqliteOption {
	return func(c *config) { c.connMaxLifetime = d }
}

// WithSchema replaces the schema applied on open. Defaults to the CRDT
// storage schema; callers persisting a different shape of state through
// this same driver/pragma plumbing (internal/cloudsync's manifest store)
// supply their own.
func WithSchema(schema string) SqliteOption {
	return func(c *config) { c.schema = schema }
}

// NewSqliteDB opens (creating if needed) a SQLite database and applies the
// configured schema (the CRDT storage schema, spec §6, unless overridden
// with WithSchema).
func NewSqliteDB(opts ...SqliteOption) (*sqlx.DB, error) {
	cfg := &config{path: ":memory:", pragmas: defaultPragma, schema: schema, maxIdleConns: 2}
	for _, opt := range opts {
		opt(cfg)
	}

	var dsn string
	if cfg.path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.path), 0o755); err != nil {
			return nil, fmt.Errorf("storage: ensure parent dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_txlock=immediate&mode=rwc", cfg.path)
	} else {
		dsn = ":memory:"
	}

	slog.Info("storage: opening sqlite db", "driver", driverID, "path", cfg.path)
	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: connect: %w", err)
	}

	if cfg.maxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.maxOpenConns)
	}
	if cfg.maxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.maxIdleConns)
	}
	if cfg.connMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.connMaxLifetime)
	}

	if _, err := db.Exec(cfg.pragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: set pragmas: %w", err)
	}
	if _, err := db.Exec(cfg.schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: init schema: %w", err)
	}

	return db, nil
}

// schema is the CRDT storage schema (spec §6): document snapshots and an
// append-only update log, indexed for get_updates_since's range scan.
const schema = `
CREATE TABLE IF NOT EXISTS docs (
	name TEXT PRIMARY KEY,
	state BLOB,
	state_vector BLOB
);

CREATE TABLE IF NOT EXISTS updates (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	data BLOB NOT NULL,
	timestamp INTEGER NOT NULL,
	origin TEXT NOT NULL,
	device_id TEXT,
	device_name TEXT
);

CREATE INDEX IF NOT EXISTS idx_updates_name_id ON updates(name, id);
`
