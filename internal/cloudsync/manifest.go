package cloudsync

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/diaryxhq/diaryx/internal/storage"
)

// FileSyncState is one file's last-known-synced state, ported from
// _examples/original_source/crates/diaryx_core/src/cloud/manifest.rs's
// FileSyncState.
type FileSyncState struct {
	Path             string
	LocalHash        string
	RemoteVersion    string
	LocalModifiedMs  int64
	RemoteModifiedMs int64
	SyncedAtMs       int64
	LocallyDeleted   bool // deleted in the workspace, pending a remote Delete
}

// SyncManifest is the durable record of what this workspace last
// synchronized with one CloudProvider (manifest.rs's SyncManifest).
type SyncManifest struct {
	Version    int
	ProviderID string
	Cursor     string // opaque incremental-changes cursor, provider-defined
	LastSyncMs int64
	Files      map[string]FileSyncState
}

// NewSyncManifest returns an empty manifest for providerID.
func NewSyncManifest(providerID string) *SyncManifest {
	return &SyncManifest{
		Version:    1,
		ProviderID: providerID,
		Files:      make(map[string]FileSyncState),
	}
}

func (m *SyncManifest) GetFile(path string) (FileSyncState, bool) {
	st, ok := m.Files[path]
	return st, ok
}

func (m *SyncManifest) SetFile(st FileSyncState) {
	m.Files[st.Path] = st
}

func (m *SyncManifest) RemoveFile(path string) {
	delete(m.Files, path)
}

// MarkSynced records path as successfully synced at nowMs with the given
// local content hash and remote version/etag.
func (m *SyncManifest) MarkSynced(path, localHash, remoteVersion string, modifiedAtMs, nowMs int64) {
	m.Files[path] = FileSyncState{
		Path:             path,
		LocalHash:        localHash,
		RemoteVersion:    remoteVersion,
		LocalModifiedMs:  modifiedAtMs,
		RemoteModifiedMs: modifiedAtMs,
		SyncedAtMs:       nowMs,
	}
}

// NeedsUpload reports whether path's recorded local hash differs from
// currentHash (or path is unrecorded, i.e. newly created).
func (m *SyncManifest) NeedsUpload(path, currentHash string) bool {
	st, ok := m.Files[path]
	if !ok {
		return true
	}
	return st.LocalHash != currentHash
}

// GetLocallyDeleted returns the paths flagged LocallyDeleted, for the
// Sync algorithm's delete-remote pass.
func (m *SyncManifest) GetLocallyDeleted() []string {
	var paths []string
	for path, st := range m.Files {
		if st.LocallyDeleted {
			paths = append(paths, path)
		}
	}
	return paths
}

// ManifestStore persists a SyncManifest across process restarts. Grounded
// on internal/client/sync3/sync_journal.go's SyncJournal (SQLite-backed,
// one row per tracked path) generalized from sync3's S3-datasite-specific
// FileMetadata to this package's FileSyncState, and reusing
// internal/storage's driver selection and connection plumbing via
// storage.WithSchema rather than NewSyncJournal's independent
// database/sql + bare mattn/go-sqlite3 import, since internal/storage
// already owns the cgo/pure-Go driver split this repo builds with.
type ManifestStore interface {
	Load(providerID string) (*SyncManifest, error)
	Save(m *SyncManifest) error
	Close() error
}

const manifestSchema = `
CREATE TABLE IF NOT EXISTS manifest_meta (
	provider_id TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	cursor TEXT NOT NULL DEFAULT '',
	last_sync_ms INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS manifest_files (
	provider_id TEXT NOT NULL,
	path TEXT NOT NULL,
	local_hash TEXT NOT NULL DEFAULT '',
	remote_version TEXT NOT NULL DEFAULT '',
	local_modified_ms INTEGER NOT NULL DEFAULT 0,
	remote_modified_ms INTEGER NOT NULL DEFAULT 0,
	synced_at_ms INTEGER NOT NULL DEFAULT 0,
	locally_deleted INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (provider_id, path)
);
`

// SQLiteManifestStore is the default ManifestStore.
type SQLiteManifestStore struct {
	mu sync.Mutex
	db *sqlx.DB
}

// OpenSQLiteManifestStore opens (creating if needed) a manifest database
// at path. Use ":memory:" for an ephemeral store (tests).
func OpenSQLiteManifestStore(path string) (*SQLiteManifestStore, error) {
	db, err := storage.NewSqliteDB(storage.WithPath(path), storage.WithSchema(manifestSchema))
	if err != nil {
		return nil, fmt.Errorf("cloudsync: open manifest store: %w", err)
	}
	return &SQLiteManifestStore{db: db}, nil
}

func (s *SQLiteManifestStore) Close() error {
	return s.db.Close()
}

type manifestMetaRow struct {
	ProviderID string `db:"provider_id"`
	Version    int    `db:"version"`
	Cursor     string `db:"cursor"`
	LastSyncMs int64  `db:"last_sync_ms"`
}

type manifestFileRow struct {
	ProviderID       string `db:"provider_id"`
	Path             string `db:"path"`
	LocalHash        string `db:"local_hash"`
	RemoteVersion    string `db:"remote_version"`
	LocalModifiedMs  int64  `db:"local_modified_ms"`
	RemoteModifiedMs int64  `db:"remote_modified_ms"`
	SyncedAtMs       int64  `db:"synced_at_ms"`
	LocallyDeleted   bool   `db:"locally_deleted"`
}

// Load returns providerID's manifest, or a fresh empty one if none has
// been saved yet.
func (s *SQLiteManifestStore) Load(providerID string) (*SyncManifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := NewSyncManifest(providerID)

	var meta manifestMetaRow
	err := s.db.Get(&meta, `SELECT provider_id, version, cursor, last_sync_ms FROM manifest_meta WHERE provider_id = ?`, providerID)
	switch {
	case err == nil:
		m.Version = meta.Version
		m.Cursor = meta.Cursor
		m.LastSyncMs = meta.LastSyncMs
	case errors.Is(err, sql.ErrNoRows):
		// no prior sync for this provider; fresh manifest stands.
	default:
		return nil, fmt.Errorf("cloudsync: load manifest meta: %w", err)
	}

	var rows []manifestFileRow
	if err := s.db.Select(&rows, `SELECT * FROM manifest_files WHERE provider_id = ?`, providerID); err != nil {
		return nil, fmt.Errorf("cloudsync: load manifest files: %w", err)
	}
	for _, r := range rows {
		m.Files[r.Path] = FileSyncState{
			Path:             r.Path,
			LocalHash:        r.LocalHash,
			RemoteVersion:    r.RemoteVersion,
			LocalModifiedMs:  r.LocalModifiedMs,
			RemoteModifiedMs: r.RemoteModifiedMs,
			SyncedAtMs:       r.SyncedAtMs,
			LocallyDeleted:   r.LocallyDeleted,
		}
	}
	return m, nil
}

// Save persists m in full, replacing any previously stored state for its
// ProviderID.
func (s *SQLiteManifestStore) Save(m *SyncManifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("cloudsync: begin manifest save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO manifest_meta (provider_id, version, cursor, last_sync_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(provider_id) DO UPDATE SET
			version = excluded.version,
			cursor = excluded.cursor,
			last_sync_ms = excluded.last_sync_ms
	`, m.ProviderID, m.Version, m.Cursor, m.LastSyncMs); err != nil {
		return fmt.Errorf("cloudsync: save manifest meta: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM manifest_files WHERE provider_id = ?`, m.ProviderID); err != nil {
		return fmt.Errorf("cloudsync: clear manifest files: %w", err)
	}
	for _, st := range m.Files {
		deleted := 0
		if st.LocallyDeleted {
			deleted = 1
		}
		if _, err := tx.Exec(`
			INSERT INTO manifest_files (
				provider_id, path, local_hash, remote_version,
				local_modified_ms, remote_modified_ms, synced_at_ms, locally_deleted
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, m.ProviderID, st.Path, st.LocalHash, st.RemoteVersion,
			st.LocalModifiedMs, st.RemoteModifiedMs, st.SyncedAtMs, deleted); err != nil {
			return fmt.Errorf("cloudsync: save manifest file %q: %w", st.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cloudsync: commit manifest save: %w", err)
	}
	return nil
}
