package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/diaryxhq/diaryx/internal/crdt"
	"github.com/diaryxhq/diaryx/internal/direrr"
	"github.com/jmoiron/sqlx"
)

// SqliteStorage implements crdt.Storage against the schema in db.go.
//
// Grounded on internal/client/sync3/sync_journal.go's
// schema-on-open/INSERT-OR-REPLACE idiom, generalized from a single
// sync_journal table to the docs/updates pair spec §6 names.
type SqliteStorage struct {
	db *sqlx.DB
}

// NewSqliteStorage wraps an already-opened, schema-initialized database.
func NewSqliteStorage(db *sqlx.DB) *SqliteStorage {
	return &SqliteStorage{db: db}
}

func (s *SqliteStorage) LoadDoc(ctx context.Context, name string) ([]byte, error) {
	var state []byte
	err := s.db.GetContext(ctx, &state, `SELECT state FROM docs WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, direrr.New(direrr.KindStorage, name, err)
	}
	return state, nil
}

func (s *SqliteStorage) SaveDoc(ctx context.Context, name string, state []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO docs (name, state) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET state = excluded.state`,
		name, state,
	)
	if err != nil {
		return direrr.New(direrr.KindStorage, name, err)
	}
	return nil
}

func (s *SqliteStorage) DeleteDoc(ctx context.Context, name string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return direrr.New(direrr.KindStorage, name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM docs WHERE name = ?`, name); err != nil {
		return direrr.New(direrr.KindStorage, name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM updates WHERE name = ?`, name); err != nil {
		return direrr.New(direrr.KindStorage, name, err)
	}
	if err := tx.Commit(); err != nil {
		return direrr.New(direrr.KindStorage, name, err)
	}
	return nil
}

func (s *SqliteStorage) ListDocs(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.SelectContext(ctx, &names, `SELECT name FROM docs ORDER BY name`); err != nil {
		return nil, direrr.New(direrr.KindStorage, "", err)
	}
	return names, nil
}

func (s *SqliteStorage) AppendUpdate(ctx context.Context, name string, data []byte, origin crdt.UpdateOrigin, deviceID, deviceName *string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO updates (name, data, timestamp, origin, device_id, device_name) VALUES (?, ?, ?, ?, ?, ?)`,
		name, data, time.Now().UnixMilli(), origin.String(), deviceID, deviceName,
	)
	if err != nil {
		return 0, direrr.New(direrr.KindStorage, name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, direrr.New(direrr.KindStorage, name, err)
	}
	return id, nil
}

type updateRow struct {
	ID         int64   `db:"id"`
	Name       string  `db:"name"`
	Data       []byte  `db:"data"`
	Timestamp  int64   `db:"timestamp"`
	Origin     string  `db:"origin"`
	DeviceID   *string `db:"device_id"`
	DeviceName *string `db:"device_name"`
}

func (r updateRow) toCrdtUpdate() crdt.CrdtUpdate {
	origin := crdt.OriginLocal
	switch r.Origin {
	case "remote":
		origin = crdt.OriginRemote
	case "sync":
		origin = crdt.OriginSync
	}
	return crdt.CrdtUpdate{
		UpdateID: r.ID, DocName: r.Name, Data: r.Data, Timestamp: r.Timestamp,
		Origin: origin, DeviceID: r.DeviceID, DeviceName: r.DeviceName,
	}
}

func (s *SqliteStorage) GetUpdatesSince(ctx context.Context, name string, sinceID int64) ([]crdt.CrdtUpdate, error) {
	var rows []updateRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, name, data, timestamp, origin, device_id, device_name FROM updates WHERE name = ? AND id > ? ORDER BY id`,
		name, sinceID,
	)
	if err != nil {
		return nil, direrr.New(direrr.KindStorage, name, err)
	}
	out := make([]crdt.CrdtUpdate, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCrdtUpdate())
	}
	return out, nil
}

func (s *SqliteStorage) GetAllUpdates(ctx context.Context, name string) ([]crdt.CrdtUpdate, error) {
	return s.GetUpdatesSince(ctx, name, 0)
}

// GetStateAt returns the snapshot if it already reflects update_id or
// later; unlike a full CRDT library this storage layer cannot replay
// updates to reconstruct an arbitrary historical state, so it falls back
// to the latest snapshot, matching the original's documented limitation
// (memory_storage.rs's get_state_at does the same for the same reason).
func (s *SqliteStorage) GetStateAt(ctx context.Context, name string, updateID int64) ([]byte, error) {
	return s.LoadDoc(ctx, name)
}

func (s *SqliteStorage) GetLatestUpdateID(ctx context.Context, name string) (int64, error) {
	var id sql.NullInt64
	err := s.db.GetContext(ctx, &id, `SELECT MAX(id) FROM updates WHERE name = ?`, name)
	if err != nil {
		return 0, direrr.New(direrr.KindStorage, name, err)
	}
	if !id.Valid {
		return 0, nil
	}
	return id.Int64, nil
}

func (s *SqliteStorage) Compact(ctx context.Context, name string, keepUpdates int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM updates WHERE name = ? AND id NOT IN (
			SELECT id FROM updates WHERE name = ? ORDER BY id DESC LIMIT ?
		)`,
		name, name, keepUpdates,
	)
	if err != nil {
		return direrr.New(direrr.KindStorage, name, err)
	}
	return nil
}

func (s *SqliteStorage) RenameDoc(ctx context.Context, oldName, newName string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return direrr.New(direrr.KindStorage, oldName, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE docs SET name = ? WHERE name = ?`, newName, oldName); err != nil {
		return direrr.New(direrr.KindStorage, oldName, fmt.Errorf("rename doc: %w", err))
	}
	if _, err := tx.ExecContext(ctx, `UPDATE updates SET name = ? WHERE name = ?`, newName, oldName); err != nil {
		return direrr.New(direrr.KindStorage, oldName, fmt.Errorf("rename updates: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return direrr.New(direrr.KindStorage, oldName, err)
	}
	return nil
}

var _ crdt.Storage = (*SqliteStorage)(nil)
