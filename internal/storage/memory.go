package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/diaryxhq/diaryx/internal/crdt"
)

type storedUpdate struct {
	id         int64
	data       []byte
	timestamp  int64
	origin     crdt.UpdateOrigin
	deviceID   *string
	deviceName *string
}

// MemoryStorage is an in-process crdt.Storage, used by tests and the relay's
// ephemeral rooms when a workspace has no durable backing.
//
// Grounded directly on
// _examples/original_source/crates/diaryx_core/src/crdt/memory_storage.rs:
// two maps (snapshots, append-only update logs) guarded by a mutex and a
// monotonic id counter. get_state_at carries over the same documented
// limitation (returns the latest snapshot rather than replaying history).
type MemoryStorage struct {
	mu      sync.RWMutex
	docs    map[string][]byte
	updates map[string][]storedUpdate
	nextID  int64
}

// NewMemoryStorage returns an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{docs: make(map[string][]byte), updates: make(map[string][]storedUpdate)}
}

func (s *MemoryStorage) LoadDoc(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.docs[name]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(state))
	copy(cp, state)
	return cp, nil
}

func (s *MemoryStorage) SaveDoc(_ context.Context, name string, state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(state))
	copy(cp, state)
	s.docs[name] = cp
	return nil
}

func (s *MemoryStorage) DeleteDoc(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, name)
	delete(s.updates, name)
	return nil
}

func (s *MemoryStorage) ListDocs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.docs))
	for name := range s.docs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStorage) AppendUpdate(_ context.Context, name string, data []byte, origin crdt.UpdateOrigin, deviceID, deviceName *string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := make([]byte, len(data))
	copy(cp, data)
	s.updates[name] = append(s.updates[name], storedUpdate{
		id: s.nextID, data: cp, timestamp: time.Now().UnixMilli(),
		origin: origin, deviceID: deviceID, deviceName: deviceName,
	})
	return s.nextID, nil
}

func (s *MemoryStorage) GetUpdatesSince(_ context.Context, name string, sinceID int64) ([]crdt.CrdtUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crdt.CrdtUpdate
	for _, u := range s.updates[name] {
		if u.id > sinceID {
			out = append(out, crdt.CrdtUpdate{
				UpdateID: u.id, DocName: name, Data: u.data, Timestamp: u.timestamp,
				Origin: u.origin, DeviceID: u.deviceID, DeviceName: u.deviceName,
			})
		}
	}
	return out, nil
}

func (s *MemoryStorage) GetAllUpdates(ctx context.Context, name string) ([]crdt.CrdtUpdate, error) {
	return s.GetUpdatesSince(ctx, name, 0)
}

// GetStateAt mirrors memory_storage.rs's documented shortcut: without a
// real CRDT library to replay updates through, this returns the latest
// snapshot when asked for it at or past the last known update, and falls
// back to the latest snapshot otherwise.
func (s *MemoryStorage) GetStateAt(ctx context.Context, name string, updateID int64) ([]byte, error) {
	s.mu.RLock()
	updates := s.updates[name]
	s.mu.RUnlock()
	if len(updates) > 0 && updateID >= updates[len(updates)-1].id {
		return s.LoadDoc(ctx, name)
	}
	return s.LoadDoc(ctx, name)
}

func (s *MemoryStorage) GetLatestUpdateID(_ context.Context, name string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	updates := s.updates[name]
	if len(updates) == 0 {
		return 0, nil
	}
	return updates[len(updates)-1].id, nil
}

func (s *MemoryStorage) Compact(_ context.Context, name string, keepUpdates int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	updates := s.updates[name]
	if len(updates) > keepUpdates {
		s.updates[name] = append([]storedUpdate(nil), updates[len(updates)-keepUpdates:]...)
	}
	return nil
}

func (s *MemoryStorage) RenameDoc(_ context.Context, oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.docs[oldName]; ok {
		s.docs[newName] = state
		delete(s.docs, oldName)
	}
	if updates, ok := s.updates[oldName]; ok {
		s.updates[newName] = updates
		delete(s.updates, oldName)
	}
	return nil
}

var _ crdt.Storage = (*MemoryStorage)(nil)
