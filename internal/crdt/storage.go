package crdt

import "context"

// Storage provides durable persistence for CRDT document state (spec §4.4).
// Implementations live in internal/storage (SQLite, in-memory); this
// interface is declared here, next to CrdtUpdate/UpdateOrigin, because the
// original keeps the storage trait inside its crdt module rather than a
// sibling one.
//
// Grounded on
// _examples/original_source/crates/diaryx_core/src/crdt/memory_storage.rs,
// reconstructing the CrdtStorage trait signature from its implementation
// (storage.rs itself was not present in the filtered original_source tree).
type Storage interface {
	LoadDoc(ctx context.Context, name string) ([]byte, error)
	SaveDoc(ctx context.Context, name string, state []byte) error
	DeleteDoc(ctx context.Context, name string) error
	ListDocs(ctx context.Context) ([]string, error)

	AppendUpdate(ctx context.Context, name string, data []byte, origin UpdateOrigin, deviceID, deviceName *string) (int64, error)
	GetUpdatesSince(ctx context.Context, name string, sinceID int64) ([]CrdtUpdate, error)
	GetAllUpdates(ctx context.Context, name string) ([]CrdtUpdate, error)
	GetStateAt(ctx context.Context, name string, updateID int64) ([]byte, error)
	GetLatestUpdateID(ctx context.Context, name string) (int64, error)

	Compact(ctx context.Context, name string, keepUpdates int) error
	RenameDoc(ctx context.Context, oldName, newName string) error
}
