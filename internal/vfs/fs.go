// Package vfs abstracts filesystem access behind the FileSystem interface
// (spec §4.1) so that the hierarchy facade and CRDT layer can run against a
// real on-disk workspace (NativeFS) or an in-memory one (MemoryFS, used by
// tests and by the relay which never touches disk).
//
// Grounded on internal/client/workspace/workspace.go's directory/lock
// handling for the native backend's idiom, and on
// _examples/original_source/crates/diaryx_core/src/fs/mod.rs's FileSystem
// trait for the operation surface itself (the trait this package mirrors
// one-for-one, renamed to Go conventions).
package vfs

import (
	"context"
	"sync"
	"time"
)

// FileSystem is the operation surface every workspace backend implements.
// Paths are always workspace-relative and slash-separated (internal/pathutil
// normalizes them before they reach a FileSystem).
type FileSystem interface {
	ReadText(ctx context.Context, path string) (string, error)
	WriteText(ctx context.Context, path, content string) error
	CreateNew(ctx context.Context, path, content string) error
	Delete(ctx context.Context, path string) error

	ReadBinary(ctx context.Context, path string) ([]byte, error)
	WriteBinary(ctx context.Context, path string, content []byte) error

	// List returns the direct (non-recursive) entries of dir.
	List(ctx context.Context, dir string) ([]string, error)
	// ListMarkdown returns the direct .md entries of dir.
	ListMarkdown(ctx context.Context, dir string) ([]string, error)
	// ListRecursive returns every file and directory below dir, depth-first.
	ListRecursive(ctx context.Context, dir string) ([]string, error)

	Exists(ctx context.Context, path string) (bool, error)
	IsDir(ctx context.Context, path string) (bool, error)
	IsSymlink(ctx context.Context, path string) (bool, error)
	MakeDirs(ctx context.Context, path string) error
	Move(ctx context.Context, from, to string) error

	// ModifiedTimeMs returns the file's mtime in milliseconds since the Unix
	// epoch, or ok=false if it cannot be determined (e.g. path absent).
	ModifiedTimeMs(ctx context.Context, path string) (ms int64, ok bool)
}

// SyncWriteMarker lets the CRDT decorator distinguish writes it is replaying
// from a remote update against writes a local editor performs, so that a
// filesystem watcher wired above an implementation doesn't loop the replay
// back into a new local change (spec §4.2/§7).
//
// Grounded on _examples/original_source/crates/diaryx_core/src/fs/async_fs.rs's
// mark_sync_write_start/end pair; NativeFS and MemoryFS both embed
// syncWriteSet to implement it.
type SyncWriteMarker interface {
	MarkSyncWriteStart(path string)
	MarkSyncWriteEnd(path string)
	IsSyncWrite(path string) bool
}

// syncWriteSet is a reference-counted set: nested Start/End pairs on the
// same path (e.g. a body write followed immediately by a metadata write
// during the same CRDT replay) only clear once every Start has an End.
type syncWriteSet struct {
	mu     sync.Mutex
	counts map[string]int
}

func newSyncWriteSet() *syncWriteSet {
	return &syncWriteSet{counts: make(map[string]int)}
}

func (s *syncWriteSet) MarkSyncWriteStart(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[path]++
}

func (s *syncWriteSet) MarkSyncWriteEnd(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts[path] <= 1 {
		delete(s.counts, path)
		return
	}
	s.counts[path]--
}

func (s *syncWriteSet) IsSyncWrite(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[path] > 0
}

func unixMillis(t time.Time) int64 {
	return t.UnixMilli()
}
