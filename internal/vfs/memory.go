package vfs

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/diaryxhq/diaryx/internal/direrr"
	"github.com/diaryxhq/diaryx/internal/pathutil"
)

type memEntry struct {
	isDir     bool
	content   []byte
	modified  time.Time
	isSymlink bool
}

// MemoryFS is an in-process FileSystem backed by a map, used by tests and by
// the relay (which serves CRDT state without ever touching disk).
//
// Grounded on _examples/original_source/crates/diaryx_core/src/fs/memory.rs's
// InMemoryFileSystem (a path->entry map guarded by a single lock); unlike the
// Rust version this tracks directories as explicit entries so IsDir/List
// behave the same way NativeFS's directory walk does.
type MemoryFS struct {
	mu      sync.RWMutex
	entries map[string]*memEntry

	*syncWriteSet
}

// NewMemoryFS returns an empty MemoryFS with just the root directory.
func NewMemoryFS() *MemoryFS {
	m := &MemoryFS{entries: make(map[string]*memEntry), syncWriteSet: newSyncWriteSet()}
	m.entries[""] = &memEntry{isDir: true, modified: time.Unix(0, 0)}
	return m
}

func (m *MemoryFS) ensureDirs(dir string) {
	dir = pathutil.Norm(dir)
	for {
		if _, ok := m.entries[dir]; !ok {
			m.entries[dir] = &memEntry{isDir: true, modified: time.Unix(0, 0)}
		}
		if dir == "" {
			return
		}
		dir = pathutil.Dir(dir)
	}
}

func (m *MemoryFS) ReadText(_ context.Context, path string) (string, error) {
	path = pathutil.Norm(path)
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[path]
	if !ok || e.isDir {
		return "", direrr.New(direrr.KindIO, path, direrr.ErrNotFound)
	}
	return string(e.content), nil
}

func (m *MemoryFS) WriteText(ctx context.Context, path, content string) error {
	return m.WriteBinary(ctx, path, []byte(content))
}

func (m *MemoryFS) CreateNew(_ context.Context, path, content string) error {
	path = pathutil.Norm(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[path]; ok && !e.isDir {
		return direrr.New(direrr.KindIO, path, direrr.ErrAlreadyExists)
	}
	m.ensureDirs(pathutil.Dir(path))
	m.entries[path] = &memEntry{content: []byte(content), modified: time.Now()}
	return nil
}

func (m *MemoryFS) Delete(_ context.Context, path string) error {
	path = pathutil.Norm(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[path]; !ok {
		return direrr.New(direrr.KindIO, path, direrr.ErrNotFound)
	}
	delete(m.entries, path)
	return nil
}

func (m *MemoryFS) ReadBinary(ctx context.Context, path string) ([]byte, error) {
	s, err := m.ReadText(ctx, path)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func (m *MemoryFS) WriteBinary(_ context.Context, path string, content []byte) error {
	path = pathutil.Norm(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureDirs(pathutil.Dir(path))
	cp := make([]byte, len(content))
	copy(cp, content)
	m.entries[path] = &memEntry{content: cp, modified: time.Now()}
	return nil
}

func (m *MemoryFS) List(_ context.Context, dir string) ([]string, error) {
	dir = pathutil.Norm(dir)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[dir]; dir != "" && (!ok || !e.isDir) {
		return nil, direrr.New(direrr.KindIO, dir, direrr.ErrNotFound)
	}
	var out []string
	for p := range m.entries {
		if p == dir || p == "" {
			continue
		}
		if pathutil.Dir(p) == dir {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryFS) ListMarkdown(ctx context.Context, dir string) ([]string, error) {
	all, err := m.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := all[:0:0]
	for _, p := range all {
		if strings.HasSuffix(p, ".md") && !m.entries[p].isDir {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryFS) ListRecursive(_ context.Context, dir string) ([]string, error) {
	dir = pathutil.Norm(dir)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for p := range m.entries {
		if p == "" || p == dir {
			continue
		}
		if dir == "" || p == dir || strings.HasPrefix(p, dir+"/") {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryFS) Exists(_ context.Context, path string) (bool, error) {
	path = pathutil.Norm(path)
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[path]
	return ok, nil
}

func (m *MemoryFS) IsDir(_ context.Context, path string) (bool, error) {
	path = pathutil.Norm(path)
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[path]
	return ok && e.isDir, nil
}

func (m *MemoryFS) IsSymlink(_ context.Context, path string) (bool, error) {
	path = pathutil.Norm(path)
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[path]
	return ok && e.isSymlink, nil
}

func (m *MemoryFS) MakeDirs(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureDirs(path)
	return nil
}

func (m *MemoryFS) Move(_ context.Context, from, to string) error {
	from, to = pathutil.Norm(from), pathutil.Norm(to)
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[from]
	if !ok {
		return direrr.New(direrr.KindIO, from, direrr.ErrNotFound)
	}
	if _, exists := m.entries[to]; exists {
		return direrr.New(direrr.KindIO, to, direrr.ErrAlreadyExists)
	}
	m.ensureDirs(pathutil.Dir(to))
	delete(m.entries, from)
	e.modified = time.Now()
	m.entries[to] = e
	return nil
}

func (m *MemoryFS) ModifiedTimeMs(_ context.Context, path string) (int64, bool) {
	path = pathutil.Norm(path)
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[path]
	if !ok {
		return 0, false
	}
	return unixMillis(e.modified), true
}
