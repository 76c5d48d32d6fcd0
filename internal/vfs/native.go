package vfs

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/diaryxhq/diaryx/internal/direrr"
	"github.com/diaryxhq/diaryx/internal/pathutil"
)

// NativeFS implements FileSystem against a real directory tree rooted at
// Root. All paths passed to its methods are workspace-relative; NativeFS
// resolves them against Root with filepath.Join before touching the OS.
//
// Grounded on internal/client/workspace/workspace.go's DatasiteAbsPath /
// NormPath split between an absolute root and relative member paths.
type NativeFS struct {
	Root string

	*syncWriteSet
}

// NewNativeFS returns a NativeFS rooted at root. root must already exist;
// callers create it via MakeDirs(ctx, "") or os.MkdirAll before use.
func NewNativeFS(root string) *NativeFS {
	return &NativeFS{Root: filepath.Clean(root), syncWriteSet: newSyncWriteSet()}
}

func (n *NativeFS) abs(rel string) string {
	rel = pathutil.Norm(rel)
	if rel == "" {
		return n.Root
	}
	return filepath.Join(n.Root, filepath.FromSlash(rel))
}

func (n *NativeFS) ReadText(_ context.Context, path string) (string, error) {
	b, err := os.ReadFile(n.abs(path))
	if err != nil {
		return "", direrr.New(direrr.KindIO, path, mapOSErr(err))
	}
	return string(b), nil
}

func (n *NativeFS) WriteText(_ context.Context, path, content string) error {
	return n.writeAtomic(path, []byte(content))
}

func (n *NativeFS) CreateNew(_ context.Context, path, content string) error {
	full := n.abs(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return direrr.New(direrr.KindIO, path, err)
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return direrr.New(direrr.KindIO, path, direrr.ErrAlreadyExists)
		}
		return direrr.New(direrr.KindIO, path, err)
	}
	defer f.Close()
	_, err = f.WriteString(content)
	if err != nil {
		return direrr.New(direrr.KindIO, path, err)
	}
	return nil
}

func (n *NativeFS) Delete(_ context.Context, path string) error {
	if err := os.Remove(n.abs(path)); err != nil {
		return direrr.New(direrr.KindIO, path, mapOSErr(err))
	}
	return nil
}

func (n *NativeFS) ReadBinary(_ context.Context, path string) ([]byte, error) {
	b, err := os.ReadFile(n.abs(path))
	if err != nil {
		return nil, direrr.New(direrr.KindIO, path, mapOSErr(err))
	}
	return b, nil
}

func (n *NativeFS) WriteBinary(_ context.Context, path string, content []byte) error {
	return n.writeAtomic(path, content)
}

// writeAtomic writes via a temp file + rename so that a reader never
// observes a partially written file, matching the native backend's
// expectation that write_file/write_binary are all-or-nothing.
func (n *NativeFS) writeAtomic(path string, content []byte) error {
	full := n.abs(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return direrr.New(direrr.KindIO, path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-*")
	if err != nil {
		return direrr.New(direrr.KindIO, path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return direrr.New(direrr.KindIO, path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return direrr.New(direrr.KindIO, path, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return direrr.New(direrr.KindIO, path, err)
	}
	return nil
}

func (n *NativeFS) List(_ context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(n.abs(dir))
	if err != nil {
		return nil, direrr.New(direrr.KindIO, dir, mapOSErr(err))
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, pathutil.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func (n *NativeFS) ListMarkdown(ctx context.Context, dir string) ([]string, error) {
	all, err := n.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, p := range all {
		if strings.HasSuffix(p, ".md") {
			isDir, _ := n.IsDir(ctx, p)
			if !isDir {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (n *NativeFS) ListRecursive(_ context.Context, dir string) ([]string, error) {
	var out []string
	root := n.abs(dir)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, relErr := filepath.Rel(n.Root, p)
		if relErr != nil {
			return relErr
		}
		out = append(out, pathutil.Norm(rel))
		return nil
	})
	if err != nil {
		return nil, direrr.New(direrr.KindIO, dir, mapOSErr(err))
	}
	return out, nil
}

func (n *NativeFS) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Lstat(n.abs(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, direrr.New(direrr.KindIO, path, err)
}

func (n *NativeFS) IsDir(_ context.Context, path string) (bool, error) {
	info, err := os.Stat(n.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, direrr.New(direrr.KindIO, path, err)
	}
	return info.IsDir(), nil
}

func (n *NativeFS) IsSymlink(_ context.Context, path string) (bool, error) {
	info, err := os.Lstat(n.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, direrr.New(direrr.KindIO, path, err)
	}
	return info.Mode()&os.ModeSymlink != 0, nil
}

func (n *NativeFS) MakeDirs(_ context.Context, path string) error {
	if err := os.MkdirAll(n.abs(path), 0o755); err != nil {
		return direrr.New(direrr.KindIO, path, err)
	}
	return nil
}

func (n *NativeFS) Move(_ context.Context, from, to string) error {
	fullFrom, fullTo := n.abs(from), n.abs(to)
	if err := os.MkdirAll(filepath.Dir(fullTo), 0o755); err != nil {
		return direrr.New(direrr.KindIO, to, err)
	}
	if _, err := os.Stat(fullTo); err == nil {
		return direrr.New(direrr.KindIO, to, direrr.ErrAlreadyExists)
	}
	if err := os.Rename(fullFrom, fullTo); err != nil {
		return direrr.New(direrr.KindIO, from, err)
	}
	return nil
}

func (n *NativeFS) ModifiedTimeMs(_ context.Context, path string) (int64, bool) {
	info, err := os.Stat(n.abs(path))
	if err != nil {
		return 0, false
	}
	return unixMillis(info.ModTime()), true
}

func mapOSErr(err error) error {
	if os.IsNotExist(err) {
		return direrr.ErrNotFound
	}
	if os.IsExist(err) {
		return direrr.ErrAlreadyExists
	}
	return err
}
