package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/diaryxhq/diaryx/internal/cloudsync"
	"github.com/diaryxhq/diaryx/internal/vfs"
)

// LocalProvider treats a second vfs.FileSystem as "remote" — useful for
// local peer mirroring (e.g. an external drive or a second machine
// reachable over a mounted path) and for exercising the cloudsync
// algorithm in tests without a real object store. Has no teacher analog;
// grounded on the same cloudsync.CloudProvider seam the S3 provider
// implements, backed by internal/vfs.FileSystem rather than an S3 client.
type LocalProvider struct {
	id string
	fs vfs.FileSystem
}

// NewLocalProvider wraps fs as a CloudProvider identified by id (used for
// manifest storage; typically a filesystem path).
func NewLocalProvider(id string, fs vfs.FileSystem) *LocalProvider {
	return &LocalProvider{id: id, fs: fs}
}

func (p *LocalProvider) ID() string { return p.id }

func (p *LocalProvider) ListRemote(ctx context.Context) ([]cloudsync.RemoteFileInfo, error) {
	entries, err := p.fs.ListRecursive(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("local provider: list: %w", err)
	}
	var out []cloudsync.RemoteFileInfo
	for _, path := range entries {
		isDir, err := p.fs.IsDir(ctx, path)
		if err != nil || isDir {
			continue
		}
		content, err := p.fs.ReadBinary(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("local provider: read %q: %w", path, err)
		}
		modMs, _ := p.fs.ModifiedTimeMs(ctx, path)
		out = append(out, cloudsync.RemoteFileInfo{
			Path: path, Size: int64(len(content)), ModifiedAtMs: modMs, ContentHash: contentHash(content),
		})
	}
	return out, nil
}

func (p *LocalProvider) Upload(ctx context.Context, path string, content []byte, modifiedAtMs int64) (cloudsync.RemoteFileInfo, error) {
	if err := p.fs.WriteBinary(ctx, path, content); err != nil {
		return cloudsync.RemoteFileInfo{}, fmt.Errorf("local provider: write %q: %w", path, err)
	}
	return cloudsync.RemoteFileInfo{
		Path: path, Size: int64(len(content)), ModifiedAtMs: modifiedAtMs, ContentHash: contentHash(content),
	}, nil
}

func (p *LocalProvider) Download(ctx context.Context, path string) ([]byte, error) {
	content, err := p.fs.ReadBinary(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("local provider: read %q: %w", path, err)
	}
	return content, nil
}

func (p *LocalProvider) DeleteRemote(ctx context.Context, path string) error {
	exists, err := p.fs.Exists(ctx, path)
	if err != nil {
		return fmt.Errorf("local provider: stat %q: %w", path, err)
	}
	if !exists {
		return nil
	}
	if err := p.fs.Delete(ctx, path); err != nil {
		return fmt.Errorf("local provider: delete %q: %w", path, err)
	}
	return nil
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

var _ cloudsync.CloudProvider = (*LocalProvider)(nil)
