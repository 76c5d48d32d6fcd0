// Package providers holds concrete cloudsync.CloudProvider
// implementations.
package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/diaryxhq/diaryx/internal/blob"
	"github.com/diaryxhq/diaryx/internal/cloudsync"
)

// S3Provider adapts internal/blob's S3Client (S3-compatible object
// storage) into a cloudsync.CloudProvider. Grounded directly on
// internal/blob/client_s3.go's method set (GetObject/PutObject/
// DeleteObject/ListObjects), repurposed from the sync relay's blob
// store into one side of a workspace's cloud reconciliation.
type S3Provider struct {
	client *blob.S3Client
	bucket string
	prefix string
}

// NewS3Provider wraps an already-constructed S3Client. bucket/prefix
// identify this provider instance for manifest storage (ID()).
func NewS3Provider(client *blob.S3Client, bucket, prefix string) *S3Provider {
	return &S3Provider{client: client, bucket: bucket, prefix: prefix}
}

// NewS3ProviderFromConfig constructs an S3Client from cfg via
// blob.NewS3ClientFromConfig, the same construction path the sync
// relay's own blob store uses.
func NewS3ProviderFromConfig(cfg *blob.S3BlobConfig, prefix string) *S3Provider {
	client := blob.NewS3ClientFromConfig(cfg)
	return &S3Provider{client: client, bucket: cfg.BucketName, prefix: prefix}
}

func (p *S3Provider) ID() string {
	if p.prefix == "" {
		return fmt.Sprintf("s3://%s", p.bucket)
	}
	return fmt.Sprintf("s3://%s/%s", p.bucket, p.prefix)
}

func (p *S3Provider) key(path string) string {
	if p.prefix == "" {
		return path
	}
	return p.prefix + "/" + path
}

func (p *S3Provider) unkey(key string) string {
	if p.prefix == "" {
		return key
	}
	return key[len(p.prefix)+1:]
}

func (p *S3Provider) ListRemote(ctx context.Context) ([]cloudsync.RemoteFileInfo, error) {
	objects, err := p.client.ListObjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 provider: list objects: %w", err)
	}
	var out []cloudsync.RemoteFileInfo
	for _, obj := range objects {
		if p.prefix != "" && len(obj.Key) <= len(p.prefix) {
			continue
		}
		modified, _ := time.Parse(time.RFC3339, obj.LastModified)
		out = append(out, cloudsync.RemoteFileInfo{
			Path:         p.unkey(obj.Key),
			Size:         obj.Size,
			ModifiedAtMs: modified.UnixMilli(),
			Version:      obj.ETag,
		})
	}
	return out, nil
}

func (p *S3Provider) Upload(ctx context.Context, path string, content []byte, modifiedAtMs int64) (cloudsync.RemoteFileInfo, error) {
	resp, err := p.client.PutObject(ctx, &blob.PutObjectParams{
		Key:  p.key(path),
		Size: int64(len(content)),
		Body: bytes.NewReader(content),
	})
	if err != nil {
		return cloudsync.RemoteFileInfo{}, fmt.Errorf("s3 provider: put object %q: %w", path, err)
	}
	return cloudsync.RemoteFileInfo{
		Path: path, Size: resp.Size, ModifiedAtMs: modifiedAtMs, Version: resp.Version,
	}, nil
}

func (p *S3Provider) Download(ctx context.Context, path string) ([]byte, error) {
	resp, err := p.client.GetObject(ctx, p.key(path))
	if err != nil {
		return nil, fmt.Errorf("s3 provider: get object %q: %w", path, err)
	}
	defer resp.Body.Close()
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 provider: read object %q: %w", path, err)
	}
	return content, nil
}

func (p *S3Provider) DeleteRemote(ctx context.Context, path string) error {
	_, err := p.client.DeleteObject(ctx, p.key(path))
	if err != nil {
		return fmt.Errorf("s3 provider: delete object %q: %w", path, err)
	}
	return nil
}

var _ cloudsync.CloudProvider = (*S3Provider)(nil)
