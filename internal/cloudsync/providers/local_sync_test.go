package providers

import (
	"context"
	"testing"

	"github.com/diaryxhq/diaryx/internal/cloudsync"
	"github.com/diaryxhq/diaryx/internal/vfs"
)

func TestSync_EndToEndAgainstLocalProvider(t *testing.T) {
	ctx := context.Background()
	workspace := vfs.NewMemoryFS()
	_ = workspace.WriteBinary(ctx, "index.md", []byte("# workspace"))
	_ = workspace.WriteBinary(ctx, "notes/a.md", []byte("note a"))

	remoteFS := vfs.NewMemoryFS()
	provider := NewLocalProvider("mirror", remoteFS)

	store, err := cloudsync.OpenSQLiteManifestStore(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLiteManifestStore: %v", err)
	}
	defer store.Close()

	result, err := cloudsync.Sync(ctx, workspace, provider, store, cloudsync.Options{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Uploaded) != 2 {
		t.Fatalf("expected both workspace files uploaded, got %v", result.Uploaded)
	}

	mirrored, err := remoteFS.ReadBinary(ctx, "notes/a.md")
	if err != nil || string(mirrored) != "note a" {
		t.Errorf("mirror did not receive notes/a.md: %v %q", err, mirrored)
	}

	// A file appearing only on the mirror should download into the workspace.
	_ = remoteFS.WriteBinary(ctx, "notes/b.md", []byte("note b"))
	result, err = cloudsync.Sync(ctx, workspace, provider, store, cloudsync.Options{})
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if len(result.Downloaded) != 1 || result.Downloaded[0] != "notes/b.md" {
		t.Errorf("expected notes/b.md downloaded, got %v", result.Downloaded)
	}
	content, err := workspace.ReadBinary(ctx, "notes/b.md")
	if err != nil || string(content) != "note b" {
		t.Errorf("workspace did not receive notes/b.md: %v %q", err, content)
	}
}
