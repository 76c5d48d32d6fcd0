package cloudsync

import (
	"context"
	"testing"

	"github.com/diaryxhq/diaryx/internal/vfs"
)

func TestResolveConflict_KeepLocalUploadsLocalContent(t *testing.T) {
	ctx := context.Background()
	fs := vfs.NewMemoryFS()
	_ = fs.WriteBinary(ctx, "note.md", []byte("local wins"))
	provider := newFakeProvider("test")
	provider.seed("note.md", []byte("remote loses"))
	m := NewSyncManifest("test")

	conflict := ConflictInfo{Path: "note.md", LocalHash: "x", RemoteHash: "y"}
	_, err := ResolveConflict(ctx, fs, provider, m, conflict, KeepLocal, nil)
	if err != nil {
		t.Fatalf("ResolveConflict: %v", err)
	}

	remoteContent, err := provider.Download(ctx, "note.md")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(remoteContent) != "local wins" {
		t.Errorf("remote content = %q, want %q", remoteContent, "local wins")
	}
	if _, ok := m.GetFile("note.md"); !ok {
		t.Error("expected manifest to record note.md as synced")
	}
}

func TestResolveConflict_KeepRemoteOverwritesLocal(t *testing.T) {
	ctx := context.Background()
	fs := vfs.NewMemoryFS()
	_ = fs.WriteBinary(ctx, "note.md", []byte("local loses"))
	provider := newFakeProvider("test")
	provider.seed("note.md", []byte("remote wins"))
	m := NewSyncManifest("test")

	conflict := ConflictInfo{Path: "note.md"}
	_, err := ResolveConflict(ctx, fs, provider, m, conflict, KeepRemote, nil)
	if err != nil {
		t.Fatalf("ResolveConflict: %v", err)
	}

	localContent, err := fs.ReadBinary(ctx, "note.md")
	if err != nil {
		t.Fatalf("ReadBinary: %v", err)
	}
	if string(localContent) != "remote wins" {
		t.Errorf("local content = %q, want %q", localContent, "remote wins")
	}
}

func TestResolveConflict_KeepBothWritesSiblingAndKeepsRemoteAtOriginalPath(t *testing.T) {
	ctx := context.Background()
	fs := vfs.NewMemoryFS()
	_ = fs.WriteBinary(ctx, "notes/test.md", []byte("local content"))
	provider := newFakeProvider("test")
	provider.seed("notes/test.md", []byte("remote content"))
	m := NewSyncManifest("test")

	conflict := ConflictInfo{Path: "notes/test.md"}
	result, err := ResolveConflict(ctx, fs, provider, m, conflict, KeepBoth, nil)
	if err != nil {
		t.Fatalf("ResolveConflict: %v", err)
	}
	if result.SiblingPath != "notes/test.conflict.md" {
		t.Fatalf("SiblingPath = %q, want notes/test.conflict.md", result.SiblingPath)
	}

	sibling, err := fs.ReadBinary(ctx, "notes/test.conflict.md")
	if err != nil {
		t.Fatalf("ReadBinary sibling: %v", err)
	}
	if string(sibling) != "local content" {
		t.Errorf("sibling content = %q, want local content", sibling)
	}

	original, err := fs.ReadBinary(ctx, "notes/test.md")
	if err != nil {
		t.Fatalf("ReadBinary original: %v", err)
	}
	if string(original) != "remote content" {
		t.Errorf("original content = %q, want remote content", original)
	}
}

func TestResolveConflict_SkipTouchesNeitherSide(t *testing.T) {
	ctx := context.Background()
	fs := vfs.NewMemoryFS()
	_ = fs.WriteBinary(ctx, "note.md", []byte("local"))
	provider := newFakeProvider("test")
	provider.seed("note.md", []byte("remote"))
	m := NewSyncManifest("test")

	_, err := ResolveConflict(ctx, fs, provider, m, ConflictInfo{Path: "note.md"}, Skip, nil)
	if err != nil {
		t.Fatalf("ResolveConflict: %v", err)
	}

	localContent, _ := fs.ReadBinary(ctx, "note.md")
	if string(localContent) != "local" {
		t.Errorf("local content changed to %q", localContent)
	}
	remoteContent, _ := provider.Download(ctx, "note.md")
	if string(remoteContent) != "remote" {
		t.Errorf("remote content changed to %q", remoteContent)
	}
	if _, ok := m.GetFile("note.md"); ok {
		t.Error("Skip should not mark the manifest synced")
	}
}
