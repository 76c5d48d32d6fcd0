package cloudsync

import (
	"context"
	"testing"

	"github.com/diaryxhq/diaryx/internal/vfs"
)

func TestDetectLocalChanges_CreatedModifiedDeleted(t *testing.T) {
	ctx := context.Background()
	fs := vfs.NewMemoryFS()
	_ = fs.WriteBinary(ctx, "new.md", []byte("hello"))
	_ = fs.WriteBinary(ctx, "changed.md", []byte("new content"))

	m := NewSyncManifest("test")
	m.MarkSynced("changed.md", hashContent([]byte("old content")), "", 0, 0)
	m.MarkSynced("gone.md", hashContent([]byte("bye")), "", 0, 0)

	changes, err := DetectLocalChanges(ctx, fs, nil, m)
	if err != nil {
		t.Fatalf("DetectLocalChanges: %v", err)
	}

	byPath := make(map[string]LocalChange)
	for _, c := range changes {
		byPath[c.Path] = c
	}

	if c, ok := byPath["new.md"]; !ok || c.Kind != Created {
		t.Errorf("expected new.md Created, got %+v ok=%v", c, ok)
	}
	if c, ok := byPath["changed.md"]; !ok || c.Kind != Modified {
		t.Errorf("expected changed.md Modified, got %+v ok=%v", c, ok)
	}
	if c, ok := byPath["gone.md"]; !ok || c.Kind != Deleted {
		t.Errorf("expected gone.md Deleted, got %+v ok=%v", c, ok)
	}
	if _, ok := byPath["unrelated"]; ok {
		t.Errorf("did not expect any change for an untouched path")
	}
}

func TestDetectLocalChanges_UnchangedFileProducesNoChange(t *testing.T) {
	ctx := context.Background()
	fs := vfs.NewMemoryFS()
	content := []byte("stable")
	_ = fs.WriteBinary(ctx, "stable.md", content)

	m := NewSyncManifest("test")
	m.MarkSynced("stable.md", hashContent(content), "", 0, 0)

	changes, err := DetectLocalChanges(ctx, fs, nil, m)
	if err != nil {
		t.Fatalf("DetectLocalChanges: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("expected no changes, got %+v", changes)
	}
}

func TestDetectLocalChanges_IgnoresMatchedPaths(t *testing.T) {
	ctx := context.Background()
	fs := vfs.NewMemoryFS()
	_ = fs.WriteBinary(ctx, ".diaryx/crdt.db", []byte("binary"))
	_ = fs.WriteBinary(ctx, "note.md", []byte("content"))

	changes, err := DetectLocalChanges(ctx, fs, NewIgnoreList(), NewSyncManifest("test"))
	if err != nil {
		t.Fatalf("DetectLocalChanges: %v", err)
	}
	for _, c := range changes {
		if c.Path == ".diaryx/crdt.db" {
			t.Errorf("expected .diaryx/ to be ignored, got change %+v", c)
		}
	}
}

func TestDetectRemoteChanges_CreatedModifiedDeleted(t *testing.T) {
	m := NewSyncManifest("test")
	m.MarkSynced("changed.md", "", "v1", 0, 0)
	m.MarkSynced("gone.md", "", "v1", 0, 0)

	remote := []RemoteFileInfo{
		{Path: "new.md", Version: "v1"},
		{Path: "changed.md", Version: "v2"},
	}

	changes := DetectRemoteChanges(remote, m)
	byPath := make(map[string]RemoteChange)
	for _, c := range changes {
		byPath[c.Path] = c
	}
	if c, ok := byPath["new.md"]; !ok || c.Kind != Created {
		t.Errorf("expected new.md Created, got %+v ok=%v", c, ok)
	}
	if c, ok := byPath["changed.md"]; !ok || c.Kind != Modified {
		t.Errorf("expected changed.md Modified, got %+v ok=%v", c, ok)
	}
	if c, ok := byPath["gone.md"]; !ok || c.Kind != Deleted {
		t.Errorf("expected gone.md Deleted, got %+v ok=%v", c, ok)
	}
}

func TestDetectConflicts_SamePathChangedBothSidesIsAConflict(t *testing.T) {
	locals := []LocalChange{{Path: "shared.md", Kind: Modified, ContentHash: "local-hash", ModifiedAtMs: 100}}
	remotes := []RemoteChange{{Path: "shared.md", Kind: Modified, Info: RemoteFileInfo{Path: "shared.md", ContentHash: "remote-hash", ModifiedAtMs: 200}}}

	conflicts := DetectConflicts(locals, remotes)
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(conflicts))
	}
	c := conflicts[0]
	if c.Path != "shared.md" || c.LocalHash != "local-hash" || c.RemoteHash != "remote-hash" {
		t.Errorf("unexpected conflict: %+v", c)
	}
}

func TestDetectConflicts_BothDeletedIsNotAConflict(t *testing.T) {
	locals := []LocalChange{{Path: "shared.md", Kind: Deleted}}
	remotes := []RemoteChange{{Path: "shared.md", Kind: Deleted}}

	conflicts := DetectConflicts(locals, remotes)
	if len(conflicts) != 0 {
		t.Errorf("expected no conflicts for agreeing deletes, got %+v", conflicts)
	}
}

func TestComputeSyncActions_NonConflictingChangesMapOneToOne(t *testing.T) {
	locals := []LocalChange{
		{Path: "created.md", Kind: Created},
		{Path: "deleted.md", Kind: Deleted},
	}
	remotes := []RemoteChange{
		{Path: "downloaded.md", Kind: Created, Info: RemoteFileInfo{Path: "downloaded.md"}},
		{Path: "remote-deleted.md", Kind: Deleted},
	}

	actions := ComputeSyncActions(locals, remotes)
	if len(actions) != 4 {
		t.Fatalf("expected 4 actions, got %d: %+v", len(actions), actions)
	}

	byPath := make(map[string]SyncAction)
	for _, a := range actions {
		byPath[a.Path] = a
	}
	if a := byPath["created.md"]; a.Kind != ActionUpload {
		t.Errorf("created.md: expected ActionUpload, got %+v", a)
	}
	if a := byPath["deleted.md"]; a.Kind != ActionDelete || a.Direction != DirectionUpload {
		t.Errorf("deleted.md: expected ActionDelete/DirectionUpload, got %+v", a)
	}
	if a := byPath["downloaded.md"]; a.Kind != ActionDownload {
		t.Errorf("downloaded.md: expected ActionDownload, got %+v", a)
	}
	if a := byPath["remote-deleted.md"]; a.Kind != ActionDelete || a.Direction != DirectionDownload {
		t.Errorf("remote-deleted.md: expected ActionDelete/DirectionDownload, got %+v", a)
	}
}

func TestComputeSyncActions_ConflictSuppressesUploadAndDownload(t *testing.T) {
	locals := []LocalChange{{Path: "shared.md", Kind: Modified, ContentHash: "a"}}
	remotes := []RemoteChange{{Path: "shared.md", Kind: Modified, Info: RemoteFileInfo{Path: "shared.md", ContentHash: "b"}}}

	actions := ComputeSyncActions(locals, remotes)
	if len(actions) != 1 {
		t.Fatalf("expected exactly 1 action (the conflict), got %d: %+v", len(actions), actions)
	}
	if actions[0].Kind != ActionConflict {
		t.Errorf("expected ActionConflict, got %+v", actions[0])
	}
}
