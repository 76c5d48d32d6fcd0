package cloudsync

import "testing"

func TestSyncManifest_NeedsUpload(t *testing.T) {
	m := NewSyncManifest("test")
	if !m.NeedsUpload("untracked.md", "any-hash") {
		t.Error("untracked path should need upload")
	}

	m.MarkSynced("tracked.md", "hash-a", "v1", 0, 0)
	if m.NeedsUpload("tracked.md", "hash-a") {
		t.Error("unchanged hash should not need upload")
	}
	if !m.NeedsUpload("tracked.md", "hash-b") {
		t.Error("changed hash should need upload")
	}
}

func TestSyncManifest_GetLocallyDeleted(t *testing.T) {
	m := NewSyncManifest("test")
	m.MarkSynced("keep.md", "h", "v", 0, 0)
	m.SetFile(FileSyncState{Path: "gone.md", LocallyDeleted: true})

	deleted := m.GetLocallyDeleted()
	if len(deleted) != 1 || deleted[0] != "gone.md" {
		t.Errorf("expected [gone.md], got %v", deleted)
	}
}

func TestSQLiteManifestStore_SaveLoadRoundTrips(t *testing.T) {
	store, err := OpenSQLiteManifestStore(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLiteManifestStore: %v", err)
	}
	defer store.Close()

	m := NewSyncManifest("provider-a")
	m.Cursor = "cursor-123"
	m.MarkSynced("notes/a.md", "hash-a", "v1", 100, 200)
	m.SetFile(FileSyncState{Path: "deleted.md", LocallyDeleted: true})

	if err := store.Save(m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load("provider-a")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Cursor != "cursor-123" {
		t.Errorf("Cursor = %q, want cursor-123", loaded.Cursor)
	}
	st, ok := loaded.GetFile("notes/a.md")
	if !ok || st.LocalHash != "hash-a" || st.RemoteVersion != "v1" {
		t.Errorf("notes/a.md round trip mismatch: %+v ok=%v", st, ok)
	}
	del, ok := loaded.GetFile("deleted.md")
	if !ok || !del.LocallyDeleted {
		t.Errorf("deleted.md round trip mismatch: %+v ok=%v", del, ok)
	}
}

func TestSQLiteManifestStore_LoadUnknownProviderReturnsEmptyManifest(t *testing.T) {
	store, err := OpenSQLiteManifestStore(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLiteManifestStore: %v", err)
	}
	defer store.Close()

	m, err := store.Load("never-synced")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Files) != 0 {
		t.Errorf("expected empty manifest, got %+v", m.Files)
	}
}
