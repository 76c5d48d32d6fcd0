package crdtfs

import (
	"context"
	"testing"

	"github.com/diaryxhq/diaryx/internal/crdt"
	"github.com/diaryxhq/diaryx/internal/vfs"
	"github.com/stretchr/testify/require"
)

func newTestFS(t *testing.T) (*FS, *vfs.MemoryFS) {
	t.Helper()
	mem := vfs.NewMemoryFS()
	events := vfs.NewEventFS(mem)
	bodies, err := crdt.NewBodyDocManager(64, "device-a")
	require.NoError(t, err)
	workspace := crdt.NewWorkspaceCrdt("device-a")
	return New(events, workspace, bodies), mem
}

func TestFS_CreateNewIngestsMetadataAndBody(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFS(t)

	content := "---\ntitle: Hello\ncontents: []\n---\nBody text\n"
	require.NoError(t, f.CreateNew(ctx, "index.md", content))

	id, meta, ok := f.Workspace.Get("index.md")
	require.True(t, ok)
	require.Equal(t, "Hello", *meta.Title)
	require.True(t, meta.IsIndex())

	doc, ok := f.Bodies.Get(id)
	require.True(t, ok)
	require.Equal(t, "Body text\n", doc.Text())
}

func TestFS_WriteTextUnchangedProducesNoUpdate(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFS(t)

	content := "---\ntitle: Hello\n---\nBody\n"
	require.NoError(t, f.CreateNew(ctx, "a.md", content))
	_, _, exists := f.Workspace.Get("a.md")
	require.True(t, exists)

	notified := false
	f.Workspace.Observe(func(crdt.DocID) { notified = true })
	require.NoError(t, f.WriteText(ctx, "a.md", content))
	require.False(t, notified, "rewriting identical content must not change the workspace crdt")
}

func TestFS_DeleteTombstonesAndDropsBody(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFS(t)

	require.NoError(t, f.CreateNew(ctx, "a.md", "---\ntitle: A\n---\nbody"))
	id, _, _ := f.Workspace.Get("a.md")

	require.NoError(t, f.Delete(ctx, "a.md"))

	_, _, ok := f.Workspace.Get("a.md")
	require.False(t, ok)
	_, ok = f.Bodies.Get(id)
	require.False(t, ok)
}

func TestFS_MoveRewritesOwnPartOf(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFS(t)

	require.NoError(t, f.CreateNew(ctx, "parent.md", "---\ntitle: Parent\ncontents: [\"child.md\"]\n---\n"))
	require.NoError(t, f.CreateNew(ctx, "child.md", "---\ntitle: Child\npart_of: parent.md\n---\n"))
	require.NoError(t, f.FileSystem.MakeDirs(ctx, "sub"))

	require.NoError(t, f.Move(ctx, "child.md", "sub/child.md"))

	_, meta, ok := f.Workspace.Get("sub/child.md")
	require.True(t, ok)
	require.Equal(t, "../parent.md", *meta.PartOf)
}

func TestFS_SyncWriteMarkerSuppressesIngestion(t *testing.T) {
	ctx := context.Background()
	f, mem := newTestFS(t)

	mem.MarkSyncWriteStart("a.md")
	require.NoError(t, f.CreateNew(ctx, "a.md", "---\ntitle: A\n---\nbody"))
	mem.MarkSyncWriteEnd("a.md")

	_, _, ok := f.Workspace.Get("a.md")
	require.False(t, ok, "sync-write-marked paths must bypass CRDT ingestion")
}
