package vfs

import (
	"context"
	"testing"

	"github.com/diaryxhq/diaryx/internal/direrr"
	"github.com/stretchr/testify/require"
)

func TestNativeFS_CreateReadWriteDelete(t *testing.T) {
	ctx := context.Background()
	fsys := NewNativeFS(t.TempDir())

	require.NoError(t, fsys.CreateNew(ctx, "a/index.md", "hello"))
	err := fsys.CreateNew(ctx, "a/index.md", "again")
	require.ErrorIs(t, err, direrr.ErrAlreadyExists)

	got, err := fsys.ReadText(ctx, "a/index.md")
	require.NoError(t, err)
	require.Equal(t, "hello", got)

	require.NoError(t, fsys.WriteText(ctx, "a/index.md", "updated"))
	got, err = fsys.ReadText(ctx, "a/index.md")
	require.NoError(t, err)
	require.Equal(t, "updated", got)

	require.NoError(t, fsys.Delete(ctx, "a/index.md"))
	_, err = fsys.ReadText(ctx, "a/index.md")
	require.Error(t, err)
}

func TestNativeFS_ListAndRecursive(t *testing.T) {
	ctx := context.Background()
	fsys := NewNativeFS(t.TempDir())

	require.NoError(t, fsys.CreateNew(ctx, "index.md", "root"))
	require.NoError(t, fsys.CreateNew(ctx, "child/index.md", "child"))
	require.NoError(t, fsys.CreateNew(ctx, "child/leaf.md", "leaf"))
	require.NoError(t, fsys.WriteBinary(ctx, "child/photo.png", []byte{1, 2, 3}))

	md, err := fsys.ListMarkdown(ctx, "child")
	require.NoError(t, err)
	require.Equal(t, []string{"child/index.md", "child/leaf.md"}, md)

	all, err := fsys.ListRecursive(ctx, "")
	require.NoError(t, err)
	require.Contains(t, all, "child")
	require.Contains(t, all, "child/photo.png")
}

func TestNativeFS_Move(t *testing.T) {
	ctx := context.Background()
	fsys := NewNativeFS(t.TempDir())

	require.NoError(t, fsys.CreateNew(ctx, "a.md", "content"))
	require.NoError(t, fsys.Move(ctx, "a.md", "sub/b.md"))

	exists, _ := fsys.Exists(ctx, "a.md")
	require.False(t, exists)
	got, err := fsys.ReadText(ctx, "sub/b.md")
	require.NoError(t, err)
	require.Equal(t, "content", got)
}

func TestNativeFS_SyncWriteMarker(t *testing.T) {
	fsys := NewNativeFS(t.TempDir())
	require.False(t, fsys.IsSyncWrite("a.md"))
	fsys.MarkSyncWriteStart("a.md")
	fsys.MarkSyncWriteStart("a.md")
	require.True(t, fsys.IsSyncWrite("a.md"))
	fsys.MarkSyncWriteEnd("a.md")
	require.True(t, fsys.IsSyncWrite("a.md"))
	fsys.MarkSyncWriteEnd("a.md")
	require.False(t, fsys.IsSyncWrite("a.md"))
}

func TestNativeFS_ModifiedTimeMs(t *testing.T) {
	ctx := context.Background()
	fsys := NewNativeFS(t.TempDir())
	_, ok := fsys.ModifiedTimeMs(ctx, "missing.md")
	require.False(t, ok)

	require.NoError(t, fsys.CreateNew(ctx, "a.md", "x"))
	ms, ok := fsys.ModifiedTimeMs(ctx, "a.md")
	require.True(t, ok)
	require.Positive(t, ms)
}
