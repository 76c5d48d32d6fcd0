package vfs

import (
	"context"
	"testing"

	"github.com/diaryxhq/diaryx/internal/direrr"
	"github.com/stretchr/testify/require"
)

func TestMemoryFS_CreateReadWriteDelete(t *testing.T) {
	ctx := context.Background()
	fsys := NewMemoryFS()

	require.NoError(t, fsys.CreateNew(ctx, "index.md", "root"))
	err := fsys.CreateNew(ctx, "index.md", "again")
	require.ErrorIs(t, err, direrr.ErrAlreadyExists)

	got, err := fsys.ReadText(ctx, "index.md")
	require.NoError(t, err)
	require.Equal(t, "root", got)

	require.NoError(t, fsys.WriteText(ctx, "index.md", "updated"))
	got, _ = fsys.ReadText(ctx, "index.md")
	require.Equal(t, "updated", got)

	require.NoError(t, fsys.Delete(ctx, "index.md"))
	_, err = fsys.ReadText(ctx, "index.md")
	require.Error(t, err)
}

func TestMemoryFS_ListingMatchesNativeSemantics(t *testing.T) {
	ctx := context.Background()
	fsys := NewMemoryFS()

	require.NoError(t, fsys.CreateNew(ctx, "a/index.md", "a"))
	require.NoError(t, fsys.CreateNew(ctx, "a/leaf.md", "leaf"))
	require.NoError(t, fsys.WriteBinary(ctx, "a/img.png", []byte{9}))

	md, err := fsys.ListMarkdown(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, []string{"a/index.md", "a/leaf.md"}, md)

	isDir, err := fsys.IsDir(ctx, "a")
	require.NoError(t, err)
	require.True(t, isDir)

	isDir, err = fsys.IsDir(ctx, "a/index.md")
	require.NoError(t, err)
	require.False(t, isDir)
}

func TestMemoryFS_Move(t *testing.T) {
	ctx := context.Background()
	fsys := NewMemoryFS()

	require.NoError(t, fsys.CreateNew(ctx, "a.md", "x"))
	require.NoError(t, fsys.Move(ctx, "a.md", "b/c.md"))

	exists, _ := fsys.Exists(ctx, "a.md")
	require.False(t, exists)
	got, err := fsys.ReadText(ctx, "b/c.md")
	require.NoError(t, err)
	require.Equal(t, "x", got)

	isDir, _ := fsys.IsDir(ctx, "b")
	require.True(t, isDir)
}

func TestMemoryFS_MoveOntoExistingFails(t *testing.T) {
	ctx := context.Background()
	fsys := NewMemoryFS()
	require.NoError(t, fsys.CreateNew(ctx, "a.md", "x"))
	require.NoError(t, fsys.CreateNew(ctx, "b.md", "y"))
	err := fsys.Move(ctx, "a.md", "b.md")
	require.ErrorIs(t, err, direrr.ErrAlreadyExists)
}
