package storage

import (
	"context"
	"testing"

	"github.com/diaryxhq/diaryx/internal/crdt"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage_SaveAndLoadDoc(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, s.SaveDoc(ctx, "workspace", []byte("state")))
	got, err := s.LoadDoc(ctx, "workspace")
	require.NoError(t, err)
	require.Equal(t, []byte("state"), got)

	missing, err := s.LoadDoc(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestMemoryStorage_DeleteDocRemovesUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	require.NoError(t, s.SaveDoc(ctx, "doc", []byte("x")))
	_, err := s.AppendUpdate(ctx, "doc", []byte("u1"), crdt.OriginLocal, nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.DeleteDoc(ctx, "doc"))

	got, _ := s.LoadDoc(ctx, "doc")
	require.Nil(t, got)
	ups, _ := s.GetAllUpdates(ctx, "doc")
	require.Empty(t, ups)
}

func TestMemoryStorage_AppendAndGetUpdatesSince(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	id1, err := s.AppendUpdate(ctx, "doc", []byte("u1"), crdt.OriginLocal, nil, nil)
	require.NoError(t, err)
	id2, err := s.AppendUpdate(ctx, "doc", []byte("u2"), crdt.OriginRemote, nil, nil)
	require.NoError(t, err)
	_, err = s.AppendUpdate(ctx, "doc", []byte("u3"), crdt.OriginSync, nil, nil)
	require.NoError(t, err)

	require.Less(t, id1, id2)

	all, err := s.GetAllUpdates(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, crdt.OriginLocal, all[0].Origin)

	since, err := s.GetUpdatesSince(ctx, "doc", id1)
	require.NoError(t, err)
	require.Len(t, since, 2)
}

func TestMemoryStorage_Compact(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	for i := 0; i < 10; i++ {
		_, err := s.AppendUpdate(ctx, "doc", []byte{byte(i)}, crdt.OriginLocal, nil, nil)
		require.NoError(t, err)
	}
	require.NoError(t, s.Compact(ctx, "doc", 3))
	remaining, err := s.GetAllUpdates(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, remaining, 3)
}

func TestMemoryStorage_ListDocsSorted(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	require.NoError(t, s.SaveDoc(ctx, "b", []byte("1")))
	require.NoError(t, s.SaveDoc(ctx, "a", []byte("2")))
	docs, err := s.ListDocs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, docs)
}

func TestMemoryStorage_RenameDoc(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	require.NoError(t, s.SaveDoc(ctx, "old", []byte("state")))
	_, err := s.AppendUpdate(ctx, "old", []byte("u"), crdt.OriginLocal, nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.RenameDoc(ctx, "old", "new"))

	got, err := s.LoadDoc(ctx, "new")
	require.NoError(t, err)
	require.Equal(t, []byte("state"), got)
	ups, _ := s.GetAllUpdates(ctx, "new")
	require.Len(t, ups, 1)
}

func TestMemoryStorage_GetLatestUpdateID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	id, err := s.GetLatestUpdateID(ctx, "doc")
	require.NoError(t, err)
	require.Zero(t, id)

	last, err := s.AppendUpdate(ctx, "doc", []byte("u"), crdt.OriginLocal, nil, nil)
	require.NoError(t, err)
	id, err = s.GetLatestUpdateID(ctx, "doc")
	require.NoError(t, err)
	require.Equal(t, last, id)
}
