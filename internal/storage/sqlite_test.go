package storage

import (
	"context"
	"testing"

	"github.com/diaryxhq/diaryx/internal/crdt"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *SqliteStorage {
	t.Helper()
	db, err := NewSqliteDB(WithPath(":memory:"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSqliteStorage(db)
}

func TestSqliteStorage_SaveAndLoadDoc(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)

	require.NoError(t, s.SaveDoc(ctx, "workspace", []byte("state-v1")))
	got, err := s.LoadDoc(ctx, "workspace")
	require.NoError(t, err)
	require.Equal(t, []byte("state-v1"), got)

	require.NoError(t, s.SaveDoc(ctx, "workspace", []byte("state-v2")))
	got, err = s.LoadDoc(ctx, "workspace")
	require.NoError(t, err)
	require.Equal(t, []byte("state-v2"), got)
}

func TestSqliteStorage_AppendAndGetUpdatesSince(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)

	dev := "device-a"
	id1, err := s.AppendUpdate(ctx, "doc", []byte("u1"), crdt.OriginLocal, &dev, nil)
	require.NoError(t, err)
	_, err = s.AppendUpdate(ctx, "doc", []byte("u2"), crdt.OriginRemote, nil, nil)
	require.NoError(t, err)

	since, err := s.GetUpdatesSince(ctx, "doc", id1)
	require.NoError(t, err)
	require.Len(t, since, 1)
	require.Equal(t, crdt.OriginRemote, since[0].Origin)

	latest, err := s.GetLatestUpdateID(ctx, "doc")
	require.NoError(t, err)
	require.Greater(t, latest, id1)
}

func TestSqliteStorage_DeleteDoc(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)
	require.NoError(t, s.SaveDoc(ctx, "doc", []byte("x")))
	_, err := s.AppendUpdate(ctx, "doc", []byte("u"), crdt.OriginLocal, nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.DeleteDoc(ctx, "doc"))

	got, err := s.LoadDoc(ctx, "doc")
	require.NoError(t, err)
	require.Nil(t, got)
	ups, err := s.GetAllUpdates(ctx, "doc")
	require.NoError(t, err)
	require.Empty(t, ups)
}

func TestSqliteStorage_CompactKeepsLastN(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)
	for i := 0; i < 5; i++ {
		_, err := s.AppendUpdate(ctx, "doc", []byte{byte(i)}, crdt.OriginLocal, nil, nil)
		require.NoError(t, err)
	}
	require.NoError(t, s.Compact(ctx, "doc", 2))
	remaining, err := s.GetAllUpdates(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, remaining, 2)
}

func TestSqliteStorage_RenameDoc(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)
	require.NoError(t, s.SaveDoc(ctx, "old", []byte("state")))

	require.NoError(t, s.RenameDoc(ctx, "old", "new"))

	got, err := s.LoadDoc(ctx, "new")
	require.NoError(t, err)
	require.Equal(t, []byte("state"), got)
}

func TestSqliteStorage_ListDocs(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)
	require.NoError(t, s.SaveDoc(ctx, "b", []byte("1")))
	require.NoError(t, s.SaveDoc(ctx, "a", []byte("2")))
	docs, err := s.ListDocs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, docs)
}
