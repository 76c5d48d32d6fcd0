package crdt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestWorkspaceCrdt_PutAndGet(t *testing.T) {
	w := NewWorkspaceCrdt("device-a")

	contents := []string{"b.md", "a.md"}
	id, updateID := w.Put("notes/index.md", FileMetadata{
		Title:    strPtr("Notes"),
		Contents: &contents,
	}, 1000)

	require.NotNil(t, updateID)
	require.Equal(t, int64(1), *updateID)

	gotID, meta, ok := w.Get("notes/index.md")
	require.True(t, ok)
	require.Equal(t, id, gotID)
	require.Equal(t, "Notes", *meta.Title)
	require.True(t, meta.IsIndex())
	require.Equal(t, []string{"b.md", "a.md"}, *meta.Contents)
}

func TestWorkspaceCrdt_PutIsIdempotent(t *testing.T) {
	w := NewWorkspaceCrdt("device-a")
	contents := []string{}
	w.Put("a.md", FileMetadata{Title: strPtr("A"), Contents: &contents}, 1)
	_, second := w.Put("a.md", FileMetadata{Title: strPtr("A"), Contents: &contents}, 1)
	require.Nil(t, second, "repeating an identical put must not produce a new update")
}

func TestWorkspaceCrdt_DeleteRemovesFromLivePaths(t *testing.T) {
	w := NewWorkspaceCrdt("device-a")
	w.Put("a.md", FileMetadata{}, 1)
	require.Contains(t, w.ListLivePaths(), "a.md")

	updateID := w.Delete("a.md")
	require.NotNil(t, updateID)
	require.NotContains(t, w.ListLivePaths(), "a.md")

	require.Nil(t, w.Delete("a.md"), "deleting an already-deleted path is a no-op")
}

func TestWorkspaceCrdt_RenamePreservesIdentity(t *testing.T) {
	w := NewWorkspaceCrdt("device-a")
	id, _ := w.Put("old.md", FileMetadata{Title: strPtr("T")}, 1)

	updateID := w.Rename("old.md", "new.md")
	require.NotNil(t, updateID)

	_, ok := w.Get("old.md")
	require.False(t, ok)

	gotID, meta, ok := w.Get("new.md")
	require.True(t, ok)
	require.Equal(t, id, gotID)
	require.Equal(t, "T", *meta.Title)
}

func TestWorkspaceCrdt_ReplicationConverges(t *testing.T) {
	a := NewWorkspaceCrdt("device-a")
	b := NewWorkspaceCrdt("device-b")

	contents := []string{"child.md"}
	a.Put("index.md", FileMetadata{Title: strPtr("Index"), Contents: &contents}, 1)
	a.Put("child.md", FileMetadata{Title: strPtr("Child"), PartOf: strPtr("index.md")}, 2)

	diff, err := a.EncodeDiff(b.EncodeStateVector())
	require.NoError(t, err)

	updateID, err := b.ApplyUpdate(diff)
	require.NoError(t, err)
	require.NotNil(t, updateID)

	_, meta, ok := b.Get("index.md")
	require.True(t, ok)
	require.Equal(t, "Index", *meta.Title)
	require.Equal(t, []string{"child.md"}, *meta.Contents)

	_, childMeta, ok := b.Get("child.md")
	require.True(t, ok)
	require.Equal(t, "index.md", *childMeta.PartOf)

	second, err := b.ApplyUpdate(diff)
	require.NoError(t, err)
	require.Nil(t, second, "replaying an already-applied update must be a no-op")
}

func TestWorkspaceCrdt_ConcurrentPutLastWriterWinsByClock(t *testing.T) {
	a := NewWorkspaceCrdt("device-a")
	b := NewWorkspaceCrdt("device-b")

	id, _ := a.Put("shared.md", FileMetadata{Title: strPtr("From A")}, 1)
	diff, _ := a.EncodeDiff(b.EncodeStateVector())
	b.ApplyUpdate(diff)

	b.Put("shared.md", FileMetadata{Title: strPtr("From B")}, 2)
	bDiff, _ := b.EncodeDiff(a.EncodeStateVector())
	a.ApplyUpdate(bDiff)

	_, meta, ok := a.Get("shared.md")
	require.True(t, ok)
	require.Equal(t, "From B", *meta.Title, "higher logical clock must win")

	gotID, _, _ := a.Get("shared.md")
	require.Equal(t, id, gotID)
}

func TestWorkspaceCrdt_ObserveNotifiesOnChange(t *testing.T) {
	w := NewWorkspaceCrdt("device-a")
	var notified []DocID
	obsID := w.Observe(func(id DocID) { notified = append(notified, id) })

	id, _ := w.Put("a.md", FileMetadata{}, 1)
	require.Contains(t, notified, id)

	w.Unobserve(obsID)
	notified = nil
	w.Put("b.md", FileMetadata{}, 1)
	require.Empty(t, notified)
}

func TestWorkspaceCrdt_EncodeStateAsUpdateCarriesFullHistory(t *testing.T) {
	a := NewWorkspaceCrdt("device-a")
	a.Put("a.md", FileMetadata{Title: strPtr("A")}, 1)
	a.Put("b.md", FileMetadata{Title: strPtr("B")}, 1)

	full, err := a.EncodeStateAsUpdate()
	require.NoError(t, err)

	b := NewWorkspaceCrdt("device-b")
	_, err = b.ApplyUpdate(full)
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"a.md", "b.md"}, b.ListLivePaths())
}
