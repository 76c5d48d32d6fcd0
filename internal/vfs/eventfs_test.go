package vfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func collect(ev *EventFS) *[]Event {
	got := &[]Event{}
	ev.Subscribe(func(e Event) { *got = append(*got, e) })
	return got
}

func TestEventFS_CreateEmitsFileCreatedWithParent(t *testing.T) {
	ctx := context.Background()
	ev := NewEventFS(NewMemoryFS())
	events := collect(ev)

	require.NoError(t, ev.CreateNew(ctx, "a/child.md", "---\ntitle: Child\npart_of: index.md\n---\nbody\n"))

	require.Len(t, *events, 1)
	created, ok := (*events)[0].(FileCreated)
	require.True(t, ok)
	require.Equal(t, "a/child.md", created.Path)
	require.NotNil(t, created.ParentPath)
	require.Equal(t, "a/index.md", *created.ParentPath)
	require.NotNil(t, created.Frontmatter)
}

func TestEventFS_DeleteEmitsFileDeleted(t *testing.T) {
	ctx := context.Background()
	ev := NewEventFS(NewMemoryFS())
	require.NoError(t, ev.CreateNew(ctx, "a/child.md", "---\npart_of: index.md\n---\n"))
	events := collect(ev)

	require.NoError(t, ev.Delete(ctx, "a/child.md"))
	require.Len(t, *events, 1)
	deleted, ok := (*events)[0].(FileDeleted)
	require.True(t, ok)
	require.Equal(t, "a/child.md", deleted.Path)
	require.NotNil(t, deleted.ParentPath)
}

func TestEventFS_WriteTextEmitsMetadataAndContentsChanged(t *testing.T) {
	ctx := context.Background()
	ev := NewEventFS(NewMemoryFS())
	require.NoError(t, ev.CreateNew(ctx, "a.md", "---\ntitle: Old\n---\nold body\n"))
	events := collect(ev)

	require.NoError(t, ev.WriteText(ctx, "a.md", "---\ntitle: New\n---\nnew body\n"))

	var sawMeta, sawBody bool
	for _, e := range *events {
		switch v := e.(type) {
		case MetadataChanged:
			sawMeta = true
			require.Contains(t, v.Frontmatter, "New")
		case ContentsChanged:
			sawBody = true
			require.Equal(t, "new body\n", v.Body)
		}
	}
	require.True(t, sawMeta)
	require.True(t, sawBody)
}

func TestEventFS_WriteTextNoMetadataChangeWhenFrontmatterIdentical(t *testing.T) {
	ctx := context.Background()
	ev := NewEventFS(NewMemoryFS())
	require.NoError(t, ev.CreateNew(ctx, "a.md", "---\ntitle: Same\n---\nold body\n"))
	events := collect(ev)

	require.NoError(t, ev.WriteText(ctx, "a.md", "---\ntitle: Same\n---\nnew body\n"))

	for _, e := range *events {
		_, isMeta := e.(MetadataChanged)
		require.False(t, isMeta, "frontmatter did not change, should not emit MetadataChanged")
	}
}

func TestEventFS_MoveSameDirEmitsRenamed(t *testing.T) {
	ctx := context.Background()
	ev := NewEventFS(NewMemoryFS())
	require.NoError(t, ev.CreateNew(ctx, "a.md", "x"))
	events := collect(ev)

	require.NoError(t, ev.Move(ctx, "a.md", "b.md"))
	require.Len(t, *events, 1)
	renamed, ok := (*events)[0].(FileRenamed)
	require.True(t, ok)
	require.Equal(t, "a.md", renamed.OldPath)
	require.Equal(t, "b.md", renamed.NewPath)
}

func TestEventFS_MoveDifferentDirEmitsMoved(t *testing.T) {
	ctx := context.Background()
	ev := NewEventFS(NewMemoryFS())
	require.NoError(t, ev.CreateNew(ctx, "a/child.md", "---\npart_of: index.md\n---\n"))
	events := collect(ev)

	require.NoError(t, ev.Move(ctx, "a/child.md", "b/child.md"))
	require.Len(t, *events, 1)
	moved, ok := (*events)[0].(FileMoved)
	require.True(t, ok)
	require.NotNil(t, moved.OldParent)
	require.NotNil(t, moved.NewParent)
	require.Equal(t, "a/index.md", *moved.OldParent)
	require.Equal(t, "b/index.md", *moved.NewParent)
}

func TestCallbackRegistry_UnsubscribeStopsDelivery(t *testing.T) {
	reg := NewCallbackRegistry()
	var count int
	id := reg.Subscribe(func(Event) { count++ })
	reg.Emit(FileRenamed{OldPath: "a", NewPath: "b"})
	require.Equal(t, 1, count)

	require.True(t, reg.Unsubscribe(id))
	reg.Emit(FileRenamed{OldPath: "a", NewPath: "b"})
	require.Equal(t, 1, count)
	require.False(t, reg.Unsubscribe(id))
}

func TestCallbackRegistry_PanicIsolatesSubscriber(t *testing.T) {
	reg := NewCallbackRegistry()
	reg.Subscribe(func(Event) { panic("boom") })
	var ran bool
	reg.Subscribe(func(Event) { ran = true })

	require.NotPanics(t, func() {
		reg.Emit(FileRenamed{OldPath: "a", NewPath: "b"})
	})
	require.True(t, ran)
}
