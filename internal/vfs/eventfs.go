package vfs

import (
	"context"

	"github.com/diaryxhq/diaryx/internal/frontmatter"
	"github.com/diaryxhq/diaryx/internal/pathutil"
)

// EventFS wraps a FileSystem and emits a typed Event after every successful
// mutation, through an embedded CallbackRegistry. It is the innermost
// decorator in the stack; internal/crdtfs wraps an EventFS in turn so that
// CRDT updates and filesystem events observe the same operations in the
// same order (spec §4.2).
//
// Grounded on
// _examples/original_source/crates/diaryx_core/src/fs/event_fs.rs's
// EventEmittingFs<FS>, which performs the inner operation first and only
// emits once it succeeds.
type EventFS struct {
	FileSystem
	*CallbackRegistry
}

// NewEventFS wraps inner with a fresh, empty CallbackRegistry.
func NewEventFS(inner FileSystem) *EventFS {
	return &EventFS{FileSystem: inner, CallbackRegistry: NewCallbackRegistry()}
}

var _ SyncWriteMarker = (*EventFS)(nil)

func (e *EventFS) CreateNew(ctx context.Context, path, content string) error {
	if err := e.FileSystem.CreateNew(ctx, path, content); err != nil {
		return err
	}
	e.Emit(FileCreated{
		Path:        path,
		Frontmatter: frontmatterBlock(content),
		ParentPath:  resolvedParent(path, content),
	})
	return nil
}

func (e *EventFS) Delete(ctx context.Context, path string) error {
	prevParent := e.tryResolveParent(ctx, path)
	if err := e.FileSystem.Delete(ctx, path); err != nil {
		return err
	}
	e.Emit(FileDeleted{Path: path, ParentPath: prevParent})
	return nil
}

func (e *EventFS) WriteText(ctx context.Context, path, content string) error {
	before, hadBefore := e.tryReadText(ctx, path)

	if err := e.FileSystem.WriteText(ctx, path, content); err != nil {
		return err
	}

	beforeDoc, afterDoc := parseOrNil(before, hadBefore), parseOrNil(content, true)
	if !hadBefore || !sameFrontmatterBlock(before, content) {
		if fm := frontmatterBlock(content); fm != nil {
			e.Emit(MetadataChanged{Path: path, Frontmatter: *fm})
		}
	}
	if afterDoc != nil && (!hadBefore || beforeDoc == nil || beforeDoc.Body != afterDoc.Body) {
		e.Emit(ContentsChanged{Path: path, Body: afterDoc.Body})
	}
	return nil
}

func (e *EventFS) Move(ctx context.Context, from, to string) error {
	content, _ := e.tryReadText(ctx, from)

	if err := e.FileSystem.Move(ctx, from, to); err != nil {
		return err
	}

	fromDir, toDir := pathutil.Dir(from), pathutil.Dir(to)
	if fromDir == toDir {
		e.Emit(FileRenamed{OldPath: from, NewPath: to})
		return nil
	}

	doc, err := frontmatter.Parse(content)
	var oldParent, newParent *string
	if err == nil && doc.PartOf != nil {
		op := pathutil.Resolve(fromDir, *doc.PartOf)
		np := pathutil.Resolve(toDir, *doc.PartOf)
		oldParent, newParent = &op, &np
	}
	e.Emit(FileMoved{Path: to, OldParent: oldParent, NewParent: newParent})
	return nil
}

// MarkSyncWriteStart, MarkSyncWriteEnd, and IsSyncWrite forward to the
// wrapped FileSystem if it implements SyncWriteMarker. Embedding the
// FileSystem interface only promotes the interface's own method set, not
// extra methods the concrete type underneath happens to have, so these
// must be declared explicitly for crdtfs (which wraps an EventFS) to see
// through to the marker a NativeFS/MemoryFS implements.
func (e *EventFS) MarkSyncWriteStart(path string) {
	if m, ok := e.FileSystem.(SyncWriteMarker); ok {
		m.MarkSyncWriteStart(path)
	}
}

func (e *EventFS) MarkSyncWriteEnd(path string) {
	if m, ok := e.FileSystem.(SyncWriteMarker); ok {
		m.MarkSyncWriteEnd(path)
	}
}

func (e *EventFS) IsSyncWrite(path string) bool {
	m, ok := e.FileSystem.(SyncWriteMarker)
	return ok && m.IsSyncWrite(path)
}

func (e *EventFS) tryReadText(ctx context.Context, path string) (string, bool) {
	content, err := e.FileSystem.ReadText(ctx, path)
	if err != nil {
		return "", false
	}
	return content, true
}

func (e *EventFS) tryResolveParent(ctx context.Context, path string) *string {
	content, ok := e.tryReadText(ctx, path)
	if !ok {
		return nil
	}
	return resolvedParent(path, content)
}

func frontmatterBlock(content string) *string {
	doc, err := frontmatter.Parse(content)
	if err != nil || !hasFrontmatter(doc) {
		return nil
	}
	block := strip{doc}.render()
	if block == "" {
		return nil
	}
	return &block
}

func hasFrontmatter(doc *frontmatter.Document) bool {
	return doc.Title != nil || doc.Description != nil || doc.PartOf != nil ||
		doc.Contents != nil || doc.Audience != nil || doc.Attachments != nil || len(doc.Extra) > 0
}

// strip renders only the frontmatter block of a document (no body), for
// inclusion in FileCreated/MetadataChanged events.
type strip struct{ doc *frontmatter.Document }

func (s strip) render() string {
	cp := *s.doc
	cp.Body = ""
	out, err := frontmatter.Render(&cp)
	if err != nil {
		return ""
	}
	return out
}

func resolvedParent(path, content string) *string {
	doc, err := frontmatter.Parse(content)
	if err != nil || doc.PartOf == nil {
		return nil
	}
	resolved := pathutil.Resolve(pathutil.Dir(path), *doc.PartOf)
	return &resolved
}

func parseOrNil(content string, ok bool) *frontmatter.Document {
	if !ok {
		return nil
	}
	doc, err := frontmatter.Parse(content)
	if err != nil {
		return nil
	}
	return doc
}

func sameFrontmatterBlock(a, b string) bool {
	da, erra := frontmatter.Parse(a)
	db, errb := frontmatter.Parse(b)
	if erra != nil || errb != nil {
		return false
	}
	return strip{da}.render() == strip{db}.render()
}
