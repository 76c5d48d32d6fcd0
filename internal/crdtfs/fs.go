// Package crdtfs implements the CRDT-intercepting filesystem decorator
// (spec §4.3): it sits outermost of the vfs decorator stack, delegating
// every write to the filesystem underneath it and then parsing the written
// content into frontmatter/body and folding the result into a
// crdt.WorkspaceCrdt and crdt.BodyDocManager.
//
// Grounded on
// _examples/original_source/crates/diaryx_core/src/fs/crdt_fs.rs for the
// operation-by-operation behavior, and on internal/vfs/eventfs.go for the
// decorator shape (embed the wrapped FileSystem, override the mutating
// methods).
package crdtfs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/diaryxhq/diaryx/internal/crdt"
	"github.com/diaryxhq/diaryx/internal/frontmatter"
	"github.com/diaryxhq/diaryx/internal/pathutil"
	"github.com/diaryxhq/diaryx/internal/vfs"
)

// FS wraps a FileSystem plus a (WorkspaceCrdt, BodyDocManager) pair. It
// implements vfs.FileSystem itself, so it composes into further decorators
// (or sits directly above a vfs.EventFS) the same way EventFS does.
type FS struct {
	vfs.FileSystem

	Workspace *crdt.WorkspaceCrdt
	Bodies    *crdt.BodyDocManager

	// Enabled toggles interception off entirely (spec §4.3's pass-through
	// mode), used when replaying a full cloud-sync restore where every
	// file already carries correct CRDT state and re-deriving it from
	// scratch would be wasted work.
	Enabled bool
}

// New wraps inner with CRDT interception against workspace/bodies, enabled
// by default.
func New(inner vfs.FileSystem, workspace *crdt.WorkspaceCrdt, bodies *crdt.BodyDocManager) *FS {
	return &FS{FileSystem: inner, Workspace: workspace, Bodies: bodies, Enabled: true}
}

func (f *FS) passthroughWrite(path string) bool {
	if !f.Enabled {
		return true
	}
	marker, ok := f.FileSystem.(vfs.SyncWriteMarker)
	return ok && marker.IsSyncWrite(path)
}

func (f *FS) CreateNew(ctx context.Context, path, content string) error {
	if err := f.FileSystem.CreateNew(ctx, path, content); err != nil {
		return err
	}
	if f.passthroughWrite(path) {
		return nil
	}
	return f.ingest(ctx, path, content)
}

func (f *FS) WriteText(ctx context.Context, path, content string) error {
	if err := f.FileSystem.WriteText(ctx, path, content); err != nil {
		return err
	}
	if f.passthroughWrite(path) {
		return nil
	}
	return f.ingest(ctx, path, content)
}

// ingest parses content and folds it into the WorkspaceCrdt/BodyDocManager,
// allocating a DocID on first write. WorkspaceCrdt.Put and BodyDoc.Set are
// both internally idempotent, so an unchanged frontmatter or body produces
// no update record, matching spec §4.3's "skip if unchanged" rule without
// this decorator needing to diff anything itself.
func (f *FS) ingest(ctx context.Context, path, content string) error {
	doc, err := frontmatter.Parse(content)
	if err != nil {
		return fmt.Errorf("crdtfs: parse %s: %w", path, err)
	}

	metadata := crdt.FileMetadata{
		Title: doc.Title, Description: doc.Description, PartOf: doc.PartOf,
		Audience: doc.Audience, Attachments: f.enrichAttachments(ctx, pathutil.Dir(path), doc.Attachments),
		ModifiedAt: nowMs(),
	}
	if doc.Contents != nil {
		contents := append([]string(nil), *doc.Contents...)
		metadata.Contents = &contents
	}

	id, _ := f.Workspace.Put(path, metadata, nowMs())
	if _, err := f.Bodies.Set(id, doc.Body); err != nil {
		return fmt.Errorf("crdtfs: set body %s: %w", path, err)
	}
	return nil
}

func (f *FS) Delete(ctx context.Context, path string) error {
	id, _, existed := f.Workspace.Get(path)
	if err := f.FileSystem.Delete(ctx, path); err != nil {
		return err
	}
	if f.passthroughWrite(path) || !existed {
		return nil
	}
	f.Workspace.Delete(path)
	f.Bodies.Delete(id)
	return nil
}

// Move renames path in the WorkspaceCrdt and rewrites the moved file's own
// part_of to stay relative to its (unmoved) parent, per spec §4.3. It does
// not touch the parent's contents entry or any child's part_of — that is
// the hierarchy facade's job (spec §4.7).
func (f *FS) Move(ctx context.Context, from, to string) error {
	_, meta, existed := f.Workspace.Get(from)
	if err := f.FileSystem.Move(ctx, from, to); err != nil {
		return err
	}
	if f.passthroughWrite(from) || !existed {
		return nil
	}

	f.Workspace.Rename(from, to)
	if meta.PartOf == nil {
		return nil
	}
	parentAbs := pathutil.Resolve(pathutil.Dir(from), *meta.PartOf)
	newPartOf := pathutil.RelativeToFile(to, parentAbs)
	meta.PartOf = &newPartOf
	f.Workspace.Put(to, meta, nowMs())
	return nil
}

// enrichAttachments turns the bare workspace-relative attachment paths a
// frontmatter block declares into crdt.BinaryRef records, hashing and
// sniffing each attachment's content where it can be read. Hashing and MIME
// sniffing are small boundary utilities with no dedicated library anywhere
// in the examples pack (the teacher's internal/blob client talks to S3
// object storage, not local content hashing) so they're implemented
// directly against the standard library; see DESIGN.md. dir resolves
// attachment entries recorded relative to the owning file's directory.
func (f *FS) enrichAttachments(ctx context.Context, dir string, paths *[]string) []crdt.BinaryRef {
	if paths == nil {
		return nil
	}
	out := make([]crdt.BinaryRef, 0, len(*paths))
	for _, p := range *paths {
		ref := crdt.BinaryRef{Path: p, Source: "local"}
		if data, err := f.FileSystem.ReadBinary(ctx, pathutil.Join(dir, p)); err == nil {
			ref.Hash = hashContent(data)
			ref.MimeType = sniffMime(data)
			ref.Size = uint64(len(data))
			uploadedAt := nowMs()
			ref.UploadedAt = &uploadedAt
		}
		out = append(out, ref)
	}
	return out
}

// hashContent returns the lowercase hex SHA-256 digest used for BinaryRef.Hash.
func hashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// sniffMime detects a best-effort MIME type from a binary's leading bytes.
func sniffMime(data []byte) string {
	n := len(data)
	if n > 512 {
		n = 512
	}
	return http.DetectContentType(data[:n])
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
