// Package crdt implements the conflict-free workspace metadata document
// (spec §3/§4.5) and the per-file body document manager (spec §4.6).
//
// The original implementation builds these on yrs (the Rust port of Yjs);
// no Go binding for Yjs/yrs appears anywhere in the examples pack, so this
// package implements the merge algorithm directly against spec §4.5's
// stated rules: per-field last-writer-wins keyed by a Lamport clock, with
// an ordered-sequence merge for contents/attachments. See DESIGN.md for
// why this is the one part of the repo built on the standard library
// rather than a pack dependency.
package crdt

import "github.com/google/uuid"

// BinaryRef describes one attachment tracked by the workspace CRDT. Hash is
// a SHA-256 hex digest; Source is "local", "pending", or an external URL.
//
// Grounded on
// _examples/original_source/crates/diaryx_core/src/crdt/types.rs's
// BinaryRef.
type BinaryRef struct {
	Path       string
	Source     string
	Hash       string
	MimeType   string
	Size       uint64
	UploadedAt *int64
	Deleted    bool
}

// NewLocalBinaryRef builds a BinaryRef for a file already written to disk.
func NewLocalBinaryRef(path, hash, mimeType string, size uint64, uploadedAtMs int64) BinaryRef {
	return BinaryRef{Path: path, Source: "local", Hash: hash, MimeType: mimeType, Size: size, UploadedAt: &uploadedAtMs}
}

// NewPendingBinaryRef builds a BinaryRef for an attachment queued for
// upload but not yet hashed/stored remotely.
func NewPendingBinaryRef(path, mimeType string, size uint64) BinaryRef {
	return BinaryRef{Path: path, Source: "pending", MimeType: mimeType, Size: size}
}

// FileMetadata is the synchronized frontmatter state of one workspace file,
// keyed by DocID in WorkspaceCrdt.
//
// Grounded on the same types.rs's FileMetadata struct; Extra uses `any`
// instead of serde_json::Value since Go has no direct analog, decoded from
// the same YAML scalar/sequence shapes internal/frontmatter parses.
type FileMetadata struct {
	Title       *string
	PartOf      *string
	Contents    *[]string
	Attachments []BinaryRef
	Deleted     bool
	Audience    *[]string
	Description *string
	Extra       map[string]any
	ModifiedAt  int64
}

// IsIndex reports whether this file declares a (possibly empty) contents
// list.
func (m FileMetadata) IsIndex() bool {
	return m.Contents != nil
}

// DocID identifies one file's metadata entry in a WorkspaceCrdt. The
// original keys its Y.Map by workspace-relative path directly; this port
// uses a stable UUID per file instead so that RenameFile/MoveFile (which
// change the path but not the file's identity) don't require rewriting
// every other file's part_of/contents references that point at it by
// key — only the DocID's PathIndex entry moves. See DESIGN.md's Open
// Question decisions.
type DocID = uuid.UUID

// NewDocID generates a fresh random file identifier.
func NewDocID() DocID {
	return uuid.New()
}

// UpdateOrigin distinguishes why a CrdtUpdate was produced, for
// attribution in sync logs and for the self-echo suppression hierarchy
// facades use when replaying remote updates onto the filesystem.
type UpdateOrigin int

const (
	OriginLocal UpdateOrigin = iota
	OriginRemote
	OriginSync
)

func (o UpdateOrigin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginRemote:
		return "remote"
	case OriginSync:
		return "sync"
	default:
		return "unknown"
	}
}

// CrdtUpdate is one persisted increment of a named document's state,
// stored for history, compaction, and peer replay.
//
// Grounded on crdt/types.rs's CrdtUpdate.
type CrdtUpdate struct {
	UpdateID   int64
	DocName    string
	Data       []byte
	Timestamp  int64
	Origin     UpdateOrigin
	DeviceID   *string
	DeviceName *string
}
