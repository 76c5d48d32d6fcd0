// Package hierarchy implements the workspace-level structural operations
// of spec §4.7: creating, deleting, moving, and combining index entries
// while keeping every file's part_of field and every index's contents
// list in agreement.
//
// Each operation reads and rewrites plain markdown files through a
// vfs.FileSystem; when that FileSystem is (as intended) a crdtfs.FS, the
// CRDT-decorator layer underneath folds every write into the workspace
// CRDT as a side effect, so the facade itself never touches
// crdt.WorkspaceCrdt directly — it only has to get the filesystem
// invariants right.
//
// Grounded on
// _examples/original_source/crates/diaryx_core/src/path_utils.rs for the
// relative-path math (internal/pathutil) and on
// _examples/original_source/crates/diaryx_core/src/fs/mod.rs's FileSystem
// trait for the operation surface the facade composes; the operation list
// itself (create_child/delete_entry/move_entry/combine_indices/...) has no
// single literal counterpart in the retrieved sources (the CLI's
// entry.rs/nav/ commands implement pieces of this ad hoc) and is built
// directly from spec §4.7.
package hierarchy

import (
	"context"
	"fmt"

	"github.com/diaryxhq/diaryx/internal/direrr"
	"github.com/diaryxhq/diaryx/internal/frontmatter"
	"github.com/diaryxhq/diaryx/internal/pathutil"
	"github.com/diaryxhq/diaryx/internal/vfs"
)

// Facade exposes the atomic workspace-structure operations of spec §4.7
// over fs.
type Facade struct {
	fs vfs.FileSystem
}

// New wraps fs (typically a *crdtfs.FS, so structural writes also update
// the workspace CRDT) with the hierarchy operations.
func New(fs vfs.FileSystem) *Facade {
	return &Facade{fs: fs}
}

func (h *Facade) read(ctx context.Context, path string) (*frontmatter.Document, error) {
	raw, err := h.fs.ReadText(ctx, path)
	if err != nil {
		return nil, direrr.New(direrr.KindIO, path, err)
	}
	doc, err := frontmatter.Parse(raw)
	if err != nil {
		return nil, direrr.New(direrr.KindFormat, path, err)
	}
	return doc, nil
}

func (h *Facade) write(ctx context.Context, path string, doc *frontmatter.Document) error {
	content, err := frontmatter.Render(doc)
	if err != nil {
		return direrr.New(direrr.KindFormat, path, err)
	}
	if err := h.fs.WriteText(ctx, path, content); err != nil {
		return direrr.New(direrr.KindIO, path, err)
	}
	return nil
}

// CreateChild creates a new file under parentPath, titled title, and
// appends its relative path to the parent's contents list (spec §4.7).
// A parentPath that is not yet an index becomes one: it gains a contents
// list holding the new entry.
func (h *Facade) CreateChild(ctx context.Context, parentPath, title string) (string, error) {
	parent, err := h.read(ctx, parentPath)
	if err != nil {
		return "", err
	}
	if !parent.IsIndex() {
		contents := []string{}
		parent.Contents = &contents
	}

	slug := slugify(title)
	if slug == "" {
		return "", direrr.Newf(direrr.KindHierarchy, parentPath, "title %q produces an empty slug", title)
	}

	dir := pathutil.Dir(parentPath)
	newPath := pathutil.Join(dir, slug+".md")
	if exists, _ := h.fs.Exists(ctx, newPath); exists {
		return "", direrr.New(direrr.KindHierarchy, newPath, direrr.ErrAlreadyExists)
	}

	partOf := pathutil.RelativeToFile(newPath, parentPath)
	childDoc := &frontmatter.Document{Title: &title, PartOf: &partOf}
	if err := h.write(ctx, newPath, childDoc); err != nil {
		return "", err
	}

	rel := pathutil.RelativeToFile(parentPath, newPath)
	if err := h.appendContent(ctx, parentPath, parent, rel); err != nil {
		return "", err
	}
	return newPath, nil
}

// DeleteEntry removes path's own file, clears part_of on every child that
// pointed at it, and removes its entry from its parent's contents.
func (h *Facade) DeleteEntry(ctx context.Context, path string) error {
	doc, err := h.read(ctx, path)
	if err != nil {
		return err
	}

	if doc.IsIndex() {
		dir := pathutil.Dir(path)
		for _, rel := range *doc.Contents {
			childPath := pathutil.Resolve(dir, rel)
			if err := h.clearPartOf(ctx, childPath); err != nil {
				return err
			}
		}
	}

	if doc.PartOf != nil {
		parentPath := pathutil.Resolve(pathutil.Dir(path), *doc.PartOf)
		if err := h.removeContentEntry(ctx, parentPath, path); err != nil {
			return err
		}
	}

	if err := h.fs.Delete(ctx, path); err != nil {
		return direrr.New(direrr.KindIO, path, err)
	}
	return nil
}

// MoveEntry renames source to destination, rewriting source's own part_of,
// its parent's contents entry, and the part_of of each of its children so
// every relative path stays correct from its new location.
func (h *Facade) MoveEntry(ctx context.Context, source, destination string) error {
	if pathutil.Equal(source, destination) {
		return nil
	}
	if exists, _ := h.fs.Exists(ctx, destination); exists {
		return direrr.New(direrr.KindHierarchy, destination, direrr.ErrAlreadyExists)
	}

	doc, err := h.read(ctx, source)
	if err != nil {
		return err
	}

	var parentAbs string
	hadParent := doc.PartOf != nil
	if hadParent {
		parentAbs = pathutil.Resolve(pathutil.Dir(source), *doc.PartOf)
	}

	var children []string
	if doc.IsIndex() {
		sourceDir := pathutil.Dir(source)
		for _, rel := range *doc.Contents {
			children = append(children, pathutil.Resolve(sourceDir, rel))
		}
	}

	if err := h.fs.Move(ctx, source, destination); err != nil {
		return direrr.New(direrr.KindIO, destination, err)
	}

	if doc.IsIndex() {
		contents := make([]string, 0, len(children))
		for _, childPath := range children {
			contents = append(contents, pathutil.RelativeToFile(destination, childPath))
		}
		doc.Contents = &contents
	}
	if hadParent {
		newPartOf := pathutil.RelativeToFile(destination, parentAbs)
		doc.PartOf = &newPartOf
	}
	if hadParent || doc.IsIndex() {
		if err := h.write(ctx, destination, doc); err != nil {
			return err
		}
	}
	if hadParent {
		if err := h.renameContentEntry(ctx, parentAbs, source, destination); err != nil {
			return err
		}
	}

	for _, childPath := range children {
		if err := h.setPartOf(ctx, childPath, destination); err != nil {
			return err
		}
	}
	return nil
}

// CombineIndices appends source's contents to target's, rewrites every
// source child's part_of to target, and deletes source. A target that is
// not yet an index becomes one.
func (h *Facade) CombineIndices(ctx context.Context, source, target string) error {
	sourceDoc, err := h.read(ctx, source)
	if err != nil {
		return err
	}
	if !sourceDoc.IsIndex() {
		return direrr.Newf(direrr.KindHierarchy, source, "not an index")
	}
	targetDoc, err := h.read(ctx, target)
	if err != nil {
		return err
	}
	if !targetDoc.IsIndex() {
		contents := []string{}
		targetDoc.Contents = &contents
	}

	sourceDir := pathutil.Dir(source)
	for _, rel := range *sourceDoc.Contents {
		childPath := pathutil.Resolve(sourceDir, rel)
		if err := h.setPartOf(ctx, childPath, target); err != nil {
			return err
		}
		entry := pathutil.RelativeToFile(target, childPath)
		targetDoc.Contents = appendUnique(*targetDoc.Contents, entry)
	}
	if err := h.write(ctx, target, targetDoc); err != nil {
		return err
	}

	if sourceDoc.PartOf != nil {
		parentAbs := pathutil.Resolve(sourceDir, *sourceDoc.PartOf)
		if err := h.removeContentEntry(ctx, parentAbs, source); err != nil {
			return err
		}
	}
	if err := h.fs.Delete(ctx, source); err != nil {
		return direrr.New(direrr.KindIO, source, err)
	}
	return nil
}

// AddChild links an existing file as a child of parent: sets child's
// part_of and appends child to parent's contents. Rejects a link that
// would create a part_of cycle.
func (h *Facade) AddChild(ctx context.Context, parentPath, childPath string) error {
	if pathutil.Equal(parentPath, childPath) {
		return direrr.New(direrr.KindHierarchy, childPath, direrr.ErrCycle)
	}
	if cycle, err := h.wouldCycle(ctx, parentPath, childPath); err != nil {
		return err
	} else if cycle {
		return direrr.New(direrr.KindHierarchy, childPath, direrr.ErrCycle)
	}

	parentDoc, err := h.read(ctx, parentPath)
	if err != nil {
		return err
	}
	if !parentDoc.IsIndex() {
		return direrr.Newf(direrr.KindHierarchy, parentPath, "not an index")
	}
	if err := h.setPartOf(ctx, childPath, parentPath); err != nil {
		return err
	}
	return h.appendContent(ctx, parentPath, parentDoc, pathutil.RelativeToFile(parentPath, childPath))
}

// RemoveChild clears child's part_of and removes it from parent's
// contents, without deleting either file.
func (h *Facade) RemoveChild(ctx context.Context, parentPath, childPath string) error {
	if err := h.clearPartOf(ctx, childPath); err != nil {
		return err
	}
	return h.removeContentEntry(ctx, parentPath, childPath)
}

// DuplicateEntry copies path to a sibling file named "<stem>_copy.md" (or
// "<stem>_copy_2.md", etc., until a free name is found), registering the
// copy in the same parent's contents if path has one.
func (h *Facade) DuplicateEntry(ctx context.Context, path string) (string, error) {
	doc, err := h.read(ctx, path)
	if err != nil {
		return "", err
	}
	dir := pathutil.Dir(path)
	stem := trimMdExt(pathutil.Base(path))

	var newPath string
	for i := 1; ; i++ {
		suffix := "_copy"
		if i > 1 {
			suffix = fmt.Sprintf("_copy_%d", i)
		}
		candidate := pathutil.Join(dir, stem+suffix+".md")
		if exists, _ := h.fs.Exists(ctx, candidate); !exists {
			newPath = candidate
			break
		}
	}

	copyDoc := *doc
	if err := h.write(ctx, newPath, &copyDoc); err != nil {
		return "", err
	}

	if doc.PartOf != nil {
		parentAbs := pathutil.Resolve(dir, *doc.PartOf)
		parentDoc, err := h.read(ctx, parentAbs)
		if err == nil && parentDoc.IsIndex() {
			if err := h.appendContent(ctx, parentAbs, parentDoc, pathutil.RelativeToFile(parentAbs, newPath)); err != nil {
				return "", err
			}
		}
	}
	return newPath, nil
}

// InitWorkspace creates a root index file at dir/index.md with no
// part_of and an empty contents list.
func (h *Facade) InitWorkspace(ctx context.Context, dir string, title, description *string) (string, error) {
	path := pathutil.Join(dir, "index.md")
	if exists, _ := h.fs.Exists(ctx, path); exists {
		return "", direrr.New(direrr.KindHierarchy, path, direrr.ErrAlreadyExists)
	}
	contents := []string{}
	doc := &frontmatter.Document{Title: title, Description: description, Contents: &contents}
	if err := h.write(ctx, path, doc); err != nil {
		return "", err
	}
	return path, nil
}
