package hierarchy

import (
	"context"
	"strings"

	"github.com/diaryxhq/diaryx/internal/direrr"
	"github.com/diaryxhq/diaryx/internal/frontmatter"
	"github.com/diaryxhq/diaryx/internal/pathutil"
)

// appendContent appends rel to parentDoc's contents (read already, to
// avoid a redundant read in callers that just validated it's an index)
// and writes parentPath back out, rejecting duplicates (spec §4.7
// invariant 3). It does not check for self-references; AddChild rejects a
// parent that equals its child before calling it.
func (h *Facade) appendContent(ctx context.Context, parentPath string, parentDoc *frontmatter.Document, rel string) error {
	for _, existing := range *parentDoc.Contents {
		if existing == rel {
			return direrr.New(direrr.KindHierarchy, parentPath, direrr.ErrDuplicateEdge)
		}
	}
	updated := append(*parentDoc.Contents, rel)
	parentDoc.Contents = &updated
	return h.write(ctx, parentPath, parentDoc)
}

// removeContentEntry removes childPath's entry from parentPath's contents,
// if present. A no-op if parentPath isn't an index or doesn't reference
// childPath.
func (h *Facade) removeContentEntry(ctx context.Context, parentPath, childPath string) error {
	parentDoc, err := h.read(ctx, parentPath)
	if err != nil {
		return err
	}
	if !parentDoc.IsIndex() {
		return nil
	}
	rel := pathutil.RelativeToFile(parentPath, childPath)
	out := make([]string, 0, len(*parentDoc.Contents))
	for _, existing := range *parentDoc.Contents {
		if existing != rel {
			out = append(out, existing)
		}
	}
	parentDoc.Contents = &out
	return h.write(ctx, parentPath, parentDoc)
}

// renameContentEntry rewrites parentPath's contents entry for a file that
// moved from oldChildPath to newChildPath, preserving its position.
func (h *Facade) renameContentEntry(ctx context.Context, parentPath, oldChildPath, newChildPath string) error {
	parentDoc, err := h.read(ctx, parentPath)
	if err != nil {
		return err
	}
	if !parentDoc.IsIndex() {
		return nil
	}
	oldRel := pathutil.RelativeToFile(parentPath, oldChildPath)
	newRel := pathutil.RelativeToFile(parentPath, newChildPath)
	out := make([]string, len(*parentDoc.Contents))
	for i, existing := range *parentDoc.Contents {
		if existing == oldRel {
			out[i] = newRel
		} else {
			out[i] = existing
		}
	}
	parentDoc.Contents = &out
	return h.write(ctx, parentPath, parentDoc)
}

// setPartOf rewrites childPath's part_of to point at parentPath, relative
// to childPath's own directory.
func (h *Facade) setPartOf(ctx context.Context, childPath, parentPath string) error {
	childDoc, err := h.read(ctx, childPath)
	if err != nil {
		return err
	}
	rel := pathutil.RelativeToFile(childPath, parentPath)
	childDoc.PartOf = &rel
	return h.write(ctx, childPath, childDoc)
}

// clearPartOf removes childPath's part_of field entirely.
func (h *Facade) clearPartOf(ctx context.Context, childPath string) error {
	childDoc, err := h.read(ctx, childPath)
	if err != nil {
		return err
	}
	childDoc.PartOf = nil
	return h.write(ctx, childPath, childDoc)
}

// wouldCycle reports whether linking childPath under parentPath would
// create a cycle in the part_of graph: true iff parentPath is already a
// (transitive) descendant of childPath, i.e. reachable by following
// part_of from parentPath up to childPath... equivalently, walking up from
// parentPath via part_of ever reaches childPath.
func (h *Facade) wouldCycle(ctx context.Context, parentPath, childPath string) (bool, error) {
	current := parentPath
	seen := map[string]bool{}
	for {
		if pathutil.Equal(current, childPath) {
			return true, nil
		}
		if seen[pathutil.Norm(current)] {
			// Already-malformed graph; don't loop forever, let the
			// caller's own write surface the problem instead.
			return false, nil
		}
		seen[pathutil.Norm(current)] = true

		doc, err := h.read(ctx, current)
		if err != nil {
			return false, err
		}
		if doc.PartOf == nil {
			return false, nil
		}
		current = pathutil.Resolve(pathutil.Dir(current), *doc.PartOf)
	}
}

func appendUnique(existing []string, rel string) *[]string {
	for _, e := range existing {
		if e == rel {
			out := append([]string(nil), existing...)
			return &out
		}
	}
	out := append(append([]string(nil), existing...), rel)
	return &out
}

func trimMdExt(base string) string {
	return strings.TrimSuffix(base, ".md")
}
