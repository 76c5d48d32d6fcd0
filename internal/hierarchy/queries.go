package hierarchy

import (
	"context"
	"fmt"
	"strings"

	"github.com/diaryxhq/diaryx/internal/pathutil"
)

// FindAnyIndexInDir returns the path of the first markdown file directly
// inside dir that declares a contents list, preferring index.md if it
// qualifies.
func (h *Facade) FindAnyIndexInDir(ctx context.Context, dir string) (string, bool, error) {
	entries, err := h.fs.ListMarkdown(ctx, dir)
	if err != nil {
		return "", false, err
	}
	indexPath := pathutil.Join(dir, "index.md")
	if has(entries, indexPath) {
		if doc, err := h.read(ctx, indexPath); err == nil && doc.IsIndex() {
			return indexPath, true, nil
		}
	}
	for _, p := range entries {
		doc, err := h.read(ctx, p)
		if err != nil {
			continue
		}
		if doc.IsIndex() {
			return p, true, nil
		}
	}
	return "", false, nil
}

// FindRootIndexInDir returns the path of the index file in dir that has no
// part_of (spec's Root definition).
func (h *Facade) FindRootIndexInDir(ctx context.Context, dir string) (string, bool, error) {
	entries, err := h.fs.ListMarkdown(ctx, dir)
	if err != nil {
		return "", false, err
	}
	for _, p := range entries {
		doc, err := h.read(ctx, p)
		if err != nil {
			continue
		}
		if doc.IsRoot() {
			return p, true, nil
		}
	}
	return "", false, nil
}

// DetectWorkspace walks up from currentDir looking for a directory whose
// direct markdown files include an index, returning that directory.
func (h *Facade) DetectWorkspace(ctx context.Context, currentDir string) (string, bool, error) {
	dir := pathutil.Norm(currentDir)
	for {
		if _, found, err := h.FindAnyIndexInDir(ctx, dir); err != nil {
			return "", false, err
		} else if found {
			return dir, true, nil
		}
		if dir == "" {
			return "", false, nil
		}
		dir = pathutil.Dir(dir)
	}
}

// TreeNode is one entry of a tree built by BuildTree.
type TreeNode struct {
	Path     string
	Title    string
	Children []*TreeNode
}

// BuildTree walks the contents graph from root to maxDepth (negative means
// unlimited), skipping any path already present in visited to guard
// against a malformed (cyclic) graph that slipped past the facade's own
// cycle checks (e.g. a workspace edited outside this process).
func (h *Facade) BuildTree(ctx context.Context, root string, maxDepth int, visited map[string]bool) (*TreeNode, error) {
	if visited == nil {
		visited = make(map[string]bool)
	}
	return h.buildTreeNode(ctx, root, maxDepth, visited)
}

func (h *Facade) buildTreeNode(ctx context.Context, path string, depthRemaining int, visited map[string]bool) (*TreeNode, error) {
	key := pathutil.Norm(path)
	if visited[key] {
		return &TreeNode{Path: path, Title: pathutil.Base(path)}, nil
	}
	visited[key] = true

	doc, err := h.read(ctx, path)
	if err != nil {
		return nil, err
	}
	title := pathutil.Base(path)
	if doc.Title != nil {
		title = *doc.Title
	}
	node := &TreeNode{Path: path, Title: title}

	if !doc.IsIndex() || depthRemaining == 0 {
		return node, nil
	}

	dir := pathutil.Dir(path)
	for _, rel := range *doc.Contents {
		childPath := pathutil.Resolve(dir, rel)
		child, err := h.buildTreeNode(ctx, childPath, depthRemaining-1, visited)
		if err != nil {
			continue
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// CollectWorkspaceFiles returns every markdown file reachable from root's
// contents graph, in traversal order, root included.
func (h *Facade) CollectWorkspaceFiles(ctx context.Context, root string) ([]string, error) {
	visited := make(map[string]bool)
	var out []string
	var walk func(path string) error
	walk = func(path string) error {
		key := pathutil.Norm(path)
		if visited[key] {
			return nil
		}
		visited[key] = true
		out = append(out, path)

		doc, err := h.read(ctx, path)
		if err != nil {
			return err
		}
		if !doc.IsIndex() {
			return nil
		}
		dir := pathutil.Dir(path)
		for _, rel := range *doc.Contents {
			if err := walk(pathutil.Resolve(dir, rel)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return out, nil
}

// FormatTree renders a TreeNode as an indented outline, one title per
// line.
func FormatTree(node *TreeNode) string {
	var b strings.Builder
	formatTreeNode(&b, node, 0)
	return b.String()
}

func formatTreeNode(b *strings.Builder, node *TreeNode, depth int) {
	fmt.Fprintf(b, "%s- %s\n", strings.Repeat("  ", depth), node.Title)
	for _, child := range node.Children {
		formatTreeNode(b, child, depth+1)
	}
}

func has(entries []string, name string) bool {
	for _, e := range entries {
		if e == name {
			return true
		}
	}
	return false
}
