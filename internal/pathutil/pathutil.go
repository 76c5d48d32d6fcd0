// Package pathutil implements the workspace-relative path math used by
// the hierarchy facade: every stored path (part_of, contents entries) is
// directory-relative and slash-separated regardless of host OS, per
// spec §4.7 and §9.
//
// Grounded on internal/client/workspace/workspace.go's NormPath /
// DatasiteRelPath, generalized from a single datasites/ root to the
// hierarchy facade's arbitrary from-file/to-file pairs.
package pathutil

import (
	"path"
	"strings"
)

// Norm rewrites p to use forward slashes, collapses "." and ".." where
// possible, and strips a leading slash (paths here are always workspace
// relative, never absolute).
func Norm(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// Dir returns the slash-separated directory component of a workspace
// relative path, "" for a top-level file.
func Dir(p string) string {
	d := path.Dir(Norm(p))
	if d == "." {
		return ""
	}
	return d
}

// Base returns the final path component.
func Base(p string) string {
	return path.Base(Norm(p))
}

// Join joins a directory and a relative path the way path.Join does, then
// normalizes the result.
func Join(dir, rel string) string {
	return Norm(path.Join(dir, rel))
}

// Resolve resolves `rel` (as found in a file's part_of/contents field)
// against the directory containing the file that referenced it.
func Resolve(fromDir, rel string) string {
	return Join(fromDir, rel)
}

// RelativeTo computes the minimal slash-separated path from fromDir to
// toPath: ascend with ".." to the nearest common ancestor, then descend.
// When fromDir and toPath share a directory, the result is just toPath's
// basename, matching spec §4.7's relative-path rule.
func RelativeTo(fromDir, toPath string) string {
	fromDir = Norm(fromDir)
	toPath = Norm(toPath)

	fromParts := splitNonEmpty(fromDir)
	toDir := Dir(toPath)
	toParts := splitNonEmpty(toDir)
	base := Base(toPath)

	common := 0
	for common < len(fromParts) && common < len(toParts) && fromParts[common] == toParts[common] {
		common++
	}

	ups := len(fromParts) - common
	downs := toParts[common:]

	segments := make([]string, 0, ups+len(downs)+1)
	for i := 0; i < ups; i++ {
		segments = append(segments, "..")
	}
	segments = append(segments, downs...)
	segments = append(segments, base)

	return strings.Join(segments, "/")
}

// RelativeToFile is RelativeTo specialized for "relative from one file to
// another", which is the form FileMetadata.part_of/contents entries use.
func RelativeToFile(fromFile, toFile string) string {
	return RelativeTo(Dir(fromFile), toFile)
}

// Equal reports whether two workspace-relative paths are the same file
// after normalization (used by the "move onto itself is a no-op" rule,
// spec §8).
func Equal(a, b string) bool {
	return Norm(a) == Norm(b)
}

func splitNonEmpty(p string) []string {
	p = Norm(p)
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
