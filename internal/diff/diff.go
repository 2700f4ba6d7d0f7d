// Package diff computes structured diffs between two file trees: per-file
// added/removed/modified/unchanged classification plus line-level hunks for
// modified text files. The engine is pure computation over already-loaded
// content and has no side effects.
package diff

import (
	"bytes"
	"sort"
	"strings"

	"github.com/congwa/skillmgr/internal/fstree"
	"github.com/congwa/skillmgr/internal/logging"
)

// Status classifies a single path across the two sides.
type Status string

const (
	// StatusAdded means the path exists only on the right side.
	StatusAdded Status = "added"
	// StatusRemoved means the path exists only on the left side.
	StatusRemoved Status = "removed"
	// StatusModified means the path exists on both sides with differing content.
	StatusModified Status = "modified"
	// StatusUnchanged means the path exists on both sides with identical content.
	StatusUnchanged Status = "unchanged"
)

// FileDiff describes one path's difference between the two trees.
type FileDiff struct {
	Path   string
	Status Status
	// Binary is true when either side's content is not text; binary files
	// are classified by equality only and carry no hunks.
	Binary bool
	// TypeConflict is true when the path is a file on one side and a
	// directory on the other. Consumed by the merge engine.
	TypeConflict bool
	Hunks        []Hunk
}

// Summary counts files by classification.
type Summary struct {
	Added     int
	Removed   int
	Modified  int
	Unchanged int
}

// Result is the full structured diff of two trees.
type Result struct {
	Files   []FileDiff
	Summary Summary
}

// HasChanges reports whether any file differs.
func (r *Result) HasChanges() bool {
	return r.Summary.Added > 0 || r.Summary.Removed > 0 || r.Summary.Modified > 0
}

// Tree computes the structured diff between a left and a right tree.
func Tree(left, right fstree.Tree) *Result {
	defer logging.Timer("diff")()

	paths := unionPaths(left, right)
	result := &Result{Files: make([]FileDiff, 0, len(paths))}

	for _, path := range paths {
		leftContent, inLeft := left[path]
		rightContent, inRight := right[path]

		// A file on one side shadowed by a directory of the same name on
		// the other is a modification with a type conflict marker.
		typeConflict := (inLeft && !inRight && hasChildren(right, path)) ||
			(!inLeft && inRight && hasChildren(left, path))

		fd := FileDiff{Path: path}
		switch {
		case typeConflict:
			fd.Status = StatusModified
			fd.TypeConflict = true
			result.Summary.Modified++
		case inLeft && !inRight:
			fd.Status = StatusRemoved
			result.Summary.Removed++
		case !inLeft && inRight:
			fd.Status = StatusAdded
			result.Summary.Added++
		case bytes.Equal(leftContent, rightContent):
			fd.Status = StatusUnchanged
			result.Summary.Unchanged++
		default:
			fd.Status = StatusModified
			result.Summary.Modified++
			fd.Binary = IsBinary(leftContent) || IsBinary(rightContent)
			if !fd.Binary {
				fd.Hunks = Lines(splitLines(leftContent), splitLines(rightContent))
			}
		}

		result.Files = append(result.Files, fd)
	}

	return result
}

// unionPaths returns the sorted union of both trees' paths.
func unionPaths(left, right fstree.Tree) []string {
	seen := make(map[string]struct{}, len(left)+len(right))
	for p := range left {
		seen[p] = struct{}{}
	}
	for p := range right {
		seen[p] = struct{}{}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// hasChildren reports whether the tree has entries under path as a directory.
func hasChildren(tree fstree.Tree, path string) bool {
	prefix := path + "/"
	for p := range tree {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// IsBinary reports whether content looks like binary data (contains a NUL
// byte in its first kilobyte).
func IsBinary(content []byte) bool {
	probe := content
	if len(probe) > 1024 {
		probe = probe[:1024]
	}
	return bytes.IndexByte(probe, 0) != -1
}

// splitLines splits content into lines without trailing newline artifacts.
func splitLines(content []byte) []string {
	return strings.Split(string(content), "\n")
}
