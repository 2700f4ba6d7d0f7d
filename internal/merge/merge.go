// Package merge reconciles two independently evolved copies of a skill's
// file set. Without a true common ancestor only unambiguous cases are
// auto-resolved: identical files and files added on exactly one side. Any
// content difference on a file present on both sides is a conflict requiring
// an explicit resolution, as is a file the deployment no longer carries.
package merge

import (
	"bytes"
	"sort"
	"strings"

	"github.com/congwa/skillmgr/internal/diff"
	"github.com/congwa/skillmgr/internal/fstree"
	"github.com/congwa/skillmgr/internal/logging"
)

// Classification describes the merge disposition of a single path.
type Classification string

const (
	// ClassUnchanged means both sides carry identical content.
	ClassUnchanged Classification = "unchanged"
	// ClassAddedLeft means the file exists only in the library and left-only
	// files are being treated as library additions (see Options).
	ClassAddedLeft Classification = "added_left"
	// ClassAddedRight means the file exists only in the deployment.
	ClassAddedRight Classification = "added_right"
	// ClassConflict means both sides carry the file with differing content.
	ClassConflict Classification = "conflict"
	// ClassDeletedRight means the file exists only in the library, treated
	// as a deletion the deployment performed; keeping or deleting it
	// requires an explicit choice.
	ClassDeletedRight Classification = "deleted_right"
)

// RequiresResolution reports whether this classification blocks Apply until
// a resolution is supplied.
func (c Classification) RequiresResolution() bool {
	return c == ClassConflict || c == ClassDeletedRight
}

// FileResult is the merge disposition of one path.
type FileResult struct {
	Path  string
	Class Classification
	// Content is the auto-merged content for auto-resolved files.
	Content []byte
	// Left and Right carry both sides' content for files that require a
	// resolution. Right is nil for deleted_right.
	Left  []byte
	Right []byte
	// Hunks shows the line-level difference for text conflicts.
	Hunks []diff.Hunk
	// TypeConflict marks a path that is a file on one side and a directory
	// on the other; always a conflict.
	TypeConflict bool
}

// Result is the outcome of merging two trees.
type Result struct {
	Files      []FileResult
	AutoMerged int
	Conflicts  int
	Total      int
}

// Options tunes the classification policy.
type Options struct {
	// TreatLeftOnlyAsAddition classifies library-only files as added_left
	// (auto-kept) instead of the conservative default, deleted_right
	// (requires confirmation).
	TreatLeftOnlyAsAddition bool
}

// Merge classifies every path across the left (library) and right
// (deployment) trees. AutoMerged + Conflicts always equals Total.
func Merge(left, right fstree.Tree, opts Options) *Result {
	defer logging.Timer("merge")()

	result := &Result{}
	for _, path := range unionPaths(left, right) {
		leftContent, inLeft := left[path]
		rightContent, inRight := right[path]

		fr := FileResult{Path: path}
		switch {
		case inLeft && !inRight:
			if childConflict := hasChildren(right, path); childConflict {
				fr.Class = ClassConflict
				fr.TypeConflict = true
				fr.Left = leftContent
			} else if opts.TreatLeftOnlyAsAddition {
				fr.Class = ClassAddedLeft
				fr.Content = leftContent
			} else {
				fr.Class = ClassDeletedRight
				fr.Left = leftContent
			}
		case !inLeft && inRight:
			if hasChildren(left, path) {
				fr.Class = ClassConflict
				fr.TypeConflict = true
				fr.Right = rightContent
			} else {
				fr.Class = ClassAddedRight
				fr.Content = rightContent
			}
		case bytes.Equal(leftContent, rightContent):
			fr.Class = ClassUnchanged
			fr.Content = leftContent
		default:
			fr.Class = ClassConflict
			fr.Left = leftContent
			fr.Right = rightContent
			if !diff.IsBinary(leftContent) && !diff.IsBinary(rightContent) {
				fr.Hunks = diff.Lines(
					strings.Split(string(leftContent), "\n"),
					strings.Split(string(rightContent), "\n"),
				)
			}
		}

		if fr.Class.RequiresResolution() {
			result.Conflicts++
		} else {
			result.AutoMerged++
		}
		result.Total++
		result.Files = append(result.Files, fr)
	}

	logging.Debug("merge classified",
		logging.Operation("merge"),
		logging.Count(result.Total),
	)
	return result
}

// ConflictPaths returns the paths that still require a resolution.
func (r *Result) ConflictPaths() []string {
	var paths []string
	for _, f := range r.Files {
		if f.Class.RequiresResolution() {
			paths = append(paths, f.Path)
		}
	}
	return paths
}

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

func hasChildren(tree fstree.Tree, path string) bool {
	prefix := path + "/"
	for p := range tree {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}
