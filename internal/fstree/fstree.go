// Package fstree reads and writes whole file trees as flat maps of relative
// path to content. All mutating operations report which individual files
// failed rather than a single opaque error.
package fstree

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/congwa/skillmgr/internal/logging"
)

const (
	// DirPerm is the permission for created directories (rwxr-x---).
	DirPerm = 0o750
	// FilePerm is the permission for written files (rw-r--r--).
	FilePerm = 0o644
)

// Tree maps slash-separated relative paths to file content. An empty file is
// zero-length content, not absence.
type Tree map[string][]byte

// Paths returns the sorted relative paths in the tree.
func (t Tree) Paths() []string {
	paths := make([]string, 0, len(t))
	for p := range t {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Equal reports whether two trees have identical paths and content.
func (t Tree) Equal(other Tree) bool {
	if len(t) != len(other) {
		return false
	}
	for p, content := range t {
		o, ok := other[p]
		if !ok || string(content) != string(o) {
			return false
		}
	}
	return true
}

// Exists reports whether a path exists on disk.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Read loads every regular file under root into a Tree. The context is
// checked between files so large trees on slow mounts stay cancellable.
// A missing root returns an error; an empty directory returns an empty Tree.
func Read(ctx context.Context, root string) (Tree, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%q is not a directory", root)
	}

	tree := make(Tree)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			// Symlinks and other special files are not part of a skill's
			// content identity.
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		// #nosec G304 - path comes from walking a caller-provided root
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %q: %w", path, err)
		}
		tree[filepath.ToSlash(rel)] = content
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tree, nil
}

// Failure records a single file that could not be written or removed.
type Failure struct {
	Path string
	Err  error
}

// WriteReport summarizes a Write call.
type WriteReport struct {
	FilesWritten int
	Failures     []Failure
}

// OK reports whether every file was written.
func (r *WriteReport) OK() bool {
	return len(r.Failures) == 0
}

// Write writes every file in the tree under root, creating directories as
// needed. Files are written independently: a failure on one file does not
// roll back files already written, it is recorded in the report instead.
func Write(root string, tree Tree) (*WriteReport, error) {
	if err := os.MkdirAll(root, DirPerm); err != nil {
		return nil, fmt.Errorf("failed to create directory %q: %w", root, err)
	}

	report := &WriteReport{}
	for _, rel := range tree.Paths() {
		target := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), DirPerm); err != nil {
			report.Failures = append(report.Failures, Failure{Path: rel, Err: err})
			continue
		}
		// #nosec G306 - skill files should be world-readable
		if err := os.WriteFile(target, tree[rel], FilePerm); err != nil {
			report.Failures = append(report.Failures, Failure{Path: rel, Err: err})
			continue
		}
		report.FilesWritten++
	}

	if !report.OK() {
		logging.Warn("tree write completed with failures",
			logging.Path(root),
			logging.Count(len(report.Failures)),
		)
	}
	return report, nil
}

// Remove deletes the tree rooted at path. A path that does not exist is not
// an error.
func Remove(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove %q: %w", path, err)
	}
	return nil
}

// Replace removes whatever is at dst and writes the tree in its place.
// Returns the number of files written. Used for directional sync copies
// where stale files must not survive.
func Replace(dst string, tree Tree) (int, error) {
	if err := Remove(dst); err != nil {
		return 0, err
	}
	report, err := Write(dst, tree)
	if err != nil {
		return 0, err
	}
	if !report.OK() {
		return report.FilesWritten, fmt.Errorf("failed to write %d of %d files under %q (first: %s: %v)",
			len(report.Failures), len(tree), dst, report.Failures[0].Path, report.Failures[0].Err)
	}
	return report.FilesWritten, nil
}
