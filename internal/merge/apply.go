package merge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/congwa/skillmgr/internal/fstree"
	"github.com/congwa/skillmgr/internal/logging"
)

// ErrUnresolvedConflicts blocks Apply when any conflicting file lacks a
// resolution.
var ErrUnresolvedConflicts = errors.New("merge has unresolved conflicts")

// Resolution is the operator's choice for a conflicting path. Exactly one of
// the concrete variants is valid; manual content travels with its variant so
// a "merged" choice without content is unrepresentable.
type Resolution interface {
	isResolution()
}

// UseLeft keeps the library side's content. For a deleted_right conflict
// this keeps the file.
type UseLeft struct{}

// UseRight keeps the deployment side's content. For a deleted_right
// conflict this deletes the file.
type UseRight struct{}

// UseManual writes hand-edited content.
type UseManual struct {
	Content []byte
}

func (UseLeft) isResolution()   {}
func (UseRight) isResolution()  {}
func (UseManual) isResolution() {}

// ApplyFailure records one path that could not be written.
type ApplyFailure struct {
	Path string
	Err  error
}

// ApplyReport summarizes an Apply call. Already-written files stay in place
// when later paths fail; Failures says exactly which paths did not land.
type ApplyReport struct {
	FilesWritten int
	Failures     []ApplyFailure
}

// Apply writes the merged file set under targetRoot. Every conflicting path
// must have a resolution or Apply fails with ErrUnresolvedConflicts before
// touching the filesystem. Files are written independently; partial failure
// is reported per path, never silently collapsed into overall success.
func Apply(targetRoot string, result *Result, resolutions map[string]Resolution) (*ApplyReport, error) {
	for _, f := range result.Files {
		if f.Class.RequiresResolution() {
			if _, ok := resolutions[f.Path]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnresolvedConflicts, f.Path)
			}
		}
	}

	report := &ApplyReport{}
	for _, f := range result.Files {
		content, remove, err := resolvedContent(f, resolutions)
		if err != nil {
			report.Failures = append(report.Failures, ApplyFailure{Path: f.Path, Err: err})
			continue
		}

		target := filepath.Join(targetRoot, filepath.FromSlash(f.Path))
		if remove {
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				report.Failures = append(report.Failures, ApplyFailure{Path: f.Path, Err: err})
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), fstree.DirPerm); err != nil {
			report.Failures = append(report.Failures, ApplyFailure{Path: f.Path, Err: err})
			continue
		}
		// #nosec G306 - skill files should be world-readable
		if err := os.WriteFile(target, content, fstree.FilePerm); err != nil {
			report.Failures = append(report.Failures, ApplyFailure{Path: f.Path, Err: err})
			continue
		}
		report.FilesWritten++
	}

	logging.Debug("merge applied",
		logging.Path(targetRoot),
		logging.Count(report.FilesWritten),
	)
	return report, nil
}

// resolvedContent picks the bytes to write for one file, or remove=true when
// the resolution deletes the path.
func resolvedContent(f FileResult, resolutions map[string]Resolution) (content []byte, remove bool, err error) {
	if !f.Class.RequiresResolution() {
		return f.Content, false, nil
	}

	switch r := resolutions[f.Path].(type) {
	case UseLeft:
		return f.Left, false, nil
	case UseRight:
		if f.Class == ClassDeletedRight {
			return nil, true, nil
		}
		return f.Right, false, nil
	case UseManual:
		return r.Content, false, nil
	default:
		return nil, false, fmt.Errorf("unknown resolution for %s", f.Path)
	}
}
