// Package scan discovers skills on disk: SKILL.md frontmatter parsing,
// directory scanning for tool deployment roots, and import of scanned
// skills into the library and store.
package scan

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/congwa/skillmgr/internal/checksum"
	"github.com/congwa/skillmgr/internal/logging"
	"github.com/congwa/skillmgr/internal/model"
)

// Meta is the YAML frontmatter of a SKILL.md file. Only name is required.
type Meta struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
}

// ParseMeta extracts the frontmatter from SKILL.md content. Content with no
// frontmatter block yields a zero Meta and no error; a malformed YAML block
// is an error.
func ParseMeta(content []byte) (Meta, error) {
	var meta Meta

	if !bytes.HasPrefix(content, []byte("---\n")) && !bytes.HasPrefix(content, []byte("---\r\n")) {
		return meta, nil
	}

	rest := content[len("---"):]
	if bytes.HasPrefix(rest, []byte("\r\n")) {
		rest = rest[2:]
	} else {
		rest = rest[1:]
	}

	end := bytes.Index(rest, []byte("\n---"))
	if end == -1 {
		return meta, fmt.Errorf("unterminated frontmatter block")
	}

	if err := yaml.Unmarshal(rest[:end], &meta); err != nil {
		return meta, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	return meta, nil
}

// ReadMeta parses the SKILL.md inside a skill directory. A directory
// without SKILL.md returns a Meta whose Name falls back to the directory
// name.
func ReadMeta(dir string) (Meta, error) {
	content, err := os.ReadFile(filepath.Join(dir, "SKILL.md")) // #nosec G304
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{Name: filepath.Base(dir)}, nil
		}
		return Meta{}, fmt.Errorf("failed to read SKILL.md in %q: %w", dir, err)
	}

	meta, err := ParseMeta(content)
	if err != nil {
		return Meta{}, err
	}
	if meta.Name == "" {
		meta.Name = filepath.Base(dir)
	}
	return meta, nil
}

// Found is a skill directory discovered during a scan.
type Found struct {
	Meta     Meta
	Path     string
	Checksum string
	Tool     model.Tool
}

// ToolDir scans one tool's skills directory, returning an entry per
// immediate subdirectory. A missing directory is not an error.
func ToolDir(ctx context.Context, tool model.Tool, dir string) ([]Found, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read skills directory %q: %w", dir, err)
	}

	var found []Found
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		skillDir := filepath.Join(dir, entry.Name())
		meta, err := ReadMeta(skillDir)
		if err != nil {
			logging.Warn("skipping unparseable skill directory",
				logging.Path(skillDir),
				logging.Err(err),
			)
			continue
		}
		sum, err := checksum.Dir(ctx, skillDir)
		if err != nil {
			logging.Warn("skipping unreadable skill directory",
				logging.Path(skillDir),
				logging.Err(err),
			)
			continue
		}
		found = append(found, Found{Meta: meta, Path: skillDir, Checksum: sum, Tool: tool})
	}

	return found, nil
}

// Project scans every tool's conventional skills directory under a project
// root.
func Project(ctx context.Context, root string) ([]Found, error) {
	var all []Found
	for _, tool := range model.AllTools() {
		found, err := ToolDir(ctx, tool, filepath.Join(root, tool.ProjectRelativeDir()))
		if err != nil {
			return nil, err
		}
		all = append(all, found...)
	}
	return all, nil
}

// Global scans every tool's global skills directory under the home
// directory, plus any extra skill roots declared in the codex config.
func Global(ctx context.Context, home, codexConfigPath string) ([]Found, error) {
	var all []Found
	for _, tool := range model.AllTools() {
		found, err := ToolDir(ctx, tool, filepath.Join(home, tool.GlobalRelativeDir()))
		if err != nil {
			return nil, err
		}
		all = append(all, found...)
	}

	roots, err := CodexSkillRoots(codexConfigPath)
	if err != nil {
		logging.Warn("failed to read codex config", logging.Path(codexConfigPath), logging.Err(err))
		return all, nil
	}
	for _, root := range roots {
		found, err := ToolDir(ctx, model.ToolCodex, root)
		if err != nil {
			return nil, err
		}
		all = append(all, found...)
	}
	return all, nil
}
