package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/congwa/skillmgr/internal/model"
)

func TestParseMeta(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Meta
		wantErr bool
	}{
		{
			name: "full frontmatter",
			content: `---
name: code-review
description: Reviews pull requests
version: 1.2.0
---
# Code Review
`,
			want: Meta{Name: "code-review", Description: "Reviews pull requests", Version: "1.2.0"},
		},
		{
			name:    "no frontmatter",
			content: "# Just a heading\n",
			want:    Meta{},
		},
		{
			name: "partial fields",
			content: `---
name: minimal
---
body
`,
			want: Meta{Name: "minimal"},
		},
		{
			name:    "unterminated frontmatter",
			content: "---\nname: broken\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			content: "---\nname: [unclosed\n---\n",
			wantErr: true,
		},
		{
			name: "crlf line endings",
			content: "---\r\nname: windows\r\n---\r\nbody\r\n",
			want:    Meta{Name: "windows"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMeta([]byte(tt.content))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMeta failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestReadMetaFallsBackToDirName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "implicit-skill")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}

	meta, err := ReadMeta(dir)
	if err != nil {
		t.Fatalf("ReadMeta failed: %v", err)
	}
	if meta.Name != "implicit-skill" {
		t.Errorf("Name = %s, want directory name", meta.Name)
	}
}

func writeSkillDir(t *testing.T, base, name, frontmatterName string) {
	t.Helper()
	dir := filepath.Join(base, name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}
	content := "# Skill\n"
	if frontmatterName != "" {
		content = "---\nname: " + frontmatterName + "\n---\n" + content
	}
	if err := os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestToolDir(t *testing.T) {
	base := t.TempDir()
	writeSkillDir(t, base, "alpha", "alpha-skill")
	writeSkillDir(t, base, "beta", "")
	// Loose files at the top level are not skills.
	if err := os.WriteFile(filepath.Join(base, "README.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	found, err := ToolDir(context.Background(), model.ToolCursor, base)
	if err != nil {
		t.Fatalf("ToolDir failed: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 skills, got %d", len(found))
	}

	byName := map[string]Found{}
	for _, f := range found {
		byName[f.Meta.Name] = f
	}
	if _, ok := byName["alpha-skill"]; !ok {
		t.Error("frontmatter name not used")
	}
	if _, ok := byName["beta"]; !ok {
		t.Error("directory-name fallback missing")
	}
	for _, f := range found {
		if f.Checksum == "" {
			t.Errorf("%s: missing checksum", f.Meta.Name)
		}
		if f.Tool != model.ToolCursor {
			t.Errorf("%s: tool = %s", f.Meta.Name, f.Tool)
		}
	}
}

func TestToolDirMissing(t *testing.T) {
	found, err := ToolDir(context.Background(), model.ToolTrae, filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("expected no findings, got %d", len(found))
	}
}

func TestProjectScansAllToolConventions(t *testing.T) {
	root := t.TempDir()
	writeSkillDir(t, filepath.Join(root, ".cursor", "skills"), "c-skill", "")
	writeSkillDir(t, filepath.Join(root, ".windsurf", "skills"), "w-skill", "")

	found, err := Project(context.Background(), root)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 skills, got %d", len(found))
	}
}

func TestCodexSkillRoots(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := `
model = "gpt-5"

[skills]
extra_roots = ["skills", "/abs/skills"]
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	roots, err := CodexSkillRoots(configPath)
	if err != nil {
		t.Fatalf("CodexSkillRoots failed: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(roots))
	}
	if roots[0] != filepath.Join(dir, "skills") {
		t.Errorf("relative root not resolved: %s", roots[0])
	}
	if roots[1] != filepath.Clean("/abs/skills") {
		t.Errorf("absolute root mangled: %s", roots[1])
	}
}

func TestCodexSkillRootsMissingFile(t *testing.T) {
	roots, err := CodexSkillRoots(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("missing config should not error: %v", err)
	}
	if roots != nil {
		t.Errorf("expected no roots, got %v", roots)
	}
}

func TestCodexSkillRootsMalformed(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[skills\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := CodexSkillRoots(configPath); err == nil {
		t.Error("expected parse error")
	}
}
