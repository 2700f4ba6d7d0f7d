package model

import (
	"path/filepath"
	"testing"
)

func TestToolIsValid(t *testing.T) {
	for _, tool := range AllTools() {
		if !tool.IsValid() {
			t.Errorf("%s should be valid", tool)
		}
	}
	for _, tool := range []Tool{"", "vim", "Cursor", "claude_code"} {
		if tool.IsValid() {
			t.Errorf("%q should be invalid", tool)
		}
	}
}

func TestToolDirectories(t *testing.T) {
	tests := []struct {
		tool Tool
		want string
	}{
		{ToolWindsurf, filepath.Join(".windsurf", "skills")},
		{ToolCursor, filepath.Join(".cursor", "skills")},
		{ToolClaudeCode, filepath.Join(".claude", "skills")},
		{ToolCodex, filepath.Join(".agents", "skills")},
		{ToolTrae, filepath.Join(".trae", "skills")},
	}
	for _, tt := range tests {
		if got := tt.tool.ProjectRelativeDir(); got != tt.want {
			t.Errorf("%s.ProjectRelativeDir() = %s, want %s", tt.tool, got, tt.want)
		}
		if got := tt.tool.GlobalRelativeDir(); got != tt.want {
			t.Errorf("%s.GlobalRelativeDir() = %s, want %s", tt.tool, got, tt.want)
		}
	}
	if got := Tool("vim").ProjectRelativeDir(); got != "" {
		t.Errorf("unknown tool dir = %q", got)
	}
}

func TestSourceTypeIsRemote(t *testing.T) {
	tests := []struct {
		source SourceType
		want   bool
	}{
		{SourceLocal, false},
		{SourceRegistry, true},
		{SourceVersionControl, true},
		{SourceMirror, true},
		{SourceType("other"), false},
	}
	for _, tt := range tests {
		if got := tt.source.IsRemote(); got != tt.want {
			t.Errorf("%s.IsRemote() = %v, want %v", tt.source, got, tt.want)
		}
	}
}

func TestHasPendingWatcherChange(t *testing.T) {
	var s Skill
	if s.HasPendingWatcherChange() {
		t.Error("zero skill has no pending change")
	}
	now := s.CreatedAt
	s.WatcherModifiedAt = &now
	if !s.HasPendingWatcherChange() {
		t.Error("set WatcherModifiedAt means pending")
	}
}
