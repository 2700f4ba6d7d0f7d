package model

import "path/filepath"

// Tool represents a supported AI coding tool integration.
type Tool string

const (
	ToolWindsurf   Tool = "windsurf"
	ToolCursor     Tool = "cursor"
	ToolClaudeCode Tool = "claude-code"
	ToolCodex      Tool = "codex"
	ToolTrae       Tool = "trae"
)

// IsValid returns true if the tool is recognized.
func (t Tool) IsValid() bool {
	switch t {
	case ToolWindsurf, ToolCursor, ToolClaudeCode, ToolCodex, ToolTrae:
		return true
	default:
		return false
	}
}

// ProjectRelativeDir returns the skills directory for this tool relative to
// a project root.
func (t Tool) ProjectRelativeDir() string {
	switch t {
	case ToolWindsurf:
		return filepath.Join(".windsurf", "skills")
	case ToolCursor:
		return filepath.Join(".cursor", "skills")
	case ToolClaudeCode:
		return filepath.Join(".claude", "skills")
	case ToolCodex:
		return filepath.Join(".agents", "skills")
	case ToolTrae:
		return filepath.Join(".trae", "skills")
	default:
		return ""
	}
}

// GlobalRelativeDir returns the skills directory for this tool relative to
// the user's home directory (user-level deployments).
func (t Tool) GlobalRelativeDir() string {
	// Every supported tool uses the same layout under $HOME as under a
	// project root.
	return t.ProjectRelativeDir()
}

// AllTools returns all supported tools.
func AllTools() []Tool {
	return []Tool{ToolWindsurf, ToolCursor, ToolClaudeCode, ToolCodex, ToolTrae}
}
