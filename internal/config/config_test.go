package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.LibraryPath == "" {
		t.Error("LibraryPath should have a default")
	}
	if !strings.HasSuffix(cfg.DatabasePath, "skillmgr.db") {
		t.Errorf("DatabasePath = %s", cfg.DatabasePath)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("Watch.Debounce = %s", cfg.Watch.Debounce)
	}
	if cfg.Remote.CatalogURL != "https://skills.sh" {
		t.Errorf("Remote.CatalogURL = %s", cfg.Remote.CatalogURL)
	}
	if cfg.Remote.Timeout != 15*time.Second {
		t.Errorf("Remote.Timeout = %s", cfg.Remote.Timeout)
	}
	if cfg.Output.Format != "table" {
		t.Errorf("Output.Format = %s", cfg.Output.Format)
	}
	if cfg.Output.Color != "auto" {
		t.Errorf("Output.Color = %s", cfg.Output.Color)
	}
	if strings.HasPrefix(cfg.Scan.CodexConfigPath, "~") {
		t.Errorf("CodexConfigPath not expanded: %s", cfg.Scan.CodexConfigPath)
	}
}

func TestLoadFromPath(t *testing.T) {
	content := `
library_path: /custom/library
watch:
  debounce: 2s
remote:
  catalog_url: https://catalog.example.com
output:
  format: json
  verbose: true
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.LibraryPath != "/custom/library" {
		t.Errorf("LibraryPath = %s", cfg.LibraryPath)
	}
	if cfg.Watch.Debounce != 2*time.Second {
		t.Errorf("Watch.Debounce = %s", cfg.Watch.Debounce)
	}
	if cfg.Remote.CatalogURL != "https://catalog.example.com" {
		t.Errorf("Remote.CatalogURL = %s", cfg.Remote.CatalogURL)
	}
	if cfg.Output.Format != "json" {
		t.Errorf("Output.Format = %s", cfg.Output.Format)
	}
	if !cfg.Output.Verbose {
		t.Error("Output.Verbose should be true")
	}

	// Unset fields keep defaults.
	if !strings.HasSuffix(cfg.DatabasePath, "skillmgr.db") {
		t.Errorf("DatabasePath default lost: %s", cfg.DatabasePath)
	}
	if cfg.Remote.Timeout != 15*time.Second {
		t.Errorf("Remote.Timeout default lost: %s", cfg.Remote.Timeout)
	}
}

func TestLoadFromPathMissing(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing explicit config path")
	}
}

func TestLoadFromPathInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("library_path: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromPath(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SKILLMGR_LIBRARY_PATH", "/env/library")
	t.Setenv("SKILLMGR_WATCH_DEBOUNCE", "750ms")
	t.Setenv("SKILLMGR_REMOTE_CATALOG_URL", "https://env.example.com")
	t.Setenv("SKILLMGR_OUTPUT_FORMAT", "json")

	cfg := Default()
	cfg.applyEnvironment()

	if cfg.LibraryPath != "/env/library" {
		t.Errorf("LibraryPath = %s", cfg.LibraryPath)
	}
	if cfg.Watch.Debounce != 750*time.Millisecond {
		t.Errorf("Watch.Debounce = %s", cfg.Watch.Debounce)
	}
	if cfg.Remote.CatalogURL != "https://env.example.com" {
		t.Errorf("Remote.CatalogURL = %s", cfg.Remote.CatalogURL)
	}
	if cfg.Output.Format != "json" {
		t.Errorf("Output.Format = %s", cfg.Output.Format)
	}
}

func TestEnvironmentInvalidDuration(t *testing.T) {
	t.Setenv("SKILLMGR_WATCH_DEBOUNCE", "not-a-duration")

	cfg := Default()
	cfg.applyEnvironment()

	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("invalid duration should keep default, got %s", cfg.Watch.Debounce)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~/skills", filepath.Join(home, "skills")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := expandHome(tt.in); got != tt.want {
			t.Errorf("expandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
