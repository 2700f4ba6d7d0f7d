// Package config provides configuration for skillmgr.
// It supports YAML configuration files, environment variables, and sensible defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete skillmgr configuration.
type Config struct {
	// LibraryPath is the directory holding canonical skill content
	LibraryPath string `yaml:"library_path"`

	// DatabasePath is the SQLite database file
	DatabasePath string `yaml:"database_path"`

	// BackupDir is where library snapshots are kept
	BackupDir string `yaml:"backup_dir"`

	// Watch configures the filesystem watcher
	Watch WatchConfig `yaml:"watch"`

	// Remote configures catalog update checks
	Remote RemoteConfig `yaml:"remote"`

	// Scan configures skill discovery
	Scan ScanConfig `yaml:"scan"`

	// Output configures display preferences
	Output OutputConfig `yaml:"output"`
}

// WatchConfig holds filesystem watcher settings.
type WatchConfig struct {
	// Debounce is how long to wait after the last write before absorbing a
	// change
	Debounce time.Duration `yaml:"debounce"`
}

// RemoteConfig holds catalog settings.
type RemoteConfig struct {
	// CatalogURL is the skill catalog base URL
	CatalogURL string `yaml:"catalog_url"`
	// Timeout bounds each catalog request
	Timeout time.Duration `yaml:"timeout"`
}

// ScanConfig holds discovery settings.
type ScanConfig struct {
	// CodexConfigPath is the Codex config.toml to read extra skill roots from
	CodexConfigPath string `yaml:"codex_config_path"`
	// ProjectRoots are directories scanned for project-level deployments
	ProjectRoots []string `yaml:"project_roots,omitempty"`
}

// OutputConfig holds display preferences.
type OutputConfig struct {
	// Format is the default output format (table, json)
	Format string `yaml:"format"`
	// Color controls color output (auto, always, never)
	Color string `yaml:"color"`
	// Verbose enables verbose output
	Verbose bool `yaml:"verbose"`
}

const configFileName = "config.yaml"

// BaseDir returns the skillmgr state directory (~/.skillmgr).
func BaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".skillmgr"
	}
	return filepath.Join(home, ".skillmgr")
}

// FilePath returns the path to the config file.
func FilePath() string {
	return filepath.Join(BaseDir(), configFileName)
}

// Default returns the default configuration.
func Default() *Config {
	base := BaseDir()
	return &Config{
		LibraryPath:  filepath.Join(base, "library"),
		DatabasePath: filepath.Join(base, "skillmgr.db"),
		BackupDir:    filepath.Join(base, "backups"),
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Remote: RemoteConfig{
			CatalogURL: "https://skills.sh",
			Timeout:    15 * time.Second,
		},
		Scan: ScanConfig{
			CodexConfigPath: expandHome("~/.codex/config.toml"),
		},
		Output: OutputConfig{
			Format: "table",
			Color:  "auto",
		},
	}
}

// Load loads the configuration from file, merging with defaults.
// If the config file doesn't exist, returns default configuration.
func Load() (*Config, error) {
	cfg := Default()

	configPath := FilePath()
	// #nosec G304 - configPath is constructed from trusted config directory
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvironment()
			cfg.expandPaths()
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnvironment()
	cfg.expandPaths()
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - path is provided by caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnvironment()
	cfg.expandPaths()
	return cfg, nil
}

// Save writes the configuration to the config file.
func (c *Config) Save() error {
	configPath := FilePath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// #nosec G306 - config file should be readable by user
	return os.WriteFile(configPath, data, 0o644)
}

// applyEnvironment applies environment variable overrides.
// Environment variables follow the pattern SKILLMGR_<SECTION>_<KEY>.
func (c *Config) applyEnvironment() {
	if v := os.Getenv("SKILLMGR_LIBRARY_PATH"); v != "" {
		c.LibraryPath = v
	}
	if v := os.Getenv("SKILLMGR_DATABASE_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("SKILLMGR_BACKUP_DIR"); v != "" {
		c.BackupDir = v
	}
	if v := os.Getenv("SKILLMGR_WATCH_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Watch.Debounce = d
		}
	}
	if v := os.Getenv("SKILLMGR_REMOTE_CATALOG_URL"); v != "" {
		c.Remote.CatalogURL = v
	}
	if v := os.Getenv("SKILLMGR_REMOTE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Remote.Timeout = d
		}
	}
	if v := os.Getenv("SKILLMGR_SCAN_CODEX_CONFIG"); v != "" {
		c.Scan.CodexConfigPath = v
	}
	if v := os.Getenv("SKILLMGR_OUTPUT_FORMAT"); v != "" {
		c.Output.Format = v
	}
	if v := os.Getenv("SKILLMGR_OUTPUT_COLOR"); v != "" {
		c.Output.Color = v
	}
}

// expandPaths resolves ~ in all configured paths.
func (c *Config) expandPaths() {
	c.LibraryPath = expandHome(c.LibraryPath)
	c.DatabasePath = expandHome(c.DatabasePath)
	c.BackupDir = expandHome(c.BackupDir)
	c.Scan.CodexConfigPath = expandHome(c.Scan.CodexConfigPath)
	for i, root := range c.Scan.ProjectRoots {
		c.Scan.ProjectRoots[i] = expandHome(root)
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
