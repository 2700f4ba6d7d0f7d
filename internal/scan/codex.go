package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// codexConfig is the subset of Codex's config.toml this tool reads.
type codexConfig struct {
	Skills codexSkills `toml:"skills"`
}

type codexSkills struct {
	// Additional directories Codex loads skills from, beyond the default
	// .agents/skills layout.
	ExtraRoots []string `toml:"extra_roots"`
}

// CodexSkillRoots reads extra skill root directories from a Codex
// config.toml. A missing file yields no roots and no error. Relative roots
// are resolved against the config file's directory, and ~ expands to the
// home directory.
func CodexSkillRoots(configPath string) ([]string, error) {
	if configPath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(configPath) // #nosec G304
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read codex config %q: %w", configPath, err)
	}

	var cfg codexConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse codex config %q: %w", configPath, err)
	}

	base := filepath.Dir(configPath)
	roots := make([]string, 0, len(cfg.Skills.ExtraRoots))
	for _, root := range cfg.Skills.ExtraRoots {
		if strings.HasPrefix(root, "~") {
			home, err := os.UserHomeDir()
			if err == nil {
				root = filepath.Join(home, strings.TrimPrefix(root, "~"))
			}
		}
		if !filepath.IsAbs(root) {
			root = filepath.Join(base, root)
		}
		roots = append(roots, filepath.Clean(root))
	}
	return roots, nil
}
