package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config describes how the worker subprocess is launched.
type Config struct {
	// Command is the executable, typically the trio binary itself.
	Command string `yaml:"command" json:"command"`
	// Args precede the request directory, e.g. ["worker"].
	Args []string `yaml:"args" json:"args"`
	// Env is added to the child environment verbatim.
	Env map[string]string `yaml:"env" json:"env"`
	// PassEnv names host variables forwarded to the child. Nothing else is inherited.
	PassEnv []string `yaml:"pass_env" json:"pass_env"`
	// TempDir is where request directories are created. Empty means os.TempDir().
	TempDir string `yaml:"temp_dir" json:"temp_dir"`
}

// DefaultPassEnv is forwarded when a Config leaves PassEnv empty.
var DefaultPassEnv = []string{"PATH", "HOME", "TMPDIR", "LANG"}

// LoadConfig reads a worker configuration file (YAML or JSON).
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read worker config: %w", err)
	}

	var cfg Config
	ext := strings.ToLower(filepath.Ext(path))

	if ext == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		// Default to YAML
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	if cfg.Command == "" {
		return Config{}, fmt.Errorf("worker config %s: command is required", path)
	}
	return cfg, nil
}
