package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*KilnConfig, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// GlobalPath returns ~/.kiln/config.json.
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".kiln", "config.json"), nil
}

// ProjectPath is the project config, relative to the working directory.
var ProjectPath = filepath.Join(".kiln", "config.json")

// LoadDefault loads configuration from the conventional paths.
func LoadDefault() (*KilnConfig, error) {
	globalPath, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return Load(globalPath, ProjectPath)
}

// mergeConfigFile overlays a JSON config file onto base. Tools merge per
// alias; for other sections only fields set in the file replace base values.
func mergeConfigFile(base *KilnConfig, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded KilnConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if base.Tools == nil {
		base.Tools = make(map[string]ToolConfig)
	}
	for alias, tool := range loaded.Tools {
		base.Tools[alias] = tool
	}

	overlay(&base.Runner.Parallelism, loaded.Runner.Parallelism)
	overlay(&base.Runner.Target, loaded.Runner.Target)
	overlay(&base.Script.DefaultScheme, loaded.Script.DefaultScheme)
	overlay(&base.Script.MaxIncludeDepth, loaded.Script.MaxIncludeDepth)
	overlay(&base.Log.Level, loaded.Log.Level)
	overlay(&base.Log.Format, loaded.Log.Format)
	overlay(&base.History.Path, loaded.History.Path)
	overlay(&base.BuildFile, loaded.BuildFile)
	if loaded.History.Disabled {
		base.History.Disabled = true
	}

	return nil
}

func overlay[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}
