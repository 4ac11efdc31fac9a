package config

// ToolConfig maps a tool alias used by build tasks to an executable.
type ToolConfig struct {
	Command string   `json:"command"`           // Executable name or path (e.g., "dotnet", "go")
	Args    []string `json:"args,omitempty"`    // Arguments prepended to every invocation
	Retries uint64   `json:"retries,omitempty"` // Extra attempts when the process fails to start
}

// RunnerConfig controls task execution.
type RunnerConfig struct {
	Parallelism int    `json:"parallelism,omitempty"` // Tasks run at once; 1 is sequential
	Target      string `json:"target,omitempty"`      // Target used when none is given
}

// ScriptConfig controls script analysis.
type ScriptConfig struct {
	DefaultScheme   string `json:"defaultScheme,omitempty"`   // Scheme for bare #addin/#tool ids
	MaxIncludeDepth int    `json:"maxIncludeDepth,omitempty"` // 0 disables the guard
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `json:"level,omitempty"`  // debug, info, warn, error
	Format string `json:"format,omitempty"` // text or json
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Path     string `json:"path,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// KilnConfig is the top-level configuration.
type KilnConfig struct {
	Tools     map[string]ToolConfig `json:"tools"`
	Runner    RunnerConfig          `json:"runner"`
	Script    ScriptConfig          `json:"script"`
	Log       LogConfig             `json:"log"`
	History   HistoryConfig         `json:"history"`
	BuildFile string                `json:"buildFile,omitempty"`
}

// Tool returns the configuration for alias, falling back to running alias itself.
func (c *KilnConfig) Tool(alias string) ToolConfig {
	if tc, ok := c.Tools[alias]; ok && tc.Command != "" {
		return tc
	}
	return ToolConfig{Command: alias}
}
