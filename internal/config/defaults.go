package config

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *KilnConfig {
	return &KilnConfig{
		Tools: map[string]ToolConfig{
			"dotnet": {Command: "dotnet"},
			"go":     {Command: "go"},
			"git":    {Command: "git"},
		},
		Runner: RunnerConfig{
			Parallelism: 1,
			Target:      "Default",
		},
		Script: ScriptConfig{
			DefaultScheme:   "nuget",
			MaxIncludeDepth: 64,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		History: HistoryConfig{
			Path: ".kiln/history.db",
		},
		BuildFile: "kiln.yaml",
	}
}
