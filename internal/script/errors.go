package script

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ScriptNotFoundError is returned when the requested root script does not exist.
type ScriptNotFoundError struct {
	Path string
}

func (e *ScriptNotFoundError) Error() string {
	return fmt.Sprintf("script not found: %s", e.Path)
}

// Diagnostic locates one analysis problem.
type Diagnostic struct {
	File    string
	Line    int
	Message string
}

// Format renders the diagnostic with its file relative to baseDir.
func (d Diagnostic) Format(baseDir string) string {
	file := d.File
	if baseDir != "" {
		if rel, err := filepath.Rel(baseDir, d.File); err == nil {
			file = rel
		}
	}
	return fmt.Sprintf("%s, line #%d: %s", file, d.Line, d.Message)
}

// AnalysisError aggregates the diagnostics raised while resolving the script
// at Path.
type AnalysisError struct {
	Path        string
	Diagnostics []Diagnostic
}

func (e *AnalysisError) Error() string {
	if len(e.Diagnostics) == 0 {
		return fmt.Sprintf("failed to analyze script '%s'", e.Path)
	}
	parts := make([]string, 0, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		parts = append(parts, d.Format(""))
	}
	return fmt.Sprintf("failed to analyze script '%s': %s", e.Path, strings.Join(parts, "; "))
}

// Render returns one line per diagnostic, paths relative to baseDir.
func (e *AnalysisError) Render(baseDir string) []string {
	lines := make([]string, 0, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		lines = append(lines, d.Format(baseDir))
	}
	return lines
}
