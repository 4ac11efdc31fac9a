package script

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options configures script resolution.
type Options struct {
	DefaultScheme string       // Scheme for addin/tool ids without one (default "nuget")
	MaxDepth      int          // Maximum load nesting, 0 means unlimited
	Logger        *slog.Logger // Optional
}

// Resolver reads a script and everything it loads into a tree of units.
// Every load occurrence produces a fresh unit; nothing is cached across the
// tree. Loads are not checked for cycles unless MaxDepth is set.
type Resolver struct {
	opts Options
	log  *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(opts Options) *Resolver {
	if opts.DefaultScheme == "" {
		opts.DefaultScheme = DefaultScheme
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Resolver{opts: opts, log: log}
}

// Resolve reads the script at path and every script it loads.
func (r *Resolver) Resolve(path string) (*Unit, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ScriptNotFoundError{Path: abs}
		}
		return nil, fmt.Errorf("reading %s: %w", abs, err)
	}

	return r.resolveUnit(abs, abs, 0, 0)
}

func (r *Resolver) resolveUnit(root, path string, loadedAt, depth int) (*Unit, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	r.log.Debug("resolving script", "path", path, "depth", depth)

	unit := &Unit{
		Path:     path,
		LoadedAt: loadedAt,
		Lines:    lines,
		Scanned:  make([]Line, len(lines)),
	}

	for i, text := range lines {
		ln := Classify(text, depth == 0 && i == 0)
		lineNo := i + 1

		switch ln.Kind {
		case KindReference:
			unit.References = append(unit.References, ln.Arg(0))

		case KindAddin:
			ln.Locator = NewPackageLocator(ln.Arg(0), ln.Arg(1), r.opts.DefaultScheme)
			unit.Addins = append(unit.Addins, ln.Locator)

		case KindTool:
			ln.Locator = NewPackageLocator(ln.Arg(0), ln.Arg(1), r.opts.DefaultScheme)
			unit.Tools = append(unit.Tools, ln.Locator)

		case KindNamespace:
			unit.Namespaces = append(unit.Namespaces, ln.Payload)

		case KindAlias:
			unit.UsingAliases = append(unit.UsingAliases, ln.Payload)

		case KindLoad:
			target := ln.Arg(0)
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(path), target)
			}
			target = filepath.Clean(target)

			if r.opts.MaxDepth > 0 && depth+1 > r.opts.MaxDepth {
				return nil, &AnalysisError{Path: root, Diagnostics: []Diagnostic{{
					File:    path,
					Line:    lineNo,
					Message: fmt.Sprintf("maximum include depth of %d exceeded loading '%s'", r.opts.MaxDepth, target),
				}}}
			}

			if _, err := os.Stat(target); err != nil {
				return nil, &AnalysisError{Path: root, Diagnostics: []Diagnostic{{
					File:    path,
					Line:    lineNo,
					Message: fmt.Sprintf("could not find script '%s'", target),
				}}}
			}

			child, err := r.resolveUnit(root, target, lineNo, depth+1)
			if err != nil {
				return nil, err
			}
			unit.Includes = append(unit.Includes, child)
		}

		unit.Scanned[i] = ln
	}

	return unit, nil
}

// readLines splits a file into lines, accepting both LF and CRLF endings.
func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	text := strings.TrimPrefix(string(data), "\uFEFF")
	if text == "" {
		return []string{}, nil
	}

	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines, nil
}
