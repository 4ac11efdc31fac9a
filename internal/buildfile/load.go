package buildfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile parses and validates the build file at path.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open build file: %w", err)
	}
	defer f.Close()

	bf, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	bf.path = path
	return bf, nil
}

// Load parses a build file, rejecting unknown fields, and validates it.
func Load(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var bf File
	if err := dec.Decode(&bf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("build file is empty")
		}
		return nil, fmt.Errorf("decode build file: %w", err)
	}
	if err := bf.Validate(); err != nil {
		return nil, err
	}
	return &bf, nil
}

// Validate checks names and references and compiles every criterion.
func (f *File) Validate() error {
	var errs []error
	names := make(map[string]bool, len(f.Tasks))

	for i, t := range f.Tasks {
		if strings.TrimSpace(t.Name) == "" {
			errs = append(errs, fmt.Errorf("task %d: name is required", i+1))
			continue
		}
		key := strings.ToLower(t.Name)
		if names[key] {
			errs = append(errs, fmt.Errorf("task %q: declared more than once", t.Name))
		}
		names[key] = true
	}

	for _, t := range f.Tasks {
		for _, dep := range t.DependsOn {
			if !names[strings.ToLower(dep)] {
				errs = append(errs, fmt.Errorf("task %q: dependsOn unknown task %q", t.Name, dep))
			}
		}
		for _, dep := range t.DependeeOf {
			if !names[strings.ToLower(dep)] {
				errs = append(errs, fmt.Errorf("task %q: dependeeOf unknown task %q", t.Name, dep))
			}
		}
		for _, steps := range [][]Step{t.Run, t.OnError, t.Finally} {
			for _, s := range steps {
				if s.Tool == "" {
					errs = append(errs, fmt.Errorf("task %q: step without tool", t.Name))
				}
			}
		}
		for _, c := range t.Criteria {
			if _, err := compileCriterion(c.When); err != nil {
				errs = append(errs, fmt.Errorf("task %q: %w", t.Name, err))
			}
		}
	}

	errs = append(errs, validateChain(f.Chain, names, map[string]bool{})...)
	return errors.Join(errs...)
}

func validateChain(entries []ChainEntry, names, seen map[string]bool) []error {
	var errs []error
	for _, e := range entries {
		if e.IsGroup() {
			errs = append(errs, validateChain(e.Steps, names, seen)...)
			continue
		}
		key := strings.ToLower(e.Task)
		if !names[key] {
			errs = append(errs, fmt.Errorf("chain: unknown task %q", e.Task))
		}
		if seen[key] {
			errs = append(errs, fmt.Errorf("chain: task %q appears more than once", e.Task))
		}
		seen[key] = true
	}
	return errs
}
