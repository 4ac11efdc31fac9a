// Package buildfile declares command tasks and their chain in YAML.
package buildfile

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// File is a parsed build file.
type File struct {
	Script string       `yaml:"script,omitempty"`
	Tasks  []TaskSpec   `yaml:"tasks"`
	Chain  []ChainEntry `yaml:"chain,omitempty"`

	path string
}

// Path returns the file the build file was loaded from, if any.
func (f *File) Path() string { return f.path }

// TaskSpec declares one task.
type TaskSpec struct {
	Name            string          `yaml:"name"`
	Description     string          `yaml:"description,omitempty"`
	Run             []Step          `yaml:"run,omitempty"`
	Criteria        []CriterionSpec `yaml:"criteria,omitempty"`
	ContinueOnError bool            `yaml:"continueOnError,omitempty"`
	DependsOn       []string        `yaml:"dependsOn,omitempty"`
	DependeeOf      []string        `yaml:"dependeeOf,omitempty"`
	Writes          []string        `yaml:"writes,omitempty"`
	OnError         []Step          `yaml:"onError,omitempty"`
	Finally         []Step          `yaml:"finally,omitempty"`
}

// Step is one tool invocation. Args and Secrets may reference ${NAME},
// resolved from run arguments first and the environment second.
type Step struct {
	Tool    string            `yaml:"tool"`
	Args    []string          `yaml:"args,omitempty"`
	Secrets []string          `yaml:"secrets,omitempty"` // Appended after Args, masked in logs
	Dir     string            `yaml:"dir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// CriterionSpec skips the task with Message when When evaluates to false.
type CriterionSpec struct {
	When    string `yaml:"when"`
	Message string `yaml:"message,omitempty"`
}

// ChainEntry is a task name or a group of entries.
//
//	chain:
//	  - Clean
//	  - group: Compile
//	    steps: [Build, Pack]
type ChainEntry struct {
	Task  string
	Group string
	Steps []ChainEntry
}

// IsGroup reports whether the entry is a group.
func (e ChainEntry) IsGroup() bool { return e.Task == "" }

// UnmarshalYAML accepts a scalar task name or a {group, steps} mapping.
func (e *ChainEntry) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Value == "" {
			return fmt.Errorf("line %d: empty chain entry", value.Line)
		}
		e.Task = value.Value
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(value.Content); i += 2 {
			key, val := value.Content[i], value.Content[i+1]
			switch key.Value {
			case "group":
				if err := val.Decode(&e.Group); err != nil {
					return err
				}
			case "steps":
				if err := val.Decode(&e.Steps); err != nil {
					return err
				}
			default:
				return fmt.Errorf("line %d: field %s not found in chain group", key.Line, key.Value)
			}
		}
		return nil
	default:
		return fmt.Errorf("line %d: chain entry must be a task name or a group", value.Line)
	}
}
