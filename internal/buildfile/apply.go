package buildfile

import (
	"fmt"
	"strings"

	"github.com/aristath/kiln/internal/chain"
	"github.com/aristath/kiln/internal/host"
)

// Apply registers the file's tasks with h and, when the file declares a
// chain, uses it to wire them. A chained file without a Default task gets
// an empty one that runs the whole chain.
func Apply(h *host.Host, f *File) error {
	tasks := make([]host.Task, 0, len(f.Tasks)+1)
	hasDefault := false
	for _, spec := range f.Tasks {
		t, err := NewCommandTask(spec)
		if err != nil {
			return err
		}
		if strings.EqualFold(spec.Name, host.DefaultTaskName) {
			hasDefault = true
		}
		tasks = append(tasks, t)
	}
	if len(f.Chain) > 0 && !hasDefault {
		tasks = append(tasks, chainDefault{})
	}
	if err := h.Register(tasks...); err != nil {
		return fmt.Errorf("register build file tasks: %w", err)
	}
	if len(f.Chain) > 0 {
		entries := f.Chain
		h.UseChain(host.ChainFunc(func() chain.Item {
			return BuildChain(entries)
		}))
	}
	return nil
}

// BuildChain turns chain entries into a chain and returns its last item.
// It returns the zero Item for no entries.
func BuildChain(entries []ChainEntry) chain.Item {
	if len(entries) == 0 {
		return chain.Item{}
	}
	c := chain.New()
	first := entries[0]
	var it chain.Item
	if first.IsGroup() {
		it = c.Group(first.Group, fillGroup(first.Steps))
	} else {
		it = c.Task(first.Task)
	}
	return appendEntries(it, entries[1:])
}

func appendEntries(it chain.Item, entries []ChainEntry) chain.Item {
	for _, e := range entries {
		if e.IsGroup() {
			it = it.Group(e.Group, fillGroup(e.Steps))
		} else {
			it = it.Task(e.Task)
		}
	}
	return it
}

func fillGroup(steps []ChainEntry) func(head chain.Item) {
	return func(head chain.Item) {
		appendEntries(head, steps)
	}
}

// chainDefault orders the whole chain without doing anything itself.
type chainDefault struct{ host.BaseTask }

func (chainDefault) TaskName() string    { return host.DefaultTaskName }
func (chainDefault) Description() string { return "Runs the whole chain" }
