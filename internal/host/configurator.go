package host

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/aristath/kiln/internal/chain"
	"github.com/aristath/kiln/internal/scheduler"
)

// DefaultTaskName is the task that also depends on the end of the chain.
const DefaultTaskName = "Default"

// TaskConfigurator is invoked once per registered task before any task runs.
type TaskConfigurator interface {
	Configure(task Task, b *scheduler.TaskBuilder) error
}

// ChainProvider supplies the task chain. GetChain returns any item of the
// chain, normally the last one appended.
type ChainProvider interface {
	GetChain() chain.Item
}

// ChainFunc adapts a function to ChainProvider.
type ChainFunc func() chain.Item

func (f ChainFunc) GetChain() chain.Item { return f() }

// taskConfigurator applies what a task declares about itself.
type taskConfigurator struct {
	host *Host
}

func (c taskConfigurator) Configure(task Task, b *scheduler.TaskBuilder) error {
	h := c.host

	if d, ok := task.(Describer); ok {
		b.Description(d.Description())
	}

	if r, ok := task.(Runnable); ok {
		b.Does(func(ctx context.Context) error {
			return r.Run(h.newContext(ctx))
		})
	}

	if cond, ok := task.(Conditional); ok {
		msg := ""
		if m, ok := task.(SkipMessager); ok {
			msg = m.SkipMessage()
		}
		b.WithCriteria(func(ctx context.Context) (bool, error) {
			return cond.ShouldRun(h.newContext(ctx)), nil
		}, msg)
	}

	if cp, ok := task.(CriteriaProvider); ok {
		for _, crit := range cp.Criteria() {
			if crit.Predicate == nil {
				continue
			}
			b.WithCriteria(func(ctx context.Context) (bool, error) {
				return crit.Predicate(h.newContext(ctx))
			}, crit.Message)
		}
	}

	if et, ok := task.(ErrorTolerant); ok && et.ContinueOnError() {
		b.ContinueOnError()
	}

	if eh, ok := task.(ErrorHandler); ok {
		b.OnError(func(ctx context.Context, err error) error {
			return eh.OnError(err, h.newContext(ctx))
		})
	}

	if f, ok := task.(Finalizer); ok {
		b.Finally(func(ctx context.Context) error {
			return f.Finally(h.newContext(ctx))
		})
	}

	if fw, ok := task.(FileWriter); ok {
		b.Writes(fw.Writes()...)
	}

	if d, ok := task.(Dependent); ok {
		for _, ref := range d.Dependencies() {
			name, err := h.resolveReference(ref)
			if err != nil {
				return &ConfigurationError{Task: b.Name(), Message: "invalid dependency", Err: err}
			}
			b.IsDependentOn(name)
		}
	}

	if d, ok := task.(Dependee); ok {
		for _, ref := range d.Dependees() {
			name, err := h.resolveReference(ref)
			if err != nil {
				return &ConfigurationError{Task: b.Name(), Message: "invalid dependee", Err: err}
			}
			b.IsDependeeOf(name)
		}
	}

	return nil
}

// chainConfigurator turns chain positions into dependencies.
type chainConfigurator struct {
	host  *Host
	chain *chain.Chain
}

func (c chainConfigurator) Configure(task Task, b *scheduler.TaskBuilder) error {
	name := b.Name()

	if node, ok := c.chain.Find(reflect.TypeOf(task), name); ok {
		for _, pred := range node.Predecessors() {
			dep, err := c.resolve(pred)
			if err != nil {
				return &ConfigurationError{Task: name, Err: err}
			}
			b.IsDependentOn(dep)
		}
	}

	if strings.EqualFold(name, DefaultTaskName) {
		if term, ok := c.chain.Terminal(); ok {
			dep, err := c.resolve(term)
			if err != nil {
				return &ConfigurationError{Task: name, Err: err}
			}
			if !strings.EqualFold(dep, name) {
				b.IsDependentOn(dep)
			}
		}
	}

	return nil
}

// resolve maps a chain node to the name of a registered task.
func (c chainConfigurator) resolve(it chain.Item) (string, error) {
	ref := it.Ref()
	if ref.Type != nil {
		if reg, ok := c.host.findByType(ref.Type); ok {
			return reg.name, nil
		}
		return "", fmt.Errorf("chain refers to %s, which is not registered", ref)
	}
	if !c.host.dag.Has(ref.Name) {
		return "", fmt.Errorf("chain refers to task %q, which is not registered", ref.Name)
	}
	return ref.Name, nil
}

// resolveReference maps an explicit dependency to a registered task name.
func (h *Host) resolveReference(ref any) (string, error) {
	switch v := ref.(type) {
	case string:
		if !h.dag.Has(v) {
			return "", fmt.Errorf("task %q is not registered", v)
		}
		return v, nil
	case reflect.Type:
		if !isTaskType(v) {
			return "", fmt.Errorf("%s is not a task", v)
		}
		reg, ok := h.findByType(v)
		if !ok {
			return "", fmt.Errorf("task %s is not registered", typeName(v))
		}
		return reg.name, nil
	case Task:
		name := NameOf(v)
		if !h.dag.Has(name) {
			return "", fmt.Errorf("task %q is not registered", name)
		}
		return name, nil
	default:
		return "", fmt.Errorf("%T is not a task", ref)
	}
}
