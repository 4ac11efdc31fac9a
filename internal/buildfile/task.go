package buildfile

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/aristath/kiln/internal/host"
	"github.com/aristath/kiln/internal/tools"
)

// CommandTask is a task declared in a build file.
type CommandTask struct {
	host.BaseTask
	spec     TaskSpec
	criteria []host.Criterion
}

// NewCommandTask compiles spec's criteria and returns the task.
func NewCommandTask(spec TaskSpec) (*CommandTask, error) {
	t := &CommandTask{spec: spec}
	for _, c := range spec.Criteria {
		crit, err := newCriterion(c)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", spec.Name, err)
		}
		t.criteria = append(t.criteria, crit)
	}
	return t, nil
}

func (t *CommandTask) TaskName() string           { return t.spec.Name }
func (t *CommandTask) Description() string        { return t.spec.Description }
func (t *CommandTask) ContinueOnError() bool      { return t.spec.ContinueOnError }
func (t *CommandTask) Criteria() []host.Criterion { return t.criteria }
func (t *CommandTask) Writes() []string           { return t.spec.Writes }

func (t *CommandTask) Dependencies() []any { return names(t.spec.DependsOn) }
func (t *CommandTask) Dependees() []any    { return names(t.spec.DependeeOf) }

func names(in []string) []any {
	out := make([]any, len(in))
	for i, n := range in {
		out[i] = n
	}
	return out
}

// Run executes the task's steps in order, stopping at the first failure.
func (t *CommandTask) Run(ctx *host.Context) error {
	return runSteps(ctx, t.spec.Run)
}

// OnError runs the onError steps. The failure is recovered when they all
// succeed; a task without onError steps keeps its error.
func (t *CommandTask) OnError(err error, ctx *host.Context) error {
	if len(t.spec.OnError) == 0 {
		return err
	}
	if stepErr := runSteps(ctx, t.spec.OnError); stepErr != nil {
		return errors.Join(err, fmt.Errorf("onError: %w", stepErr))
	}
	ctx.Log.Warn("recovered", "error", err)
	return nil
}

// Finally runs the finally steps.
func (t *CommandTask) Finally(ctx *host.Context) error {
	if len(t.spec.Finally) == 0 {
		return nil
	}
	if err := runSteps(ctx, t.spec.Finally); err != nil {
		return fmt.Errorf("finally: %w", err)
	}
	return nil
}

func runSteps(ctx *host.Context, steps []Step) error {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := ctx.Invoke(invocation(ctx, s)); err != nil {
			return err
		}
	}
	return nil
}

func invocation(ctx *host.Context, s Step) tools.Invocation {
	lookup := func(name string) string {
		if ctx.HasArgument(name) {
			return ctx.Argument(name, "")
		}
		return os.Getenv(name)
	}

	args := tools.NewArgumentBuilder()
	for _, a := range s.Args {
		args.Append(os.Expand(a, lookup))
	}
	for _, a := range s.Secrets {
		args.AppendSecret(os.Expand(a, lookup))
	}

	var env []string
	if len(s.Env) > 0 {
		keys := make([]string, 0, len(s.Env))
		for k := range s.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			env = append(env, k+"="+os.Expand(s.Env[k], lookup))
		}
	}

	return tools.Invocation{
		Tool: s.Tool,
		Args: args,
		Dir:  os.Expand(s.Dir, lookup),
		Env:  env,
	}
}
