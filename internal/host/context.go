package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aristath/kiln/internal/events"
	"github.com/aristath/kiln/internal/logging"
	"github.com/aristath/kiln/internal/script"
	"github.com/aristath/kiln/internal/tools"
)

// shared is the state every task of one host reads and writes.
type shared struct {
	mu        sync.RWMutex
	target    string
	arguments map[string]string
	data      map[string]any
}

// Context is passed to task bodies and hooks. It is a context.Context for
// the running task plus the run's target, arguments and shared data.
type Context struct {
	context.Context
	Log    *slog.Logger
	Tools  *tools.Runner
	Script *script.Result // Analysed build script, if any

	shared *shared
}

// Target returns the task the run was started for.
func (c *Context) Target() string {
	c.shared.mu.RLock()
	defer c.shared.mu.RUnlock()
	return c.shared.target
}

// Argument returns the named run argument, or fallback when absent.
func (c *Context) Argument(name, fallback string) string {
	c.shared.mu.RLock()
	defer c.shared.mu.RUnlock()
	if v, ok := c.shared.arguments[name]; ok {
		return v
	}
	return fallback
}

// HasArgument reports whether the run was given the named argument.
func (c *Context) HasArgument(name string) bool {
	c.shared.mu.RLock()
	defer c.shared.mu.RUnlock()
	_, ok := c.shared.arguments[name]
	return ok
}

// Arguments returns a copy of the run arguments.
func (c *Context) Arguments() map[string]string {
	c.shared.mu.RLock()
	defer c.shared.mu.RUnlock()
	out := make(map[string]string, len(c.shared.arguments))
	for k, v := range c.shared.arguments {
		out[k] = v
	}
	return out
}

// Set stores a value visible to later tasks.
func (c *Context) Set(key string, value any) {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()
	c.shared.data[key] = value
}

// Get returns a value stored by Set.
func (c *Context) Get(key string) (any, bool) {
	c.shared.mu.RLock()
	defer c.shared.mu.RUnlock()
	v, ok := c.shared.data[key]
	return v, ok
}

// Exec runs a tool and streams its output to the run's listeners.
func (c *Context) Exec(tool string, args *tools.ArgumentBuilder) (*tools.Result, error) {
	return c.Invoke(tools.Invocation{Tool: tool, Args: args})
}

// Invoke runs inv with the task's output sink when inv sets none.
func (c *Context) Invoke(inv tools.Invocation) (*tools.Result, error) {
	if c.Tools == nil {
		return nil, errors.New("no tool runner configured")
	}
	if inv.Args != nil {
		c.Log.Info("exec", "tool", inv.Tool, "args", inv.Args.Render())
	}
	if inv.Output == nil {
		inv.Output = events.OutputFrom(c)
	}
	res, err := c.Tools.Run(c, inv)
	if err != nil {
		return nil, fmt.Errorf("exec %s: %w", inv.Tool, err)
	}
	return res, nil
}

func (h *Host) newContext(ctx context.Context) *Context {
	return &Context{
		Context: ctx,
		Log:     logging.FromContext(ctx),
		Tools:   h.tools,
		Script:  h.script,
		shared:  h.shared,
	}
}
