package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/aristath/kiln/internal/config"
)

// Invocation describes one tool run.
type Invocation struct {
	Tool   string           // Alias resolved through configuration, else run as is
	Args   *ArgumentBuilder // May be nil
	Dir    string           // Working directory; empty means current
	Env    []string         // Extra KEY=VALUE entries on top of the process environment
	Output func(line string)
}

// Result is the outcome of a tool run that exited zero.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// ExitError reports a tool that ran but did not exit zero.
type ExitError struct {
	Tool   string
	Code   int
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Tool, e.Code)
	if e.Stderr != "" {
		msg += ": " + lastLine(e.Stderr)
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Options configures a Runner.
type Options struct {
	Tools     map[string]config.ToolConfig
	Processes *ProcessManager // Optional; tracks children for shutdown
	Retry     RetryConfig     // Zero value uses DefaultRetryConfig
	Logger    *slog.Logger
}

// Runner starts external tools on behalf of tasks.
type Runner struct {
	tools    map[string]config.ToolConfig
	pm       *ProcessManager
	retry    RetryConfig
	breakers *CircuitBreakerRegistry
	logger   *slog.Logger
}

// NewRunner creates a tool runner.
func NewRunner(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	retry := opts.Retry
	if retry == (RetryConfig{}) {
		retry = DefaultRetryConfig()
	}
	return &Runner{
		tools:    opts.Tools,
		pm:       opts.Processes,
		retry:    retry,
		breakers: NewCircuitBreakerRegistry(logger),
		logger:   logger,
	}
}

func (r *Runner) resolve(alias string) config.ToolConfig {
	if tc, ok := r.tools[alias]; ok && tc.Command != "" {
		return tc
	}
	return config.ToolConfig{Command: alias}
}

// Run executes inv and waits for it. A failure to start is retried up to
// the tool's configured Retries; a non-zero exit is returned as *ExitError
// without retrying.
func (r *Runner) Run(ctx context.Context, inv Invocation) (*Result, error) {
	if inv.Tool == "" {
		return nil, errors.New("no tool given")
	}
	tc := r.resolve(inv.Tool)

	args := NewArgumentBuilder(tc.Args...)
	logArgs := args.Redacted()
	if inv.Args != nil {
		args.args = append(args.args, inv.Args.args...)
		logArgs = args.Redacted()
	}
	argv := args.Args()

	cb := r.breakers.Get(inv.Tool)
	attempt := 0
	var result *Result

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		attempt++
		r.logger.Debug("running tool", "tool", inv.Tool, "command", tc.Command, "args", logArgs, "attempt", attempt)

		out, err := cb.Execute(func() (interface{}, error) {
			return r.execute(ctx, inv, tc.Command, argv)
		})
		if err != nil {
			var startErr *StartError
			switch {
			case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
				return backoff.Permanent(fmt.Errorf("tool %s unavailable: %w", inv.Tool, err))
			case ctx.Err() != nil:
				return backoff.Permanent(err)
			case errors.As(err, &startErr):
				r.logger.Warn("tool failed to start", "tool", inv.Tool, "attempt", attempt, "error", err)
				return err
			default:
				return backoff.Permanent(err)
			}
		}
		result = out.(*Result)
		return nil
	}

	if err := backoff.Retry(operation, r.retry.policy(ctx, tc.Retries)); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Runner) execute(ctx context.Context, inv Invocation, command string, argv []string) (*Result, error) {
	start := time.Now()
	cmd := newCommand(ctx, command, argv...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = append(cmd.Environ(), inv.Env...)
	}

	stdout, stderr, err := executeCommand(ctx, cmd, r.pm, inv.Output)
	if err != nil {
		var exitErr *exec.ExitError
		if ctx.Err() == nil && errors.As(err, &exitErr) {
			return nil, &ExitError{Tool: inv.Tool, Code: exitErr.ExitCode(), Stderr: string(stderr), Err: err}
		}
		return nil, err
	}

	return &Result{
		ExitCode: 0,
		Stdout:   stdout,
		Stderr:   stderr,
		Duration: time.Since(start),
	}, nil
}
