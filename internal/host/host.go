package host

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/aristath/kiln/internal/chain"
	"github.com/aristath/kiln/internal/events"
	"github.com/aristath/kiln/internal/logging"
	"github.com/aristath/kiln/internal/orchestrator"
	"github.com/aristath/kiln/internal/scheduler"
	"github.com/aristath/kiln/internal/script"
	"github.com/aristath/kiln/internal/tools"
)

// Lifetime runs around the whole run: Setup before the first task,
// Teardown after the last one even when the run failed.
type Lifetime interface {
	Setup(ctx *Context) error
	Teardown(ctx *Context) error
}

// Options configures a Host.
type Options struct {
	Tools  *tools.Runner
	Script *script.Result
	Logger *slog.Logger
}

type registered struct {
	task    Task
	name    string
	typ     reflect.Type
	builder *scheduler.TaskBuilder
}

// Host owns the registered tasks and the graph they are configured into.
type Host struct {
	dag           *scheduler.DAG
	tasks         []registered
	configurators []TaskConfigurator
	chain         ChainProvider
	lifetime      Lifetime
	tools         *tools.Runner
	script        *script.Result
	logger        *slog.Logger
	shared        *shared

	configured   bool
	configureErr error
}

// New creates an empty host.
func New(opts Options) *Host {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Host{
		dag:    scheduler.NewDAG(),
		tools:  opts.Tools,
		script: opts.Script,
		logger: logger,
		shared: &shared{
			arguments: map[string]string{},
			data:      map[string]any{},
		},
	}
}

// Register adds tasks. Names must be unique, case-insensitively.
func (h *Host) Register(tasks ...Task) error {
	if h.configured {
		return fmt.Errorf("cannot register tasks after configuration")
	}
	for _, t := range tasks {
		if t == nil {
			return fmt.Errorf("cannot register nil task")
		}
		name := NameOf(t)
		if name == "" {
			return fmt.Errorf("task of type %T has no name", t)
		}
		b, err := h.dag.RegisterTask(name)
		if err != nil {
			return err
		}
		h.tasks = append(h.tasks, registered{task: t, name: name, typ: reflect.TypeOf(t), builder: b})
	}
	return nil
}

// UseChain sets the chain the tasks are ordered by.
func (h *Host) UseChain(p ChainProvider) {
	h.chain = p
}

// UseConfigurator adds a configurator run after the built-in ones.
func (h *Host) UseConfigurator(c TaskConfigurator) {
	h.configurators = append(h.configurators, c)
}

// UseLifetime sets the setup and teardown hooks.
func (h *Host) UseLifetime(l Lifetime) {
	h.lifetime = l
}

func (h *Host) findByType(t reflect.Type) (registered, bool) {
	want := indirect(t)
	for _, reg := range h.tasks {
		if indirect(reg.typ) == want {
			return reg, true
		}
	}
	return registered{}, false
}

// Configure wires every registered task into the graph and validates it.
// It runs once; later calls return the first result.
func (h *Host) Configure() error {
	if h.configured {
		return h.configureErr
	}
	h.configured = true
	h.configureErr = h.configure()
	return h.configureErr
}

func (h *Host) configure() error {
	configurators := []TaskConfigurator{taskConfigurator{host: h}}

	if h.chain != nil {
		item := h.chain.GetChain()
		if !item.Valid() {
			return &ConfigurationError{Message: "chain provider returned no chain"}
		}
		configurators = append(configurators, chainConfigurator{host: h, chain: item.Chain()})
	}
	configurators = append(configurators, h.configurators...)

	for _, reg := range h.tasks {
		for _, c := range configurators {
			if err := c.Configure(reg.task, reg.builder); err != nil {
				return err
			}
		}
		h.logger.Debug("configured task", "task", reg.name, "dependencies", h.dag.Dependencies(reg.name))
	}

	if _, err := h.dag.Validate(); err != nil {
		return &ConfigurationError{Err: err}
	}
	return nil
}

// DAG returns the task graph. Call Configure first for dependencies to be present.
func (h *Host) DAG() *scheduler.DAG {
	return h.dag
}

// Chain returns the configured chain, if any.
func (h *Host) Chain() (*chain.Chain, bool) {
	if h.chain == nil {
		return nil, false
	}
	item := h.chain.GetChain()
	if !item.Valid() {
		return nil, false
	}
	return item.Chain(), true
}

// RunOptions configures one run.
type RunOptions struct {
	Concurrency int
	Exclusive   bool
	Arguments   map[string]string
	Bus         *events.EventBus
	Recorder    orchestrator.Recorder
}

// Run configures the host if needed and runs target.
func (h *Host) Run(ctx context.Context, target string, opts RunOptions) (*orchestrator.Report, error) {
	if err := h.Configure(); err != nil {
		return nil, err
	}

	h.shared.mu.Lock()
	h.shared.target = target
	for k, v := range opts.Arguments {
		h.shared.arguments[k] = v
	}
	h.shared.mu.Unlock()

	ctx = logging.WithLogger(ctx, h.logger)

	cfg := orchestrator.Config{
		Concurrency: opts.Concurrency,
		Exclusive:   opts.Exclusive,
		Bus:         opts.Bus,
		Recorder:    opts.Recorder,
		Logger:      h.logger,
	}
	if h.lifetime != nil {
		cfg.Setup = func(ctx context.Context) error {
			return h.lifetime.Setup(h.newContext(ctx))
		}
		cfg.Teardown = func(ctx context.Context) error {
			return h.lifetime.Teardown(h.newContext(ctx))
		}
	}

	return orchestrator.NewRunner(cfg, h.dag, nil).Run(ctx, target)
}
