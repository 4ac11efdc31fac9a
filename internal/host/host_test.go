package host

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aristath/kiln/internal/chain"
	"github.com/aristath/kiln/internal/scheduler"
)

var errBoom = errors.New("boom")

// journal records task activity in order.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) got() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// step is a named task whose behaviour is set per test.
type step struct {
	BaseTask
	name string
	j    *journal
	fail error
}

func (s *step) TaskName() string { return s.name }

func (s *step) Run(ctx *Context) error {
	s.j.add(s.name)
	return s.fail
}

// placeholder has no body.
type placeholder struct {
	BaseTask
	name string
}

func (p *placeholder) TaskName() string { return p.name }

// Typed tasks for chains declared by type.
type Restore struct{ BaseTask }
type Compile struct{ BaseTask }

func newStep(name string, j *journal) *step { return &step{name: name, j: j} }

func deps(t *testing.T, h *Host, name string) []string {
	t.Helper()
	got := h.DAG().Dependencies(name)
	sort.Strings(got)
	return got
}

func mustRegister(t *testing.T, h *Host, tasks ...Task) {
	t.Helper()
	if err := h.Register(tasks...); err != nil {
		t.Fatalf("Register: %v", err)
	}
}

func TestConfigure_ChainWithGroup(t *testing.T) {
	j := &journal{}
	h := New(Options{})
	mustRegister(t, h,
		newStep("A", j), newStep("B", j), newStep("C", j), newStep("D", j),
		&placeholder{name: "Default"},
	)
	h.UseChain(ChainFunc(func() chain.Item {
		return chain.New().Task("A").
			Group("compile", func(head chain.Item) { head.Task("B").Task("C") }).
			Task("D")
	}))

	if err := h.Configure(); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	tests := []struct {
		task string
		want []string
	}{
		{"A", nil},
		{"B", []string{"a"}},
		{"C", []string{"b"}},
		{"D", []string{"b", "c"}},
		{"Default", []string{"d"}},
	}
	for _, tt := range tests {
		if got := deps(t, h, tt.task); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("deps(%s) = %v, want %v", tt.task, got, tt.want)
		}
	}
}

func TestConfigure_DefaultFollowsTrailingGroup(t *testing.T) {
	j := &journal{}
	h := New(Options{})
	mustRegister(t, h, newStep("Lint", j), newStep("Unit", j), newStep("Integration", j), &placeholder{name: "default"})
	h.UseChain(ChainFunc(func() chain.Item {
		return chain.New().Task("Lint").Group("tests", func(head chain.Item) {
			head.Task("Unit").Task("Integration")
		})
	}))

	if err := h.Configure(); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if got := deps(t, h, "default"); !reflect.DeepEqual(got, []string{"integration"}) {
		t.Errorf("deps(default) = %v", got)
	}
}

func TestConfigure_ChainByType(t *testing.T) {
	h := New(Options{})
	mustRegister(t, h, &Restore{}, Compile{})
	h.UseChain(ChainFunc(func() chain.Item {
		return chain.Then[*Compile](chain.TaskOf[Restore](chain.New()))
	}))

	if err := h.Configure(); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if got := deps(t, h, "Compile"); !reflect.DeepEqual(got, []string{"restore"}) {
		t.Errorf("deps(Compile) = %v", got)
	}
}

func TestConfigure_DefaultInChainHasNoSelfDependency(t *testing.T) {
	j := &journal{}
	h := New(Options{})
	mustRegister(t, h, newStep("Build", j), &placeholder{name: "Default"})
	h.UseChain(ChainFunc(func() chain.Item { return chain.New().Task("Build").Task("Default") }))

	if err := h.Configure(); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if got := deps(t, h, "Default"); !reflect.DeepEqual(got, []string{"build"}) {
		t.Errorf("deps(Default) = %v", got)
	}
}

func TestConfigure_MissingChain(t *testing.T) {
	h := New(Options{})
	mustRegister(t, h, &placeholder{name: "Default"})
	h.UseChain(ChainFunc(func() chain.Item { return chain.Item{} }))

	err := h.Configure()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "no chain") {
		t.Errorf("error = %v", err)
	}
}

func TestConfigure_ChainRefersToUnregisteredTask(t *testing.T) {
	j := &journal{}
	h := New(Options{})
	mustRegister(t, h, newStep("Build", j))
	h.UseChain(ChainFunc(func() chain.Item { return chain.New().Task("Ghost").Task("Build") }))

	err := h.Configure()
	if err == nil || !strings.Contains(err.Error(), "Ghost") {
		t.Errorf("err = %v, want mention of Ghost", err)
	}
}

// explicit declares dependencies in every supported form.
type explicit struct {
	BaseTask
	name      string
	dependsOn []any
	dependees []any
}

func (e *explicit) TaskName() string  { return e.name }
func (e *explicit) Dependencies() []any { return e.dependsOn }
func (e *explicit) Dependees() []any    { return e.dependees }

func TestConfigure_ExplicitDependencies(t *testing.T) {
	h := New(Options{})
	mustRegister(t, h,
		&Restore{},
		&placeholder{name: "Publish"},
		&explicit{
			name:      "Pack",
			dependsOn: []any{reflect.TypeFor[*Restore](), "publish"},
			dependees: []any{&placeholder{name: "Publish"}},
		},
	)

	// Pack depends on Publish and Publish depends on Pack: a cycle.
	err := h.Configure()
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("err = %v, want cycle", err)
	}
}

func TestConfigure_ExplicitDependenciesResolve(t *testing.T) {
	h := New(Options{})
	mustRegister(t, h,
		&Restore{},
		&placeholder{name: "Publish"},
		&explicit{
			name:      "Pack",
			dependsOn: []any{reflect.TypeFor[Restore]()},
			dependees: []any{&placeholder{name: "Publish"}},
		},
	)

	if err := h.Configure(); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if got := deps(t, h, "Pack"); !reflect.DeepEqual(got, []string{"restore"}) {
		t.Errorf("deps(Pack) = %v", got)
	}
	if got := deps(t, h, "Publish"); !reflect.DeepEqual(got, []string{"pack"}) {
		t.Errorf("deps(Publish) = %v", got)
	}
}

func TestConfigure_InvalidExplicitReferences(t *testing.T) {
	tests := []struct {
		name       string
		dependsOn  []any
		dependees  []any
		wantSubstr string
	}{
		{name: "non-task type", dependsOn: []any{reflect.TypeFor[strings.Builder]()}, wantSubstr: "strings.Builder is not a task"},
		{name: "non-task value", dependsOn: []any{42}, wantSubstr: "int is not a task"},
		{name: "unregistered name", dependsOn: []any{"Deploy"}, wantSubstr: `"Deploy" is not registered`},
		{name: "unregistered type", dependsOn: []any{reflect.TypeFor[Compile]()}, wantSubstr: "Compile is not registered"},
		{name: "non-task dependee", dependees: []any{struct{}{}}, wantSubstr: "is not a task"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &journal{}
			h := New(Options{})
			mustRegister(t, h, newStep("Build", j), &explicit{name: "Pack", dependsOn: tt.dependsOn, dependees: tt.dependees})

			_, err := h.Run(context.Background(), "Pack", RunOptions{})

			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigurationError, got %T: %v", err, err)
			}
			if cfgErr.Task != "Pack" {
				t.Errorf("Task = %q, want Pack", cfgErr.Task)
			}
			if !strings.Contains(err.Error(), tt.wantSubstr) {
				t.Errorf("error %q does not mention %q", err, tt.wantSubstr)
			}
			if len(j.got()) != 0 {
				t.Errorf("tasks ran despite configuration error: %v", j.got())
			}
		})
	}
}

func TestConfigure_RunsOnce(t *testing.T) {
	h := New(Options{})
	mustRegister(t, h, &placeholder{name: "Default"})

	calls := 0
	h.UseConfigurator(configuratorFunc(func(task Task, b *scheduler.TaskBuilder) error {
		calls++
		return nil
	}))

	for range 3 {
		if err := h.Configure(); err != nil {
			t.Fatalf("Configure: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("configurator called %d times, want 1", calls)
	}
	if err := h.Register(&placeholder{name: "Late"}); err == nil {
		t.Error("expected error registering after configuration")
	}
}

type configuratorFunc func(task Task, b *scheduler.TaskBuilder) error

func (f configuratorFunc) Configure(task Task, b *scheduler.TaskBuilder) error { return f(task, b) }

func TestRegister_DuplicateName(t *testing.T) {
	h := New(Options{})
	mustRegister(t, h, &placeholder{name: "Build"})
	if err := h.Register(&placeholder{name: "build"}); err == nil {
		t.Error("expected duplicate name error")
	}
}

func TestNameOf(t *testing.T) {
	if got := NameOf(&Restore{}); got != "Restore" {
		t.Errorf("NameOf(*Restore) = %q", got)
	}
	if got := NameOf(Compile{}); got != "Compile" {
		t.Errorf("NameOf(Compile) = %q", got)
	}
	if got := NameOf(&placeholder{name: "Custom"}); got != "Custom" {
		t.Errorf("NameOf(placeholder) = %q", got)
	}
}
