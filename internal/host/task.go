// Package host registers build tasks with the execution graph and wires
// them according to a task chain.
package host

import (
	"reflect"
)

// Task is a build task. Implementations embed BaseTask and opt into
// behaviour through the interfaces below. A task without Run only orders
// other tasks.
type Task interface {
	isTask()
}

// BaseTask makes a struct a Task.
type BaseTask struct{}

func (BaseTask) isTask() {}

// Runnable tasks have a body.
type Runnable interface {
	Run(ctx *Context) error
}

// Conditional tasks are skipped when ShouldRun returns false.
type Conditional interface {
	ShouldRun(ctx *Context) bool
}

// SkipMessager supplies the message reported when ShouldRun returns false.
type SkipMessager interface {
	SkipMessage() string
}

// Criterion is one additional skip condition.
type Criterion struct {
	Predicate func(ctx *Context) (bool, error)
	Message   string
}

// CriteriaProvider tasks declare skip conditions evaluated in order.
type CriteriaProvider interface {
	Criteria() []Criterion
}

// ErrorHandler tasks observe their own failure. Returning nil recovers.
type ErrorHandler interface {
	OnError(err error, ctx *Context) error
}

// Finalizer tasks run Finally after the body, whether it failed or not.
type Finalizer interface {
	Finally(ctx *Context) error
}

// Describer tasks have a description.
type Describer interface {
	Description() string
}

// Named tasks choose their own name instead of their type name.
type Named interface {
	TaskName() string
}

// ErrorTolerant tasks let the run continue when they fail.
type ErrorTolerant interface {
	ContinueOnError() bool
}

// Dependent tasks declare tasks they depend on. Each element is a task
// name, a Task value or the reflect.Type of a task.
type Dependent interface {
	Dependencies() []any
}

// Dependee tasks declare tasks that depend on them, in the same forms as Dependent.
type Dependee interface {
	Dependees() []any
}

// FileWriter tasks declare paths they write; tasks sharing a path never overlap.
type FileWriter interface {
	Writes() []string
}

var taskType = reflect.TypeFor[Task]()

// NameOf returns the name a task registers under: TaskName when the task
// is Named, otherwise its type name.
func NameOf(t Task) string {
	if n, ok := t.(Named); ok {
		if name := n.TaskName(); name != "" {
			return name
		}
	}
	return typeName(reflect.TypeOf(t))
}

func indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func typeName(t reflect.Type) string {
	if t = indirect(t); t == nil {
		return ""
	}
	return t.Name()
}

// isTaskType reports whether t or a pointer to it implements Task.
func isTaskType(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Implements(taskType) {
		return true
	}
	return t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(taskType)
}
