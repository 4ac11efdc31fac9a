package host

import "fmt"

// ConfigurationError reports a task graph that cannot be built. It is
// raised before any task runs.
type ConfigurationError struct {
	Task    string // Task being configured; empty for graph-wide problems
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		}
	}
	if e.Task != "" {
		return fmt.Sprintf("failed to configure task %q: %s", e.Task, msg)
	}
	return "failed to configure tasks: " + msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
