package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sony/gobreaker"
)

func TestCircuitBreakerRegistry_PerTool(t *testing.T) {
	reg := NewCircuitBreakerRegistry(nil)

	if reg.Get("dotnet") != reg.Get("dotnet") {
		t.Error("expected the same breaker for the same tool")
	}
	if reg.Get("dotnet") == reg.Get("go") {
		t.Error("expected different breakers for different tools")
	}
}

func TestCircuitBreaker_TripsOnStartFailures(t *testing.T) {
	cb := NewCircuitBreakerRegistry(nil).Get("missing")
	startErr := &StartError{Command: "missing", Err: errors.New("executable file not found")}

	for range 5 {
		cb.Execute(func() (interface{}, error) { return nil, startErr })
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}
	_, err := cb.Execute(func() (interface{}, error) { return nil, nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("err = %v, want ErrOpenState", err)
	}
}

func TestIsBreakerSuccess(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"canceled", context.Canceled, true},
		{"deadline wrapped", fmt.Errorf("run: %w", context.DeadlineExceeded), true},
		{"exit error", &ExitError{Tool: "go", Code: 1}, true},
		{"start error", &StartError{Command: "go", Err: errors.New("nope")}, false},
		{"other", errors.New("pipe"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isBreakerSuccess(tt.err); got != tt.want {
				t.Errorf("isBreakerSuccess(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
