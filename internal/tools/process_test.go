package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

func TestExecuteCommand_BasicExecution(t *testing.T) {
	ctx := context.Background()
	cmd := newCommand(ctx, "echo", "hello")

	stdout, stderr, err := executeCommand(ctx, cmd, nil, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(string(stdout), "hello") {
		t.Errorf("Expected stdout to contain 'hello', got: %s", stdout)
	}
	if len(stderr) > 0 {
		t.Errorf("Expected empty stderr, got: %s", stderr)
	}
}

// TestExecuteCommand_LargeOutput verifies output larger than a pipe buffer does not deadlock.
func TestExecuteCommand_LargeOutput(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := newCommand(ctx, "bash", "-c", `for i in $(seq 1 20000); do echo "line $i of build output"; done`)

	start := time.Now()
	stdout, _, err := executeCommand(ctx, cmd, nil, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v (took %v)", err, time.Since(start))
	}

	lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
	if len(lines) != 20000 {
		t.Errorf("Expected 20000 lines of output, got %d", len(lines))
	}
}

func TestExecuteCommand_StderrCapture(t *testing.T) {
	ctx := context.Background()
	cmd := newCommand(ctx, "bash", "-c", "echo error >&2; echo ok")

	stdout, stderr, err := executeCommand(ctx, cmd, nil, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(string(stdout), "ok") {
		t.Errorf("Expected stdout to contain 'ok', got: %s", stdout)
	}
	if !strings.Contains(string(stderr), "error") {
		t.Errorf("Expected stderr to contain 'error', got: %s", stderr)
	}
}

func TestExecuteCommand_OutputLines(t *testing.T) {
	ctx := context.Background()
	cmd := newCommand(ctx, "bash", "-c", "printf 'one\\ntwo\\r\\n'; echo three >&2; printf 'tail'")

	var mu sync.Mutex
	var lines []string
	_, _, err := executeCommand(ctx, cmd, nil, func(line string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, line)
	})
	if err != nil {
		t.Fatalf("executeCommand: %v", err)
	}

	got := map[string]bool{}
	for _, l := range lines {
		got[l] = true
	}
	for _, want := range []string{"one", "two", "three", "tail"} {
		if !got[want] {
			t.Errorf("missing line %q in %q", want, lines)
		}
	}
	if len(lines) != 4 {
		t.Errorf("got %d lines, want 4: %q", len(lines), lines)
	}
}

func TestExecuteCommand_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	cmd := newCommand(ctx, "bash", "-c", "sleep 30")

	start := time.Now()
	_, _, err := executeCommand(ctx, cmd, nil, nil)
	if err == nil {
		t.Fatal("Expected error due to context cancellation, got nil")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got: %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("cancellation took %v", time.Since(start))
	}
}

func TestExecuteCommand_NonZeroExitCode(t *testing.T) {
	ctx := context.Background()
	cmd := newCommand(ctx, "bash", "-c", "echo test-output; echo broken >&2; exit 3")

	stdout, _, err := executeCommand(ctx, cmd, nil, nil)
	if err == nil {
		t.Fatal("Expected error due to non-zero exit code, got nil")
	}
	if !strings.Contains(string(stdout), "test-output") {
		t.Errorf("Expected stdout to be captured despite error, got: %s", stdout)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("Expected stderr in error, got: %v", err)
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Expected error to wrap *exec.ExitError, got %T: %v", err, err)
	}
	if code := exitErr.ExitCode(); code != 3 {
		t.Errorf("Expected exit code 3, got %d", code)
	}
}

func TestExecuteCommand_StartError(t *testing.T) {
	ctx := context.Background()
	cmd := newCommand(ctx, "kiln-definitely-not-a-real-tool")

	_, _, err := executeCommand(ctx, cmd, nil, nil)

	var startErr *StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("Expected *StartError, got %T: %v", err, err)
	}
}

func TestProcessManager_TrackAndKillAll(t *testing.T) {
	pm := NewProcessManager()

	cmd := newCommand(context.Background(), "bash", "-c", "sleep 300")
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start process: %v", err)
	}

	pm.Track(cmd)
	if pm.Count() != 1 {
		t.Errorf("Expected 1 tracked process, got %d", pm.Count())
	}

	if err := pm.KillAll(); err != nil {
		t.Errorf("KillAll: %v", err)
	}

	err := cmd.Wait()
	if err == nil {
		t.Error("Expected process to be killed (non-nil error), got nil")
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && !status.Signaled() {
			t.Errorf("Expected process to be signaled, got exit status: %v", status)
		}
	}

	pm.Untrack(cmd)
	if pm.Count() != 0 {
		t.Errorf("Expected 0 tracked processes after Untrack, got %d", pm.Count())
	}
}

func TestProcessManager_KillsProcessTree(t *testing.T) {
	pm := NewProcessManager()

	cmd := newCommand(context.Background(), "bash", "-c", "sleep 30 & wait")
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start process: %v", err)
	}

	parentPID := cmd.Process.Pid
	pm.Track(cmd)
	time.Sleep(200 * time.Millisecond)

	pm.KillAll()
	cmd.Wait()
	pm.Untrack(cmd)

	// The whole group received SIGKILL; the orphaned child may take a moment to be reaped.
	deadline := time.Now().Add(2 * time.Second)
	for syscall.Kill(-parentPID, 0) == nil {
		if time.Now().After(deadline) {
			out, _ := exec.Command("pgrep", "-g", fmt.Sprint(parentPID)).CombinedOutput()
			t.Fatalf("process group %d still alive: %s", parentPID, out)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestExecuteCommand_TracksWhileRunning(t *testing.T) {
	pm := NewProcessManager()
	ctx := context.Background()

	seen := make(chan int, 1)
	cmd := newCommand(ctx, "bash", "-c", "echo started; sleep 0.2")
	_, _, err := executeCommand(ctx, cmd, pm, func(string) {
		select {
		case seen <- pm.Count():
		default:
		}
	})
	if err != nil {
		t.Fatalf("executeCommand: %v", err)
	}

	if got := <-seen; got != 1 {
		t.Errorf("tracked while running = %d, want 1", got)
	}
	if pm.Count() != 0 {
		t.Errorf("still tracked after exit: %d", pm.Count())
	}
}
