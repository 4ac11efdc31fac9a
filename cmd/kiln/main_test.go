package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/aristath/kiln/internal/script"
	"github.com/aristath/kiln/internal/tools"
)

// execute runs the root command with args in an isolated home directory.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    map[string]string
		wantErr bool
	}{
		{name: "pairs", in: []string{"configuration=Release", "verbosity=quiet"}, want: map[string]string{"configuration": "Release", "verbosity": "quiet"}},
		{name: "bare key", in: []string{"pack"}, want: map[string]string{"pack": "true"}},
		{name: "value with equals", in: []string{"filter=a=b"}, want: map[string]string{"filter": "a=b"}},
		{name: "empty value", in: []string{"suffix="}, want: map[string]string{"suffix": ""}},
		{name: "missing key", in: []string{"=x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestPrintError_Analysis(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	err = &script.AnalysisError{
		Path: "build.cake",
		Diagnostics: []script.Diagnostic{
			{File: filepath.Join(cwd, "build.cake"), Line: 3, Message: `could not find script '/x/missing.cake'`},
			{File: filepath.Join(cwd, "lib", "util.cake"), Line: 1, Message: "maximum include depth of 1 exceeded loading 'deep.cake'"},
		},
	}

	var out bytes.Buffer
	printError(&out, err)

	want := "Error: failed to analyze script 'build.cake'\n" +
		"build.cake, line #3: could not find script '/x/missing.cake'\n" +
		filepath.Join("lib", "util.cake") + ", line #1: maximum include depth of 1 exceeded loading 'deep.cake'\n"
	if out.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestComposeCommand(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "build.cake")
	writeFile(t, root, "#load \"lib.cake\"\nTask(\"Default\");\n")
	writeFile(t, filepath.Join(dir, "lib.cake"), "#addin \"nuget:?package=Cake.Git\"\nvoid Helper() {}\n")

	out, err := execute(t, "compose", root)
	if err != nil {
		t.Fatalf("compose: %v\n%s", err, out)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if want := `#line 1 "` + filepath.ToSlash(root) + `"`; lines[0] != want {
		t.Errorf("first line = %q, want %q", lines[0], want)
	}
	if !strings.Contains(out, "void Helper() {}") {
		t.Errorf("included script missing:\n%s", out)
	}

	out, err = execute(t, "compose", "--metadata", root)
	if err != nil {
		t.Fatalf("compose --metadata: %v", err)
	}
	for _, want := range []string{"nuget:?package=Cake.Git", "depth: 1", filepath.ToSlash(filepath.Join(dir, "lib.cake"))} {
		if !strings.Contains(filepath.ToSlash(out), want) {
			t.Errorf("metadata missing %q:\n%s", want, out)
		}
	}
}

func TestComposeCommand_MissingInclude(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "build.cake")
	writeFile(t, root, "#load \"missing.cake\"\n")

	_, err := execute(t, "compose", root)
	if err == nil {
		t.Fatal("expected analysis error")
	}
	var out bytes.Buffer
	printError(&out, err)
	if !strings.Contains(out.String(), "line #1:") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "kiln.yaml")
	writeFile(t, file, `
tasks:
  - name: Greet
    run:
      - tool: bash
        args: [-c, "echo hello ${WHO}"]
  - name: Publish
    criteria:
      - when: '"publish" in args'
        message: publishing disabled
    run: [{tool: bash, args: [-c, "echo published"]}]
chain: [Greet, Publish]
`)

	out, err := execute(t, "run", "--file", file, "--no-history", "--arg", "WHO=world")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	for _, want := range []string{"hello world", "publishing disabled", "completed", "skipped"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "published") {
		t.Errorf("skipped task ran:\n%s", out)
	}
}

func TestRunCommand_Failure(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "kiln.yaml")
	writeFile(t, file, `
tasks:
  - name: Default
    run: [{tool: bash, args: [-c, "exit 7"]}]
`)

	out, err := execute(t, "run", "--file", file, "--no-history")
	if err == nil {
		t.Fatalf("expected failure:\n%s", out)
	}
	if !strings.Contains(err.Error(), "code 7") {
		t.Errorf("error = %v", err)
	}
}

func TestConfigInit(t *testing.T) {
	out, err := execute(t, "config", "init", "--global")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	path := filepath.Join(os.Getenv("HOME"), ".kiln", "config.json")
	if !strings.Contains(out, path) {
		t.Errorf("output = %q, want it to name %s", out, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
}

// TestProcessManagerKillAllOnShutdown verifies that KillAll terminates
// tracked tool processes the way run does on interrupt.
func TestProcessManagerKillAllOnShutdown(t *testing.T) {
	pm := tools.NewProcessManager()

	cmd := exec.Command("sleep", "60")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start subprocess: %v", err)
	}
	pm.Track(cmd)

	if count := pm.Count(); count != 1 {
		t.Errorf("Expected 1 tracked process, got %d", count)
	}
	if err := pm.KillAll(); err != nil {
		t.Errorf("KillAll() failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected process to be killed (non-zero exit), got nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Process did not terminate after KillAll()")
	}
}
