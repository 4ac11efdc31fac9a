package tools

import (
	"reflect"
	"testing"
)

func TestArgumentBuilder(t *testing.T) {
	tests := []struct {
		name         string
		build        func(b *ArgumentBuilder)
		wantArgs     []string
		wantRedacted []string
		wantRender   string
	}{
		{
			name:         "plain values",
			build:        func(b *ArgumentBuilder) { b.Append("build").Append("./...") },
			wantArgs:     []string{"build", "./..."},
			wantRedacted: []string{"build", "./..."},
			wantRender:   "build ./...",
		},
		{
			name:         "quoted value",
			build:        func(b *ArgumentBuilder) { b.Append("test").AppendQuoted("My Project.csproj") },
			wantArgs:     []string{"test", "My Project.csproj"},
			wantRedacted: []string{"test", "My Project.csproj"},
			wantRender:   `test "My Project.csproj"`,
		},
		{
			name: "switches",
			build: func(b *ArgumentBuilder) {
				b.AppendSwitch("--configuration", " ", "Release").AppendSwitch("-p:Version", "=", "1.2.3")
			},
			wantArgs:     []string{"--configuration", "Release", "-p:Version=1.2.3"},
			wantRedacted: []string{"--configuration", "Release", "-p:Version=1.2.3"},
			wantRender:   "--configuration Release -p:Version=1.2.3",
		},
		{
			name: "secrets",
			build: func(b *ArgumentBuilder) {
				b.Append("push").AppendSecret("hunter2").AppendSwitchSecret("--api-key", " ", "abc123")
			},
			wantArgs:     []string{"push", "hunter2", "--api-key", "abc123"},
			wantRedacted: []string{"push", "[REDACTED]", "--api-key", "[REDACTED]"},
			wantRender:   "push [REDACTED] --api-key [REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewArgumentBuilder()
			tt.build(b)

			if got := b.Args(); !reflect.DeepEqual(got, tt.wantArgs) {
				t.Errorf("Args() = %q, want %q", got, tt.wantArgs)
			}
			if got := b.Redacted(); !reflect.DeepEqual(got, tt.wantRedacted) {
				t.Errorf("Redacted() = %q, want %q", got, tt.wantRedacted)
			}
			if got := b.Render(); got != tt.wantRender {
				t.Errorf("Render() = %q, want %q", got, tt.wantRender)
			}
		})
	}
}

func TestArgumentBuilder_Seeded(t *testing.T) {
	b := NewArgumentBuilder("vet", "./...")
	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2", b.Len())
	}
	if b.String() != "vet ./..." {
		t.Errorf("String() = %q", b.String())
	}
}
