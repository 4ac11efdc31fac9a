package script

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestLineMapTranslate(t *testing.T) {
	dir := t.TempDir()
	a := writeScript(t, dir, "a", "int x=0;", "#l b", "int y=2;")
	b := writeScript(t, dir, "b", "int z=1;", "#l c", "int p=4;")
	c := writeScript(t, dir, "c", "int o=3;", "#r d.dll")

	result, err := Analyze(a, Options{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	m := NewLineMap(result.Lines)

	tests := []struct {
		composed int
		file     string
		line     int
		ok       bool
	}{
		{composed: 1, ok: false},
		{composed: 2, file: a, line: 1, ok: true},
		{composed: 4, file: b, line: 1, ok: true},
		{composed: 6, file: c, line: 1, ok: true},
		{composed: 7, file: c, line: 2, ok: true},
		{composed: 9, file: b, line: 2, ok: true},
		{composed: 10, file: b, line: 3, ok: true},
		{composed: 12, file: a, line: 2, ok: true},
		{composed: 13, file: a, line: 3, ok: true},
		{composed: 0, ok: false},
		{composed: 14, ok: false},
	}

	for _, tt := range tests {
		loc, ok := m.Translate(tt.composed)
		if ok != tt.ok {
			t.Errorf("Translate(%d) ok = %v, want %v", tt.composed, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		if loc.File != filepath.ToSlash(tt.file) || loc.Line != tt.line {
			t.Errorf("Translate(%d) = %s:%d, want %s:%d", tt.composed, loc.File, loc.Line, tt.file, tt.line)
		}
	}
}

func TestLineMapWithoutMarkers(t *testing.T) {
	m := NewLineMap([]string{"a", "b"})
	if _, ok := m.Translate(1); ok {
		t.Error("Translate succeeded without any marker")
	}
}

func TestMarkerEscapesPath(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, `say "hi" \ build.cake`, "Information(1);")

	marker := Marker(1, path)
	want := `#line 1 "` + strings.ReplaceAll(filepath.ToSlash(dir), `\`, `\\`) + `/say \"hi\" \\ build.cake"`
	if marker != want {
		t.Fatalf("Marker = %s, want %s", marker, want)
	}

	result, err := Analyze(path, Options{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	loc, ok := NewLineMap(result.Lines).Translate(2)
	if !ok || loc.File != filepath.ToSlash(path) || loc.Line != 1 {
		t.Errorf("Translate(2) = %+v, %v, want %s:1", loc, ok, path)
	}
}
