package script

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Result is a fully analyzed script: the unit tree, its flattened metadata
// and the composed source.
type Result struct {
	Root *Unit

	References   []string
	Namespaces   []string
	UsingAliases []string
	Addins       []PackageLocator
	Tools        []PackageLocator

	Lines []string
}

// Analyze resolves the script at path and composes it.
func Analyze(path string, opts Options) (*Result, error) {
	root, err := NewResolver(opts).Resolve(path)
	if err != nil {
		return nil, err
	}

	result := &Result{Root: root}
	collect(root, result)
	result.Lines = Compose(root)
	return result, nil
}

// collect gathers metadata in discovery order: a child's entries appear at
// the position of the load directive that brought it in.
func collect(u *Unit, into *Result) {
	child := 0
	for _, ln := range u.Scanned {
		switch ln.Kind {
		case KindReference:
			into.References = appendUnique(into.References, ln.Arg(0))
		case KindNamespace:
			into.Namespaces = appendUnique(into.Namespaces, ln.Payload)
		case KindAlias:
			into.UsingAliases = appendUnique(into.UsingAliases, ln.Payload)
		case KindAddin:
			into.Addins = appendUnique(into.Addins, ln.Locator)
		case KindTool:
			into.Tools = appendUnique(into.Tools, ln.Locator)
		case KindLoad:
			collect(u.Includes[child], into)
			child++
		}
	}
}

// Compose flattens the unit tree into one line sequence, interleaving
// #line markers so every emitted line maps back to its origin.
func Compose(root *Unit) []string {
	var out []string
	composeUnit(root, &out)
	return out
}

func composeUnit(u *Unit, out *[]string) {
	*out = append(*out, Marker(1, u.Path))

	child := 0
	for i, ln := range u.Scanned {
		if ln.Kind == KindLoad {
			composeUnit(u.Includes[child], out)
			child++
			*out = append(*out, Marker(i+1, u.Path))
		}
		*out = append(*out, ln.Composed())
	}
}

var markerEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Marker returns a line position marker. Backslashes and quotes in path are
// escaped.
func Marker(line int, path string) string {
	return fmt.Sprintf("#line %d \"%s\"", line, markerEscaper.Replace(filepath.ToSlash(path)))
}
