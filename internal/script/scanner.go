package script

import (
	"strings"
	"unicode"
)

// Kind classifies a single script line.
type Kind int

const (
	KindCode          Kind = iota // Plain code, copied through
	KindShebang                   // #! on the first line of the root script
	KindReference                 // #r / #reference
	KindLoad                      // #l / #load
	KindAddin                     // #addin
	KindTool                      // #tool
	KindNamespace                 // using X;
	KindAlias                     // using A = B.C;
	KindResourceScope             // using (...) or using var ...
	KindBreak                     // #break
)

// DebuggerBreak replaces a #break directive in composed output.
const DebuggerBreak = "if (System.Diagnostics.Debugger.IsAttached) { System.Diagnostics.Debugger.Break(); }"

var kindNames = map[Kind]string{
	KindCode:          "code",
	KindShebang:       "shebang",
	KindReference:     "reference",
	KindLoad:          "load",
	KindAddin:         "addin",
	KindTool:          "tool",
	KindNamespace:     "namespace",
	KindAlias:         "alias",
	KindResourceScope: "resource-scope",
	KindBreak:         "break",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Line is the scanner's view of one physical script line.
type Line struct {
	Kind    Kind
	Text    string   // Original text, untouched
	Args    []string // Directive arguments (quotes removed)
	Payload string   // Namespace name or raw alias statement for using lines

	// Locator is filled in by the resolver for addin and tool lines.
	Locator PackageLocator
}

// Directive reports whether the line is anything other than plain code.
func (l Line) Directive() bool {
	return l.Kind != KindCode && l.Kind != KindResourceScope
}

// Arg returns the i-th directive argument or "".
func (l Line) Arg(i int) string {
	if i < len(l.Args) {
		return l.Args[i]
	}
	return ""
}

// Composed returns the text emitted for this line in the composed script.
func (l Line) Composed() string {
	switch l.Kind {
	case KindCode, KindResourceScope:
		return l.Text
	case KindBreak:
		indent := l.Text[:len(l.Text)-len(strings.TrimLeftFunc(l.Text, unicode.IsSpace))]
		return indent + DebuggerBreak
	default:
		return "// " + l.Text
	}
}

// Classify scans a single line. first is true only for line 1 of the root script.
func Classify(text string, first bool) Line {
	ln := Line{Kind: KindCode, Text: text}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ln
	}

	if first && strings.HasPrefix(trimmed, "#!") {
		ln.Kind = KindShebang
		return ln
	}

	hashed := strings.HasPrefix(trimmed, "#")
	keyword, rest := splitKeyword(strings.TrimPrefix(trimmed, "#"))

	switch keyword {
	case "r", "reference", "l", "load", "addin", "tool":
		args, ok := parseArguments(rest, hashed)
		if !ok {
			return ln
		}
		ln.Args = args
		ln.Kind = directiveKinds[keyword]

	case "break":
		if hashed && rest == "" {
			ln.Kind = KindBreak
		}

	case "using":
		if !hashed {
			classifyUsing(&ln, trimmed, rest)
		}
	}

	return ln
}

var directiveKinds = map[string]Kind{
	"r":         KindReference,
	"reference": KindReference,
	"l":         KindLoad,
	"load":      KindLoad,
	"addin":     KindAddin,
	"tool":      KindTool,
}

// splitKeyword splits the leading word off a line body.
func splitKeyword(body string) (string, string) {
	i := strings.IndexFunc(body, func(r rune) bool {
		return unicode.IsSpace(r) || r == '"' || r == '(' || r == ';'
	})
	if i < 0 {
		return body, ""
	}
	return body[:i], strings.TrimSpace(body[i:])
}

// parseArguments reads directive arguments. Without a leading # the payload
// must be quoted so that ordinary assignments like `l = 5;` stay code.
func parseArguments(rest string, hashed bool) ([]string, bool) {
	if rest == "" {
		return nil, false
	}

	if rest[0] != '"' {
		if !hashed {
			return nil, false
		}
		return strings.Fields(strings.TrimSuffix(rest, ";")), true
	}

	var args []string
	for rest != "" && rest[0] == '"' {
		end := strings.IndexByte(rest[1:], '"')
		if end < 0 {
			return nil, false
		}
		args = append(args, rest[1:end+1])
		rest = strings.TrimSpace(rest[end+2:])
	}
	return args, len(args) > 0
}

func classifyUsing(ln *Line, trimmed, rest string) {
	if rest == "" {
		return
	}

	if strings.HasPrefix(rest, "(") || strings.HasPrefix(rest, "var ") {
		ln.Kind = KindResourceScope
		return
	}

	semi := strings.IndexByte(rest, ';')
	if semi < 0 {
		return
	}
	stmt := strings.TrimSpace(rest[:semi])

	if strings.Contains(stmt, "=") {
		ln.Kind = KindAlias
		ln.Payload = trimmed[:strings.IndexByte(trimmed, ';')+1]
		return
	}

	if isQualifiedName(strings.TrimPrefix(stmt, "static ")) {
		ln.Kind = KindNamespace
		ln.Payload = stmt
	}
}

func isQualifiedName(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
				continue
			}
			return false
		}
	}
	return true
}
