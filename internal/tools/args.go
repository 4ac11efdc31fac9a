package tools

import (
	"strings"
)

const redacted = "[REDACTED]"

type argument struct {
	name   string // switch name, empty for positional values
	sep    string // between name and value; " " yields two argv entries
	value  string
	quoted bool
	secret bool
}

func (a argument) argv(hide bool) []string {
	value := a.value
	if a.secret && hide {
		value = redacted
	}
	if a.name == "" {
		return []string{value}
	}
	if a.sep == " " {
		return []string{a.name, value}
	}
	return []string{a.name + a.sep + value}
}

func (a argument) render(hide bool) string {
	value := a.value
	if a.secret && hide {
		value = redacted
	}
	if a.quoted || (value != "" && strings.ContainsAny(value, " \t\"")) {
		value = quote(value)
	}
	if a.name == "" {
		return value
	}
	return a.name + a.sep + value
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// ArgumentBuilder accumulates tool arguments. Secret values are passed to
// the process unchanged but masked in Redacted and Render output meant for
// logs.
type ArgumentBuilder struct {
	args []argument
}

// NewArgumentBuilder returns a builder seeded with plain values.
func NewArgumentBuilder(values ...string) *ArgumentBuilder {
	b := &ArgumentBuilder{}
	for _, v := range values {
		b.Append(v)
	}
	return b
}

// Append adds a plain value.
func (b *ArgumentBuilder) Append(value string) *ArgumentBuilder {
	b.args = append(b.args, argument{value: value})
	return b
}

// AppendQuoted adds a value that is always quoted when rendered.
func (b *ArgumentBuilder) AppendQuoted(value string) *ArgumentBuilder {
	b.args = append(b.args, argument{value: value, quoted: true})
	return b
}

// AppendSwitch adds name and value joined by sep, e.g. ("--configuration", "=", "Release").
func (b *ArgumentBuilder) AppendSwitch(name, sep, value string) *ArgumentBuilder {
	b.args = append(b.args, argument{name: name, sep: sep, value: value})
	return b
}

// AppendSecret adds a value hidden from logs.
func (b *ArgumentBuilder) AppendSecret(value string) *ArgumentBuilder {
	b.args = append(b.args, argument{value: value, secret: true})
	return b
}

// AppendSwitchSecret adds a switch whose value is hidden from logs.
func (b *ArgumentBuilder) AppendSwitchSecret(name, sep, value string) *ArgumentBuilder {
	b.args = append(b.args, argument{name: name, sep: sep, value: value, secret: true})
	return b
}

// Len returns the number of appended arguments.
func (b *ArgumentBuilder) Len() int { return len(b.args) }

// Args returns the argv passed to the process.
func (b *ArgumentBuilder) Args() []string {
	return b.argv(false)
}

// Redacted returns the argv with secrets masked.
func (b *ArgumentBuilder) Redacted() []string {
	return b.argv(true)
}

func (b *ArgumentBuilder) argv(hide bool) []string {
	out := make([]string, 0, len(b.args))
	for _, a := range b.args {
		out = append(out, a.argv(hide)...)
	}
	return out
}

// Render returns a display form of the full command line with secrets masked.
func (b *ArgumentBuilder) Render() string {
	parts := make([]string, 0, len(b.args))
	for _, a := range b.args {
		parts = append(parts, a.render(true))
	}
	return strings.Join(parts, " ")
}

// String implements fmt.Stringer; secrets are masked.
func (b *ArgumentBuilder) String() string { return b.Render() }
