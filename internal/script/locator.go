package script

import (
	"net/url"
	"strings"
)

// DefaultScheme is used for addin and tool ids that carry no scheme.
const DefaultScheme = "nuget"

// PackageLocator identifies an addin or tool package.
type PackageLocator struct {
	OriginalString string
}

// NewPackageLocator builds a locator from a directive id and optional source.
// An id that already parses as an absolute URI is passed through unchanged.
func NewPackageLocator(id, source, scheme string) PackageLocator {
	if hasScheme(id) {
		return PackageLocator{OriginalString: id}
	}

	if scheme == "" {
		scheme = DefaultScheme
	}

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString(":")
	if source != "" {
		b.WriteString(strings.TrimRight(source, "/"))
		b.WriteString("/")
	}
	b.WriteString("?package=")
	b.WriteString(id)

	return PackageLocator{OriginalString: b.String()}
}

// hasScheme reports whether id is already a URI. Single letter schemes are
// treated as drive letters.
func hasScheme(id string) bool {
	u, err := url.Parse(id)
	if err != nil {
		return false
	}
	return len(u.Scheme) > 1
}

func (p PackageLocator) String() string {
	return p.OriginalString
}

func (p PackageLocator) parse() *url.URL {
	u, err := url.Parse(p.OriginalString)
	if err != nil {
		return &url.URL{}
	}
	return u
}

// Scheme returns the locator scheme, e.g. "nuget".
func (p PackageLocator) Scheme() string {
	return p.parse().Scheme
}

// Address returns the package source, or "" when none was given.
func (p PackageLocator) Address() string {
	u := p.parse()
	if u.Opaque != "" {
		return u.Opaque
	}
	if u.Host != "" {
		return u.Host + u.Path
	}
	return u.Path
}

// Parameters returns the decoded query parameters.
func (p PackageLocator) Parameters() url.Values {
	return p.parse().Query()
}

// Package returns the package id.
func (p PackageLocator) Package() string {
	return p.Parameters().Get("package")
}
