package script

// Unit is one physical script file together with the scripts it loads.
// Units are built once by the resolver and never mutated afterwards.
type Unit struct {
	Path     string   // Absolute path
	LoadedAt int      // Line in the parent holding the load directive, 0 for the root
	Lines    []string // Raw lines
	Scanned  []Line   // Scanner result, parallel to Lines

	References   []string
	Namespaces   []string
	UsingAliases []string
	Addins       []PackageLocator
	Tools        []PackageLocator

	// Includes holds one child per load directive, in line order.
	Includes []*Unit
}

// Walk visits u and every included unit depth first, pre-order.
func (u *Unit) Walk(fn func(*Unit)) {
	fn(u)
	for _, child := range u.Includes {
		child.Walk(fn)
	}
}

// Depth returns the deepest include nesting below u.
func (u *Unit) Depth() int {
	deepest := 0
	for _, child := range u.Includes {
		if d := child.Depth() + 1; d > deepest {
			deepest = d
		}
	}
	return deepest
}

func appendUnique[T comparable](list []T, v T) []T {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
