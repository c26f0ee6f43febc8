package lang

// Env is a lexical environment frame: an ordered binding list with a
// parent pointer. Closures capture the Env in effect at their definition
// site, so captured state travels with the committed payload.
type Env struct {
	parent *Env
	names  []string
	vals   []Value
}

// NewEnv creates an empty environment frame with the given parent.
// A nil parent makes a root frame.
func NewEnv(parent *Env) *Env {
	return &Env{parent: parent}
}

// Define binds name to v in this frame, shadowing any outer binding.
func (e *Env) Define(name string, v Value) {
	e.names = append(e.names, name)
	e.vals = append(e.vals, v)
}

// Lookup resolves name through the frame chain, innermost first. Within a
// frame, later bindings shadow earlier ones.
func (e *Env) Lookup(name string) (Value, bool) {
	for f := e; f != nil; f = f.parent {
		for i := len(f.names) - 1; i >= 0; i-- {
			if f.names[i] == name {
				return f.vals[i], true
			}
		}
	}
	return Value{}, false
}

// flatten collapses the frame chain into a single ordered binding list:
// for each name, the innermost binding wins. The result is ordered by
// first (innermost) occurrence; canonical encoding sorts it by name so the
// bytes are independent of frame layout.
func (e *Env) flatten() (names []string, vals []Value) {
	seen := make(map[string]bool)
	for f := e; f != nil; f = f.parent {
		for i := len(f.names) - 1; i >= 0; i-- {
			if seen[f.names[i]] {
				continue
			}
			seen[f.names[i]] = true
			names = append(names, f.names[i])
			vals = append(vals, f.vals[i])
		}
	}
	return names, vals
}
