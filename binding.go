package chainz

import (
	"maps"
	"slices"
)

// Binding maps template variable names to pre-formatted string values.
// Callers serialize non-string data (dates, JSON) before insertion.
type Binding map[string]string

// Get returns the value bound to name and whether it is present.
func (b Binding) Get(name string) (string, bool) {
	v, ok := b[name]
	return v, ok
}

// Clone returns an independent copy of the binding.
// A nil binding clones to an empty, non-nil binding.
func (b Binding) Clone() Binding {
	out := make(Binding, len(b))
	maps.Copy(out, b)
	return out
}

// With returns a copy of the binding with name set to value.
// The receiver is left untouched.
func (b Binding) With(name, value string) Binding {
	out := b.Clone()
	out[name] = value
	return out
}

// Merge returns a copy of the binding overlaid with other.
func (b Binding) Merge(other Binding) Binding {
	out := b.Clone()
	maps.Copy(out, other)
	return out
}

// Names returns the bound variable names in sorted order.
func (b Binding) Names() []string {
	return slices.Sorted(maps.Keys(b))
}
