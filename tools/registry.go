package tools

import (
	"errors"
	"fmt"
)

// Registry maps tool names to definitions. It is built once at startup and
// read-only afterwards, so concurrent lookups need no locking.
type Registry struct {
	order []string
	defs  map[string]ToolDefinition
}

// NewRegistry registers defs in order. Empty or duplicate names are rejected.
func NewRegistry(defs ...ToolDefinition) (*Registry, error) {
	r := &Registry{defs: make(map[string]ToolDefinition, len(defs))}
	for _, d := range defs {
		if d.Name == "" {
			return nil, errors.New("tools: definition with empty name")
		}
		if d.Function == nil {
			return nil, fmt.Errorf("tools: %s has no handler", d.Name)
		}
		if _, dup := r.defs[d.Name]; dup {
			return nil, fmt.Errorf("tools: duplicate tool name %q", d.Name)
		}
		r.defs[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// MustRegistry is NewRegistry for static tool sets; it panics on error.
func MustRegistry(defs ...ToolDefinition) *Registry {
	r, err := NewRegistry(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup is an exact, case-sensitive name match.
func (r *Registry) Lookup(name string) (ToolDefinition, bool) {
	if r == nil {
		return ToolDefinition{}, false
	}
	d, ok := r.defs[name]
	return d, ok
}

// Definitions returns the tools in registration order.
func (r *Registry) Definitions() []ToolDefinition {
	if r == nil {
		return nil
	}
	out := make([]ToolDefinition, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.defs[n])
	}
	return out
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Subset returns a registry restricted to names, keeping this registry's
// order. Unknown names are an error.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := r.Lookup(n); !ok {
			return nil, fmt.Errorf("tools: unknown tool %q", n)
		}
		want[n] = true
	}
	var defs []ToolDefinition
	for _, d := range r.Definitions() {
		if want[d.Name] {
			defs = append(defs, d)
		}
	}
	return NewRegistry(defs...)
}

// With returns a new registry holding r's tools followed by extra.
func (r *Registry) With(extra ...ToolDefinition) (*Registry, error) {
	return NewRegistry(append(r.Definitions(), extra...)...)
}
