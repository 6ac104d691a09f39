// Package schema declares the per-dataset validation contracts.
//
// A Contract is plain configuration: an ordered list of field descriptors,
// each with a type, a nullability flag and a list of predicate checks. The
// validate package interprets contracts; nothing here depends on how they
// are evaluated against data.
package schema

import (
	"fmt"
	"sort"

	"cyberetl/internal/dataset"
)

// Field describes one expected column.
type Field struct {
	Name     string       `json:"name" yaml:"name"`
	Type     dataset.Kind `json:"type" yaml:"type"`
	Nullable bool         `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Checks   []Check      `json:"checks,omitempty" yaml:"checks,omitempty"`
}

// Contract is the schema of one dataset kind.
type Contract struct {
	Name   string  `json:"name" yaml:"name"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// Field returns the descriptor for name.
func (c Contract) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Registry maps dataset names to contracts. It is never mutated after
// construction; With returns a new registry.
type Registry struct {
	contracts map[string]Contract
}

// NewRegistry builds a registry from contracts. Later duplicates win.
func NewRegistry(contracts ...Contract) (*Registry, error) {
	r := &Registry{contracts: make(map[string]Contract, len(contracts))}
	for _, c := range contracts {
		if err := c.compile(); err != nil {
			return nil, fmt.Errorf("schema %q: %w", c.Name, err)
		}
		r.contracts[c.Name] = c
	}
	return r, nil
}

// Lookup returns the contract registered for name.
func (r *Registry) Lookup(name string) (Contract, bool) {
	if r == nil {
		return Contract{}, false
	}
	c, ok := r.contracts[name]
	return c, ok
}

// Names returns registered dataset names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.contracts))
	for n := range r.contracts {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// With returns a copy of r in which the given contracts replace or extend
// the existing ones.
func (r *Registry) With(contracts ...Contract) (*Registry, error) {
	all := make([]Contract, 0, len(contracts)+len(r.Names()))
	for _, n := range r.Names() {
		all = append(all, r.contracts[n])
	}
	all = append(all, contracts...)
	return NewRegistry(all...)
}

// compile checks every field and pre-compiles regex patterns.
func (c Contract) compile() error {
	if c.Name == "" {
		return fmt.Errorf("contract name must not be empty")
	}
	seen := make(map[string]struct{}, len(c.Fields))
	for _, f := range c.Fields {
		if f.Name == "" {
			return fmt.Errorf("field with empty name")
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("field %q declared twice", f.Name)
		}
		seen[f.Name] = struct{}{}
		for i := range f.Checks {
			if err := f.Checks[i].compile(); err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
		}
	}
	return nil
}
