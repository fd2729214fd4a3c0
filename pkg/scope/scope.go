// Package scope implements nimmy's lexically nested binding environment:
// name to value, a parallel name to const-flag map, and a parent link for
// chained lookup and assignment.
package scope

import (
	"fmt"

	"github.com/treeform/nimmy/pkg/value"
)

// Scope is a mutable binding environment. The zero value is not usable;
// construct with New or Child.
type Scope struct {
	vars   map[string]value.Value
	consts map[string]bool
	parent *Scope
}

// New creates a scope with no parent (the global scope).
func New() *Scope {
	return &Scope{
		vars:   make(map[string]value.Value),
		consts: make(map[string]bool),
	}
}

// Child creates a scope nested under parent.
func Child(parent *Scope) *Scope {
	return &Scope{
		vars:   make(map[string]value.Value),
		consts: make(map[string]bool),
		parent: parent,
	}
}

// Parent returns this scope's enclosing scope, or nil for the global scope.
func (s *Scope) Parent() *Scope { return s.parent }

// Define installs a fresh binding in this scope, overwriting any binding of
// the same name already present here (shadowing, not mutating, any
// binding of the same name in an enclosing scope).
func (s *Scope) Define(name string, v value.Value, isConst bool) {
	s.vars[name] = v
	s.consts[name] = isConst
}

// Lookup walks the parent chain and returns the value bound to name.
func (s *Scope) Lookup(name string) (value.Value, error) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("undefined variable '%s'", name)
}

// Has reports whether name is bound anywhere in the parent chain.
func (s *Scope) Has(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			return true
		}
	}
	return false
}

// Assign walks the parent chain to find the nearest binding of name and
// updates it in place. It fails if name is unknown or bound const.
func (s *Scope) Assign(name string, v value.Value) error {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			if cur.consts[name] {
				return fmt.Errorf("cannot assign to constant '%s'", name)
			}
			cur.vars[name] = v
			return nil
		}
	}
	return fmt.Errorf("undefined variable '%s'", name)
}

// IsConst reports whether name, as bound in the parent chain, is const.
// It returns false if the name is not bound anywhere.
func (s *Scope) IsConst(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			return cur.consts[name]
		}
	}
	return false
}

// Names returns the names defined directly in this scope (not ancestors).
func (s *Scope) Names() []string {
	names := make([]string, 0, len(s.vars))
	for n := range s.vars {
		names = append(names, n)
	}
	return names
}

// Snapshot returns a flat copy of every binding visible from this scope,
// innermost shadowing outermost. Used by the debugger to render locals.
func (s *Scope) Snapshot() map[string]value.Value {
	out := make(map[string]value.Value)
	chain := []*Scope{}
	for cur := s; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for n, v := range chain[i].vars {
			out[n] = v
		}
	}
	return out
}
