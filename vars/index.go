// Package vars resolves human-readable variable names to stable slot positions.
//
// An Index wraps a schema lookup and memoizes every answer, including
// failures, so the underlying lookup runs at most once per distinct name for
// the lifetime of the Index. Resolve at setup time and keep the slot; the
// per-tick code paths should never need a name.
package vars

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when a name is absent from the schema.
var ErrNotFound = errors.New("variable not found")

// LookupFunc maps a name to its slot in some schema.
type LookupFunc func(name string) (int, bool)

type entry struct {
	slot int
	ok   bool
}

// Index is a memoized name -> slot resolver. Safe for concurrent use.
type Index struct {
	lookup LookupFunc

	mu      sync.RWMutex
	cache   map[string]entry
	lookups int
}

// New creates an Index over the given schema lookup.
func New(lookup LookupFunc) *Index {
	return &Index{
		lookup: lookup,
		cache:  make(map[string]entry),
	}
}

// FromNames creates an Index whose schema is the given ordered name list.
// The slot of a name is its position in the list; the first occurrence wins.
func FromNames(names []string) *Index {
	schema := make([]string, len(names))
	copy(schema, names)
	return New(func(name string) (int, bool) {
		for i, n := range schema {
			if n == name {
				return i, true
			}
		}
		return -1, false
	})
}

// Resolve returns the slot for name, consulting the schema only on first use.
func (ix *Index) Resolve(name string) (int, error) {
	ix.mu.RLock()
	e, hit := ix.cache[name]
	ix.mu.RUnlock()
	if !hit {
		ix.mu.Lock()
		// Another goroutine may have resolved it while we waited
		e, hit = ix.cache[name]
		if !hit {
			slot, ok := ix.lookup(name)
			e = entry{slot: slot, ok: ok}
			ix.cache[name] = e
			ix.lookups++
		}
		ix.mu.Unlock()
	}
	if !e.ok {
		return -1, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return e.slot, nil
}

// MustResolve is like Resolve but panics if the name is unknown.
func (ix *Index) MustResolve(name string) int {
	slot, err := ix.Resolve(name)
	if err != nil {
		panic(fmt.Sprintf("vars: %v", err))
	}
	return slot
}

// ResolveAll resolves every name, failing on the first unknown one.
func (ix *Index) ResolveAll(names ...string) ([]int, error) {
	slots := make([]int, len(names))
	for i, name := range names {
		slot, err := ix.Resolve(name)
		if err != nil {
			return nil, err
		}
		slots[i] = slot
	}
	return slots, nil
}

// Lookups reports how many times the underlying schema lookup ran.
func (ix *Index) Lookups() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.lookups
}
