// Package generics implements the generic registry (C5): parameterised
// type declarations and their instantiations, shared across every
// parallel-driver worker behind a single mutex.
//
// Grounded on original_source/ESC/src/compiler/frontend/semantic/generics.c,
// simplified to one mutex (the original additionally takes a second,
// redundant driver-level lock around the same calls; see DESIGN.md,
// Resolved Open Question #4).
package generics

import (
	"fmt"
	"strings"
	"sync"
)

// Parameter is one generic type parameter, e.g. the T in List<T>.
type Parameter struct {
	Name string
}

// Entry is a registered generic type declaration.
type Entry struct {
	Name                string
	Parameters          []Parameter
	Body                any // opaque AST body; nil until a declaration supplies one
	SpecializedSymbols  map[string]bool
}

// Registry is the shared, mutex-guarded generic-type table.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register is idempotent: if name exists, a nil body does not clobber
// an existing one, and nil params do not clobber existing ones.
func (r *Registry) Register(name string, params []Parameter, body any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[name]; ok {
		if body != nil && existing.Body == nil {
			existing.Body = body
		}
		if params != nil && existing.Parameters == nil {
			existing.Parameters = params
		}
		return
	}

	r.entries[name] = &Entry{Name: name, Parameters: params, Body: body}
}

// Lookup returns the current record for name, or nil.
func (r *Registry) Lookup(name string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[name]
}

// Count reports how many distinct generic names are registered
// (exercised directly by spec.md §8 scenario 4).
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Validate requires the instantiation arity to match the declaration.
func Validate(generic *Entry, args []string) bool {
	if generic == nil {
		return false
	}
	return len(args) == len(generic.Parameters)
}

// MangledName synthesises Name<T1,T2,...>.
func MangledName(name string, args []string) string {
	return fmt.Sprintf("%s<%s>", name, strings.Join(args, ","))
}

// SymbolTable is the minimal interface instantiate needs from a
// per-worker symbol table: membership test and definition.
type SymbolTable interface {
	Has(name string) bool
	Define(name string)
}

// Instantiate synthesises the mangled name and records a specialisation
// entry in target; a mangled name already present in target succeeds
// as a no-op.
func (r *Registry) Instantiate(name string, args []string, target SymbolTable) (bool, error) {
	generic := r.Lookup(name)
	if generic == nil {
		return false, fmt.Errorf("generic type %q not registered", name)
	}
	if !Validate(generic, args) {
		return false, fmt.Errorf("generic type %q expects %d type arguments, got %d",
			name, len(generic.Parameters), len(args))
	}

	mangled := MangledName(name, args)
	if target.Has(mangled) {
		return true, nil
	}

	r.mu.Lock()
	if generic.SpecializedSymbols == nil {
		generic.SpecializedSymbols = make(map[string]bool)
	}
	generic.SpecializedSymbols[mangled] = true
	r.mu.Unlock()

	target.Define(mangled)
	return true, nil
}
