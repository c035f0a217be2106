// Package registry maps x-component identifiers to component specs.
//
// A provider-scoped Registry is built once at setup. Call-scoped entries are
// layered on top of it for one resolution pass with Layer; the first layer
// that knows an id wins. A failed lookup is reported through the boolean,
// never as an error, so the resolver can apply its own missing policy.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/goliatone/go-formschema/pkg/component"
)

// ErrDuplicate is returned by Register when the id is already taken.
var ErrDuplicate = errors.New("registry: component already registered")

// Lookup is the read side of a registry.
type Lookup interface {
	Lookup(id string) (component.Spec, bool)
}

// Registry stores specs keyed by id. It is safe for concurrent use; during a
// resolution pass it is only read.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]component.Spec
}

var _ Lookup = (*Registry)(nil)

// New creates a registry seeded with specs. Seeding panics on invalid or
// duplicate specs, the same as MustRegister.
func New(specs ...component.Spec) *Registry {
	r := &Registry{specs: make(map[string]component.Spec)}
	for _, spec := range specs {
		r.MustRegister(spec)
	}
	return r
}

// Register adds spec. Duplicate ids return ErrDuplicate; use Set to replace.
func (r *Registry) Register(spec component.Spec) error {
	spec.ID = strings.TrimSpace(spec.ID)
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("registry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[spec.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicate, spec.ID)
	}
	r.specs[spec.ID] = spec
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegister(spec component.Spec) {
	if err := r.Register(spec); err != nil {
		panic(err)
	}
}

// Set adds or replaces spec.
func (r *Registry) Set(spec component.Spec) error {
	spec.ID = strings.TrimSpace(spec.ID)
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.ID] = spec
	return nil
}

// Lookup returns the spec registered under id. Ids are matched exactly after
// trimming surrounding whitespace.
func (r *Registry) Lookup(id string) (component.Spec, bool) {
	if r == nil {
		return component.Spec{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[strings.TrimSpace(id)]
	return spec, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.Lookup(id)
	return ok
}

// Names returns the registered ids sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.specs)
}

// Clone returns an independent copy that can be extended without touching
// the original.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &Registry{specs: make(map[string]component.Spec, len(r.specs))}
	for id, spec := range r.specs {
		out.specs[id] = spec
	}
	return out
}

// Map is a call-scoped set of overrides. It needs no locking because it is
// built by the caller for one pass and never written afterwards.
type Map map[string]component.Spec

// Lookup implements Lookup.
func (m Map) Lookup(id string) (component.Spec, bool) {
	spec, ok := m[strings.TrimSpace(id)]
	if ok && spec.ID == "" {
		spec.ID = strings.TrimSpace(id)
	}
	return spec, ok
}

type layered []Lookup

// Layer stacks lookups; earlier layers shadow later ones. Nil layers are
// skipped. Layer(call, provider) gives the two-tier lookup used by the
// resolver.
func Layer(layers ...Lookup) Lookup {
	out := make(layered, 0, len(layers))
	for _, l := range layers {
		if l == nil {
			continue
		}
		if m, ok := l.(Map); ok && len(m) == 0 {
			continue
		}
		if r, ok := l.(*Registry); ok && r == nil {
			continue
		}
		out = append(out, l)
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func (l layered) Lookup(id string) (component.Spec, bool) {
	for _, layer := range l {
		if spec, ok := layer.Lookup(id); ok {
			return spec, true
		}
	}
	return component.Spec{}, false
}

// Func adapts a function into a Lookup.
type Func func(id string) (component.Spec, bool)

// Lookup delegates to the function.
func (fn Func) Lookup(id string) (component.Spec, bool) {
	return fn(id)
}
