package hostfunc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrRegistryFrozen = errors.New("registry frozen")
	ErrDuplicateOp    = errors.New("op already registered")
)

// Func implements a host op. Args are the positional arguments passed by
// script code, already exported to plain Go values.
type Func func(ctx context.Context, args []any) (any, error)

// Decl declares a host op: the name script code calls it by, whether it
// completes synchronously, and its implementation.
type Decl struct {
	Name string
	Mode Mode
	Func Func
}

// Registry is the op table owned by one engine instance.
type Registry struct {
	mu     sync.RWMutex
	funcs  map[string]Decl
	frozen bool
}

// NewRegistry returns a registry holding a copy of decls.
func NewRegistry(decls ...Decl) (*Registry, error) {
	r := &Registry{funcs: make(map[string]Decl, len(decls))}
	for _, d := range decls {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an op. It fails once the registry is frozen or when the
// name is already taken.
func (r *Registry) Register(d Decl) error {
	if d.Name == "" || d.Func == nil {
		return fmt.Errorf("register op %q: name and func required", d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("register op %q: %w", d.Name, ErrRegistryFrozen)
	}
	if _, ok := r.funcs[d.Name]; ok {
		return fmt.Errorf("register op %q: %w", d.Name, ErrDuplicateOp)
	}
	r.funcs[d.Name] = d
	return nil
}

// Get looks up the op registered under name.
func (r *Registry) Get(name string) (Decl, bool) {
	r.mu.RLock()
	d, ok := r.funcs[name]
	r.mu.RUnlock()
	return d, ok
}

// List returns the registered op names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Freeze makes the registry immutable.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}
