// Package hooks provides an ordered filter registry: named hooks whose registered
// transformers are folded over a value in registration order.
//
// A Registry has two phases. Filters are added while it is open; the first
// ApplyFilters call (or an explicit Freeze) closes it, after which the chains are
// read-only and safe for concurrent application.
package hooks

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/shrek82/projectdb/logger"
)

// Transformer receives the value produced by the previous transformer (or the
// seed) and the auxiliary arguments given to ApplyFilters.
type Transformer func(value any, args ...any) (any, error)

// Registry stores the transformer chains of every hook.
type Registry struct {
	mu      sync.Mutex
	frozen  atomic.Bool
	filters map[string][]Transformer
	logger  logger.Logger
}

// NewRegistry returns an open, empty registry.
func NewRegistry() *Registry {
	return &Registry{
		filters: make(map[string][]Transformer),
		logger:  logger.NewNopLogger(),
	}
}

// SetLogger sets the logger used to report the freeze.
func (r *Registry) SetLogger(l logger.Logger) {
	r.logger = l
}

// AddFilter appends t to the chain of name. The same name may be registered any
// number of times. It panics with ErrFrozen once the registry is frozen.
func (r *Registry) AddFilter(name string, t Transformer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		panic(ErrFrozen)
	}
	r.filters[name] = append(r.filters[name], t)
}

// Freeze closes the registration phase. It is safe to call more than once.
func (r *Registry) Freeze() {
	if r.frozen.Load() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Swap(true) {
		return
	}
	total := 0
	for _, chain := range r.filters {
		total += len(chain)
	}
	r.logger.Debug("hooks frozen: %d filters on %d hooks", total, len(r.filters))
}

// Frozen reports whether registration is closed.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// ApplyFilters folds the chain of name over seed. Every transformer receives args
// unchanged. A hook without transformers returns seed as is. The first error
// aborts the chain and is returned as a *TransformerError.
func (r *Registry) ApplyFilters(name string, seed any, args ...any) (any, error) {
	r.Freeze()
	value := seed
	for i, t := range r.filters[name] {
		next, err := t(value, args...)
		if err != nil {
			return nil, &TransformerError{Hook: name, Index: i, Err: err}
		}
		value = next
	}
	return value, nil
}

// Has reports whether name has at least one transformer.
func (r *Registry) Has(name string) bool {
	return r.Len(name) > 0
}

// Len returns the number of transformers registered for name.
func (r *Registry) Len(name string) int {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	return len(r.filters[name])
}

// Names returns the hooks with registered transformers, sorted.
func (r *Registry) Names() []string {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	names := make([]string, 0, len(r.filters))
	for name := range r.filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
