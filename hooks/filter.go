package hooks

import "fmt"

// None is the auxiliary argument of hooks that take none.
type None struct{}

// Filter is the typed view of one hook: every transformer takes and returns a T
// and receives the same auxiliary value A.
type Filter[T, A any] struct {
	name     string
	registry *Registry
}

// NewFilter binds a typed filter to name in r.
func NewFilter[T, A any](r *Registry, name string) *Filter[T, A] {
	return &Filter[T, A]{name: name, registry: r}
}

// Name returns the hook name.
func (f *Filter[T, A]) Name() string {
	return f.name
}

// Len returns the number of registered transformers.
func (f *Filter[T, A]) Len() int {
	return f.registry.Len(f.name)
}

// Add appends fn to the hook's chain.
func (f *Filter[T, A]) Add(fn func(value T, aux A) (T, error)) {
	f.registry.AddFilter(f.name, func(value any, args ...any) (any, error) {
		v, ok := value.(T)
		if !ok && value != nil {
			return nil, fmt.Errorf("%w: %s value is %T", ErrTypeMismatch, f.name, value)
		}
		var aux A
		if len(args) > 0 {
			a, ok := args[0].(A)
			if !ok && args[0] != nil {
				return nil, fmt.Errorf("%w: %s argument is %T", ErrTypeMismatch, f.name, args[0])
			}
			aux = a
		}
		return fn(v, aux)
	})
}

// Apply runs the chain over seed.
func (f *Filter[T, A]) Apply(seed T, aux A) (T, error) {
	out, err := f.registry.ApplyFilters(f.name, seed, aux)
	if err != nil {
		var zero T
		return zero, err
	}
	v, ok := out.(T)
	if !ok && out != nil {
		var zero T
		return zero, fmt.Errorf("%w: %s result is %T", ErrTypeMismatch, f.name, out)
	}
	return v, nil
}
