package registry

import (
	"errors"
	"fmt"
)

// #region errors
// ErrUnknownName is matched by every ConfigError.
var ErrUnknownName = errors.New("name not in enumeration")

// ConfigError reports a name missing from an injected enumeration.
type ConfigError struct {
	Kind string // "intent" | "slot"
	Name string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: unknown %s %q", e.Kind, e.Name)
}

func (e *ConfigError) Unwrap() error { return ErrUnknownName }

// #endregion errors

// #region registry
// Registry is an immutable bijection between names and their position in
// the order they were injected.
type Registry struct {
	kind  string
	names []string
	index map[string]int
}

// New builds a registry. Duplicate or empty names are rejected.
func New(kind string, names []string) (*Registry, error) {
	r := &Registry{
		kind:  kind,
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
	}
	for i, n := range names {
		if n == "" {
			return nil, fmt.Errorf("%s registry: empty name at position %d", kind, i)
		}
		if _, dup := r.index[n]; dup {
			return nil, fmt.Errorf("%s registry: duplicate name %q", kind, n)
		}
		r.index[n] = i
	}
	return r, nil
}

// Kind returns the enumeration kind this registry was built for.
func (r *Registry) Kind() string { return r.kind }

// Len returns the number of registered names.
func (r *Registry) Len() int { return len(r.names) }

// Index returns the position of name.
func (r *Registry) Index(name string) (int, error) {
	i, ok := r.index[name]
	if !ok {
		return 0, &ConfigError{Kind: r.kind, Name: name}
	}
	return i, nil
}

// Contains reports whether name is registered.
func (r *Registry) Contains(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Name returns the name at position i.
func (r *Registry) Name(i int) string { return r.names[i] }

// Names returns a copy of the names in injection order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Require returns a ConfigError for the first name not registered.
func (r *Registry) Require(names ...string) error {
	for _, n := range names {
		if !r.Contains(n) {
			return &ConfigError{Kind: r.kind, Name: n}
		}
	}
	return nil
}

// #endregion registry
