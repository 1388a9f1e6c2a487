package strategy

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a strategy from a validated configuration.
type Factory func(cfg Config) (Strategy, error)

// Definition describes a native strategy type: its name, declared parameters and factory.
type Definition struct {
	Name        string
	Description string
	InputShape  string // human-readable, e.g. "[n_observations, n_assets]"
	OutputShape string
	Params      []Param
	New         Factory
}

// Param returns the declared parameter with the given name.
func (d *Definition) Param(name string) (Param, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Build validates cfg against the declared parameters and constructs a strategy.
// Unknown keys are rejected; missing keys take their declared defaults.
func (d *Definition) Build(cfg Config) (Strategy, error) {
	resolved := make(Config, len(d.Params))
	for _, key := range cfg.Keys() {
		p, ok := d.Param(key)
		if !ok {
			return nil, &ConfigError{Strategy: d.Name, Key: key, Message: "unknown parameter"}
		}
		if err := p.Check(cfg[key]); err != nil {
			return nil, &ConfigError{Strategy: d.Name, Key: key, Message: "invalid value", Err: err}
		}
		resolved[key] = cfg[key]
	}
	for _, p := range d.Params {
		if _, ok := resolved[p.Name]; !ok && p.Default != nil {
			resolved[p.Name] = p.Default
		}
	}

	s, err := d.New(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to build strategy %s: %w", d.Name, err)
	}
	return s, nil
}

// Registry holds the native strategy types available to dispatchers.
// Registration is additive and the resulting set does not depend on registration order.
type Registry struct {
	defs map[string]*Definition
	mu   sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// NewDefaultRegistry creates a registry holding the built-in strategies.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	if err := r.Register(Builtins()...); err != nil {
		panic(err)
	}
	return r
}

// Register adds one or more definitions. Either all are added or none:
// an empty name, a nil factory or a name already present fails the whole call.
func (r *Registry) Register(defs ...*Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if d == nil || d.Name == "" {
			return fmt.Errorf("strategy definition must have a name")
		}
		if d.New == nil {
			return fmt.Errorf("strategy %s has no factory", d.Name)
		}
		if _, exists := r.defs[d.Name]; exists || seen[d.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateStrategy, d.Name)
		}
		seen[d.Name] = true
	}

	for _, d := range defs {
		r.defs[d.Name] = d
	}
	return nil
}

// Get returns the definition registered under name.
func (r *Registry) Get(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
	return d, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.defs[name]
	return ok
}

// Names returns registered names in alphabetical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns registered definitions ordered by name.
func (r *Registry) Definitions() []*Definition {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*Definition, 0, len(names))
	for _, name := range names {
		if d, ok := r.defs[name]; ok {
			defs = append(defs, d)
		}
	}
	return defs
}

// Builtins returns the definitions of the reference strategies.
func Builtins() []*Definition {
	return []*Definition{EqualWeightDefinition(), RandomWeightDefinition()}
}
