package redux

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Function is a helper callable from selector expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry holds expression helpers keyed by case-insensitive name.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: map[string]Function{}}
}

// Register adds fn under name. Names are unique ignoring case.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return fmt.Errorf("redux: function name must not be empty")
	case fn == nil:
		return fmt.Errorf("redux: function %q is nil", name)
	}
	key := strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = map[string]Function{}
	}
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("redux: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// Clone returns an independent copy so evaluators are unaffected by later
// registrations.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &FunctionRegistry{functions: maps.Clone(r.functions)}
}

// Call invokes the function registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("redux: function registry is nil")
	}
	r.mu.RLock()
	fn, ok := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("redux: function %q not registered", name)
	}
	return fn(args...)
}

// Names lists registered names in sorted order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.functions))
}

// WithFunctionRegistry exposes registry's functions to selector expressions.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *proxyConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers a single expression helper.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *proxyConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}
