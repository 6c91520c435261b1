package inherit

import (
	"errors"
	"fmt"
	"go/token"
	"maps"
	"slices"
	"sync"
)

// Function is a helper callable from default expressions.
type Function func(args ...any) (any, error)

var (
	// ErrFunctionName reports a helper name that is not a plain identifier or
	// that shadows a variable bound by every evaluator.
	ErrFunctionName = errors.New("inherit: invalid function name")
	// ErrFunctionExists reports a second registration under the same name.
	ErrFunctionExists = errors.New("inherit: function already registered")
	// ErrFunctionMissing reports a call to an unregistered helper.
	ErrFunctionMissing = errors.New("inherit: function not registered")
)

// reservedNames are bound by every evaluator environment.
var reservedNames = []string{"now", "args", "metadata", "record", "field", "call"}

// FunctionRegistry holds helpers exposed to default expressions. Names are
// case sensitive, matching the expression languages that call them.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: make(map[string]Function)}
}

// Register adds fn under name.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if !token.IsIdentifier(name) || slices.Contains(reservedNames, name) {
		return fmt.Errorf("%w: %q", ErrFunctionName, name)
	}
	if fn == nil {
		return fmt.Errorf("inherit: function %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	if _, exists := r.functions[name]; exists {
		return fmt.Errorf("%w: %q", ErrFunctionExists, name)
	}
	r.functions[name] = fn
	return nil
}

// Has reports whether name is registered.
func (r *FunctionRegistry) Has(name string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.functions[name]
	return ok
}

// Clone snapshots the registry so later registrations do not leak into
// evaluators already built from it.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &FunctionRegistry{functions: maps.Clone(r.functions)}
}

// Call invokes the helper registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %q", ErrFunctionMissing, name)
	}
	r.mu.RLock()
	fn := r.functions[name]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("%w: %q", ErrFunctionMissing, name)
	}
	return fn(args...)
}

// Names returns the registered names in sorted order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.functions))
}
