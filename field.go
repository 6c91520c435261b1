package inherit

import (
	"fmt"
	"reflect"

	"github.com/goliatone/go-inherit/internal/clone"
)

// Field is a tri-state configuration value: Inherit, Unset or Set(v).
//
// The zero value is Inherit, so a record built with a composite literal that
// omits a field defers that field to its parent layer.
type Field[T any] struct {
	state State
	value T
}

// Inherit returns a Field with no opinion.
func Inherit[T any]() Field[T] {
	return Field[T]{}
}

// Unset returns an explicitly cleared Field.
func Unset[T any]() Field[T] {
	return Field[T]{state: StateUnset}
}

// Set returns a Field holding value.
func Set[T any](value T) Field[T] {
	return Field[T]{state: StateSet, value: value}
}

// State reports the active variant.
func (f Field[T]) State() State {
	return f.state
}

// IsInherit reports whether f defers to its parent.
func (f Field[T]) IsInherit() bool {
	return f.state == StateInherit
}

// IsUnset reports whether f was explicitly cleared.
func (f Field[T]) IsUnset() bool {
	return f.state == StateUnset
}

// IsSet reports whether f carries a value.
func (f Field[T]) IsSet() bool {
	return f.state == StateSet
}

// Get returns the payload and true when f is Set.
func (f Field[T]) Get() (T, bool) {
	if f.state != StateSet {
		var zero T
		return zero, false
	}
	return f.value, true
}

// OrElse returns the payload when f is Set, otherwise fallback.
func (f Field[T]) OrElse(fallback T) T {
	if f.state != StateSet {
		return fallback
	}
	return f.value
}

// Merge resolves f over parent. Inherit yields a copy of parent; Unset and
// Set yield a copy of f and never look at parent.
func (f Field[T]) Merge(parent Field[T]) Field[T] {
	if f.state == StateInherit {
		return parent.Clone()
	}
	return f.Clone()
}

// Clone returns a deep copy of f.
func (f Field[T]) Clone() Field[T] {
	if f.state != StateSet {
		return Field[T]{state: f.state}
	}
	return Field[T]{state: StateSet, value: clone.Of(f.value)}
}

// Equal reports whether f and other hold the same variant and, for Set,
// deeply equal payloads.
func (f Field[T]) Equal(other Field[T]) bool {
	if f.state != other.state {
		return false
	}
	if f.state != StateSet {
		return true
	}
	return reflect.DeepEqual(f.value, other.value)
}

// IsZero reports whether f is Inherit. encoding/json honours it for the
// omitzero option and yaml.v3 for omitempty.
func (f Field[T]) IsZero() bool {
	return f.state == StateInherit
}

func (f Field[T]) String() string {
	if f.state == StateSet {
		return fmt.Sprintf("set(%v)", f.value)
	}
	return f.state.String()
}

func (f Field[T]) fieldState() State {
	return f.state
}

func (f Field[T]) payload() (any, bool) {
	if f.state != StateSet {
		return nil, false
	}
	return f.value, true
}

func (Field[T]) payloadType() reflect.Type {
	return reflect.TypeFor[T]()
}

// wrap builds a Field from a reflected payload. An invalid value yields Unset.
func (Field[T]) wrap(v reflect.Value) any {
	if !v.IsValid() {
		return Unset[T]()
	}
	return Set(v.Interface().(T))
}
