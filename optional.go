package inherit

import (
	"fmt"
	"reflect"

	"github.com/goliatone/go-inherit/internal/clone"
)

// Optional is the two-state variant of Field for values that have no
// "explicitly cleared" form. The zero value is Absent, which defers to the
// parent layer.
type Optional[T any] struct {
	present bool
	value   T
}

// None returns an Absent Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Some returns a Present Optional holding value.
func Some[T any](value T) Optional[T] {
	return Optional[T]{present: true, value: value}
}

// IsPresent reports whether o carries a value.
func (o Optional[T]) IsPresent() bool {
	return o.present
}

// State maps Absent to StateInherit and Present to StateSet.
func (o Optional[T]) State() State {
	if o.present {
		return StateSet
	}
	return StateInherit
}

// Get returns the payload and true when o is Present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.present
}

// OrElse returns the payload when present, otherwise fallback.
func (o Optional[T]) OrElse(fallback T) T {
	if !o.present {
		return fallback
	}
	return o.value
}

// Merge yields a copy of parent when o is Absent, otherwise a copy of o.
func (o Optional[T]) Merge(parent Optional[T]) Optional[T] {
	if !o.present {
		return parent.Clone()
	}
	return o.Clone()
}

// Clone returns a deep copy of o.
func (o Optional[T]) Clone() Optional[T] {
	if !o.present {
		return Optional[T]{}
	}
	return Optional[T]{present: true, value: clone.Of(o.value)}
}

// Equal reports structural equality.
func (o Optional[T]) Equal(other Optional[T]) bool {
	if o.present != other.present {
		return false
	}
	return !o.present || reflect.DeepEqual(o.value, other.value)
}

// IsZero reports whether o is Absent.
func (o Optional[T]) IsZero() bool {
	return !o.present
}

func (o Optional[T]) String() string {
	if !o.present {
		return "absent"
	}
	return fmt.Sprintf("present(%v)", o.value)
}

func (o Optional[T]) fieldState() State {
	return o.State()
}

func (o Optional[T]) payload() (any, bool) {
	if !o.present {
		return nil, false
	}
	return o.value, true
}

func (Optional[T]) payloadType() reflect.Type {
	return reflect.TypeFor[T]()
}

func (Optional[T]) wrap(v reflect.Value) any {
	if !v.IsValid() {
		return None[T]()
	}
	return Some(v.Interface().(T))
}
