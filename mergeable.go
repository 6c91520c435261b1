package inherit

import "github.com/goliatone/go-inherit/internal/clone"

// Mergeable is implemented by every type that knows how to resolve itself
// over a lower-priority parent. Field, Optional and every generated record
// implement it.
type Mergeable[T any] interface {
	Merge(parent T) T
}

// Defaulter is implemented by types with a default other than their zero
// value. Generated records implement it with a value receiver so the method
// can be called on the zero value.
type Defaulter[T any] interface {
	Default() T
}

// MergeValue resolves self over parent. Types implementing Mergeable decide
// for themselves; any other type keeps a copy of self and ignores parent.
func MergeValue[T any](self, parent T) T {
	if m, ok := any(self).(Mergeable[T]); ok {
		return m.Merge(parent)
	}
	return clone.Of(self)
}

// DefaultValue returns the intrinsic default of T: T.Default() when T
// implements Defaulter, otherwise the zero value.
func DefaultValue[T any]() T {
	var zero T
	if d, ok := any(zero).(Defaulter[T]); ok {
		return d.Default()
	}
	return zero
}

// DefaultInto stores DefaultValue[T]() in dst. Generated Default methods use
// it so they never need to spell out field types.
func DefaultInto[T any](dst *T) {
	*dst = DefaultValue[T]()
}

// Clone returns a deep copy of value.
func Clone[T any](value T) T {
	return clone.Of(value)
}

// MergeLayers folds layers ordered strongest to weakest:
// layers[0].Merge(layers[1]).Merge(layers[2])... An Unset in a stronger layer
// is never replaced by a weaker one.
func MergeLayers[T any](layers ...T) T {
	return mergeLayersWith(MergeValue[T], layers)
}

func mergeLayersWith[T any](merge func(self, parent T) T, layers []T) T {
	if len(layers) == 0 {
		var zero T
		return zero
	}
	merged := clone.Of(layers[0])
	for _, parent := range layers[1:] {
		merged = merge(merged, parent)
	}
	return merged
}
