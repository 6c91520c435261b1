package inherit

import "reflect"

// Resolved is the outcome of merging a Stack: the merged record plus the
// layers it was built from.
type Resolved[T any] struct {
	Value T

	cfg    mergeConfig
	layers []Layer[T]
}

// Layers returns copies of the contributing layers, strongest first.
func (r *Resolved[T]) Layers() []Layer[T] {
	if r == nil || len(r.layers) == 0 {
		return nil
	}
	out := make([]Layer[T], len(r.layers))
	for i, layer := range r.layers {
		out[i] = layer.clone()
	}
	return out
}

// Scopes returns the contributing scopes, strongest first.
func (r *Resolved[T]) Scopes() []Scope {
	if r == nil || len(r.layers) == 0 {
		return nil
	}
	out := make([]Scope, len(r.layers))
	for i := range r.layers {
		out[i] = r.layers[i].Scope.clone()
	}
	return out
}

// LayerWith merges additional layers, ordered strongest to weakest, on top of
// the current value and returns a new Resolved. The receiver is unchanged.
func (r *Resolved[T]) LayerWith(layers ...T) *Resolved[T] {
	if r == nil {
		if len(layers) == 0 {
			return nil
		}
		return &Resolved[T]{Value: MergeLayers(layers...)}
	}
	merge, err := mergerFor[T](r.cfg)
	if err != nil {
		merge = MergeValue[T]
	}
	combined := append([]T(nil), layers...)
	combined = append(combined, r.Value)
	return &Resolved[T]{
		Value:  mergeLayersWith(merge, combined),
		cfg:    r.cfg,
		layers: append([]Layer[T](nil), r.layers...),
	}
}

// Validate invokes the Validate method on the merged value when present.
func (r *Resolved[T]) Validate() error {
	return validateValue(r.Value)
}

func validateValue[T any](value T) error {
	if v, ok := any(value).(interface{ Validate() error }); ok {
		return v.Validate()
	}
	if rv := reflect.ValueOf(&value).Elem(); rv.Kind() != reflect.Pointer && rv.CanAddr() {
		if v, ok := rv.Addr().Interface().(interface{ Validate() error }); ok {
			return v.Validate()
		}
	}
	return nil
}
