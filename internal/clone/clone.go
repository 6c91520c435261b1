// Package clone deep copies values so merged records never share mutable
// state with the layers they were built from.
package clone

import "reflect"

// Of returns a deep copy of value.
//
// Pointers, maps, slices, arrays and exported struct fields are copied
// recursively. Unexported struct state is carried over as-is, unless the type
// exposes a value-receiver Clone method returning its own type, in which case
// that method is used instead. Clone methods must not call Of on their own
// receiver.
func Of[T any](value T) T {
	out := Value(reflect.ValueOf(&value).Elem())
	if !out.IsValid() {
		var zero T
		return zero
	}
	if typed, ok := out.Interface().(T); ok {
		return typed
	}
	var zero T
	return zero
}

// Value deep copies v. The result is never addressable into v. Shared and
// cyclic references are preserved: a pointer, map or slice reached twice is
// copied once and the copy is reused.
func Value(v reflect.Value) reflect.Value {
	c := copier{seen: map[visit]reflect.Value{}}
	return c.value(v)
}

// visit identifies a reference by type, address and, for slices, length.
type visit struct {
	typ reflect.Type
	ptr uintptr
	n   int
}

type copier struct {
	seen map[visit]reflect.Value
}

func (c copier) value(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}
	if out, ok := viaMethod(v); ok {
		return out
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		key := visit{typ: v.Type(), ptr: v.Pointer()}
		if out, ok := c.seen[key]; ok {
			return out
		}
		out := reflect.New(v.Type().Elem())
		c.seen[key] = out
		out.Elem().Set(c.value(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(c.value(v.Elem()))
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			field := out.Field(i)
			if !field.CanSet() {
				continue
			}
			field.Set(c.value(v.Field(i)))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		key := visit{typ: v.Type(), ptr: v.Pointer()}
		if out, ok := c.seen[key]; ok {
			return out
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		c.seen[key] = out
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), c.value(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		key := visit{typ: v.Type(), ptr: v.Pointer(), n: v.Len()}
		if out, ok := c.seen[key]; ok {
			return out
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		c.seen[key] = out
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(c.value(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(c.value(v.Index(i)))
		}
		return out
	default:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		return out
	}
}

func viaMethod(v reflect.Value) (reflect.Value, bool) {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		return reflect.Value{}, false
	}
	method := v.MethodByName("Clone")
	if !method.IsValid() {
		return reflect.Value{}, false
	}
	mt := method.Type()
	if mt.NumIn() != 0 || mt.NumOut() != 1 || mt.Out(0) != v.Type() {
		return reflect.Value{}, false
	}
	return method.Call(nil)[0], true
}
