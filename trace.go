package inherit

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ErrPathNotFound is returned by Trace when a path segment does not name a
// field of the record type.
var ErrPathNotFound = errors.New("inherit: path not found")

// Provenance state values that are not tri-state variants.
const (
	// ProvenanceValue marks a plain (non tri-state) value.
	ProvenanceValue = "value"
	// ProvenanceMissing marks a path that does not exist in a layer, such as
	// an absent map key or a nil pointer.
	ProvenanceMissing = "missing"
)

// Trace captures how each layer of a stack contributed to one path.
type Trace struct {
	Path   string       `json:"path"`
	Layers []Provenance `json:"layers"`
}

// Provenance details one layer's opinion on a traced path.
type Provenance struct {
	Scope      Scope  `json:"scope"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Path       string `json:"path"`
	State      string `json:"state"`
	Value      any    `json:"value,omitempty"`
	Found      bool   `json:"found"`
}

// Winner returns the strongest layer that expressed an opinion.
func (t Trace) Winner() (Provenance, bool) {
	for _, layer := range t.Layers {
		if layer.Found {
			return layer, true
		}
	}
	return Provenance{}, false
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}

// Trace resolves a dotted path (Go field names or json/yaml tag names, map
// keys, slice indexes) against the merged value and reports every layer's
// contribution, strongest first. The returned value is the merged payload or
// nil when the path resolves to Inherit or Unset.
func (r *Resolved[T]) Trace(path string) (any, Trace, error) {
	if r == nil {
		return nil, Trace{}, fmt.Errorf("inherit: resolved value is nil")
	}
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil, Trace{}, fmt.Errorf("inherit: path must not be empty")
	}

	merged, err := lookupPath(reflect.ValueOf(&r.Value).Elem(), segments)
	if err != nil {
		return nil, Trace{}, fmt.Errorf("%w: %s", err, path)
	}

	trace := Trace{Path: path, Layers: make([]Provenance, 0, len(r.layers))}
	for _, layer := range r.layers {
		found, err := lookupPath(reflect.ValueOf(layer.Snapshot), segments)
		if err != nil {
			return nil, Trace{}, fmt.Errorf("%w: %s", err, path)
		}
		trace.Layers = append(trace.Layers, Provenance{
			Scope:      layer.Scope.clone(),
			SnapshotID: layer.SnapshotID,
			Path:       path,
			State:      found.state,
			Value:      found.value,
			Found:      found.opinion(),
		})
	}
	return merged.value, trace, nil
}

type pathValue struct {
	state string
	value any
}

func (p pathValue) opinion() bool {
	switch p.state {
	case StateSet.String(), StateUnset.String(), ProvenanceValue:
		return true
	default:
		return false
	}
}

func splitPath(path string) []string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	out := parts[:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func lookupPath(current reflect.Value, segments []string) (pathValue, error) {
	for i, segment := range segments {
		next, stop, err := descend(current, segment)
		if err != nil {
			return pathValue{}, err
		}
		if stop != nil {
			return *stop, nil
		}
		current = next
		if i == len(segments)-1 {
			return leafValue(current), nil
		}
	}
	return leafValue(current), nil
}

// descend moves one segment down. A non-nil stop result means the walk ended
// early on a wrapper that is not Set or on a missing element.
func descend(current reflect.Value, segment string) (reflect.Value, *pathValue, error) {
	current, stop := unwrap(current)
	if stop != nil {
		return reflect.Value{}, stop, nil
	}
	switch current.Kind() {
	case reflect.Struct:
		field, ok := structField(current, segment)
		if !ok {
			return reflect.Value{}, nil, ErrPathNotFound
		}
		return field, nil, nil
	case reflect.Map:
		if current.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, nil, ErrPathNotFound
		}
		value := current.MapIndex(reflect.ValueOf(segment).Convert(current.Type().Key()))
		if !value.IsValid() {
			return reflect.Value{}, &pathValue{state: ProvenanceMissing}, nil
		}
		return value, nil, nil
	case reflect.Slice, reflect.Array:
		index, err := strconv.Atoi(segment)
		if err != nil {
			return reflect.Value{}, nil, ErrPathNotFound
		}
		if index < 0 || index >= current.Len() {
			return reflect.Value{}, &pathValue{state: ProvenanceMissing}, nil
		}
		return current.Index(index), nil, nil
	default:
		return reflect.Value{}, nil, ErrPathNotFound
	}
}

// unwrap dereferences pointers and interfaces and opens Set wrappers.
func unwrap(current reflect.Value) (reflect.Value, *pathValue) {
	for {
		if !current.IsValid() {
			return current, &pathValue{state: ProvenanceMissing}
		}
		switch current.Kind() {
		case reflect.Pointer, reflect.Interface:
			if current.IsNil() {
				return current, &pathValue{state: ProvenanceMissing}
			}
			current = current.Elem()
			continue
		}
		if current.CanInterface() {
			if wrapper, ok := current.Interface().(stateful); ok {
				payload, set := wrapper.payload()
				if !set {
					return current, &pathValue{state: wrapper.fieldState().String()}
				}
				current = reflect.ValueOf(payload)
				continue
			}
		}
		return current, nil
	}
}

func leafValue(current reflect.Value) pathValue {
	if !current.IsValid() {
		return pathValue{state: ProvenanceMissing}
	}
	for current.Kind() == reflect.Pointer || current.Kind() == reflect.Interface {
		if current.IsNil() {
			return pathValue{state: ProvenanceMissing}
		}
		current = current.Elem()
	}
	if !current.CanInterface() {
		return pathValue{state: ProvenanceMissing}
	}
	if wrapper, ok := current.Interface().(stateful); ok {
		payload, _ := wrapper.payload()
		return pathValue{state: wrapper.fieldState().String(), value: payload}
	}
	return pathValue{state: ProvenanceValue, value: current.Interface()}
}

func structField(current reflect.Value, segment string) (reflect.Value, bool) {
	t := current.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if field.Name == segment || tagName(field.Tag.Get("json")) == segment || tagName(field.Tag.Get("yaml")) == segment {
			return current.Field(i), true
		}
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.IsExported() && strings.EqualFold(field.Name, segment) {
			return current.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tagName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	if name == "-" {
		return ""
	}
	return name
}
