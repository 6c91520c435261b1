package inherit

import (
	"bytes"
	"encoding/json"
	"errors"

	"gopkg.in/yaml.v3"
)

// ErrInheritNotEncodable is returned when an Inherit Field is marshalled
// directly. Inherit is represented by omission; tag the field with
// `json:",omitzero"` or `yaml:",omitempty"`.
var ErrInheritNotEncodable = errors.New("inherit: Inherit field has no encoded form; omit it with omitzero/omitempty")

var jsonNull = []byte("null")

// MarshalJSON encodes Set(v) as v and Unset as null.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	switch f.state {
	case StateSet:
		return json.Marshal(f.value)
	case StateUnset:
		return jsonNull, nil
	default:
		return nil, ErrInheritNotEncodable
	}
}

// UnmarshalJSON decodes null as Unset and any other value as Set. A key that
// is absent from the payload never reaches this method and stays Inherit.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*f = Unset[T]()
		return nil
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*f = Set(value)
	return nil
}

// YAMLUnsetTag marks an explicitly cleared Field in YAML documents. yaml.v3
// never hands plain null nodes to custom unmarshalers, so a bare `null`
// decodes as Inherit; `!unset` survives. Payloads routed through the hydrate
// decoder treat null as Unset as well.
const YAMLUnsetTag = "!unset"

// MarshalYAML encodes Set(v) as v and Unset as `!unset null`.
func (f Field[T]) MarshalYAML() (any, error) {
	switch f.state {
	case StateSet:
		return f.value, nil
	case StateUnset:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: YAMLUnsetTag, Value: "null"}, nil
	default:
		return nil, ErrInheritNotEncodable
	}
}

// UnmarshalYAML decodes `!unset` (or a null handed over directly) as Unset
// and anything else as Set.
func (f *Field[T]) UnmarshalYAML(node *yaml.Node) error {
	if isYAMLUnset(node) {
		*f = Unset[T]()
		return nil
	}
	var value T
	if err := node.Decode(&value); err != nil {
		return err
	}
	*f = Set(value)
	return nil
}

// MarshalJSON encodes Present(v) as v and Absent as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.present {
		return jsonNull, nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON decodes null as Absent and any other value as Present.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*o = None[T]()
		return nil
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*o = Some(value)
	return nil
}

// MarshalYAML encodes Absent as null.
func (o Optional[T]) MarshalYAML() (any, error) {
	if !o.present {
		return nil, nil
	}
	return o.value, nil
}

// UnmarshalYAML decodes null as Absent and any other value as Present.
func (o *Optional[T]) UnmarshalYAML(node *yaml.Node) error {
	if isYAMLNull(node) {
		*o = None[T]()
		return nil
	}
	var value T
	if err := node.Decode(&value); err != nil {
		return err
	}
	*o = Some(value)
	return nil
}

func isYAMLUnset(node *yaml.Node) bool {
	if node != nil && node.Tag == YAMLUnsetTag {
		return true
	}
	return isYAMLNull(node)
}

func isYAMLNull(node *yaml.Node) bool {
	if node == nil {
		return true
	}
	if node.Kind == yaml.AliasNode && node.Alias != nil {
		return isYAMLNull(node.Alias)
	}
	return node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null"
}
