package schema

import "reflect"

// FromType reads a Record from a struct type. Pointer types are
// dereferenced. Unexported named fields are left out of the record; the
// reflective deriver carries them over from the receiver unchanged.
func FromType(t reflect.Type, tagKey string) (Record, error) {
	if tagKey == "" {
		tagKey = DefaultTagKey
	}
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return Record{}, shapeError("<nil>", "", -1, ErrNotRecord)
	}
	name := t.Name()
	if name == "" {
		name = t.String()
	}
	if t.Kind() != reflect.Struct {
		return Record{}, shapeError(name, "", -1, ErrNotRecord)
	}

	record := Record{Name: name, Fields: make([]Field, 0, t.NumField())}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.Anonymous && !sf.IsExported() {
			continue
		}
		field := Field{
			Name:     sf.Name,
			Type:     sf.Type.String(),
			Embedded: sf.Anonymous,
			Index:    i,
		}
		if raw, ok := sf.Tag.Lookup(tagKey); ok {
			annotations, err := ParseTag(raw)
			if err != nil {
				return Record{}, &PolicyError{Record: name, Field: sf.Name, Annotation: raw, Err: err}
			}
			field.Annotations = annotations
		}
		record.Fields = append(record.Fields, field)
	}
	return record, nil
}
