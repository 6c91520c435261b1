package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRecord reports a type that is not a struct.
	ErrNotRecord = errors.New("schema: not a record")
	// ErrUnlabeledField reports an embedded, blank or otherwise unnamed field.
	ErrUnlabeledField = errors.New("schema: unlabeled field")
	// ErrDuplicateField reports two fields sharing one name.
	ErrDuplicateField = errors.New("schema: duplicate field")
	// ErrTypeParams reports a generic record declaration.
	ErrTypeParams = errors.New("schema: type parameters not supported")

	// ErrDuplicateDefault reports more than one default annotation on a field.
	ErrDuplicateDefault = errors.New("schema: duplicate default annotation")
	// ErrUnrecognizedAnnotation reports an annotation outside {default, skip_merge}.
	ErrUnrecognizedAnnotation = errors.New("schema: unrecognized annotation")
	// ErrMalformedAnnotation reports annotation text that cannot be parsed.
	ErrMalformedAnnotation = errors.New("schema: malformed annotation")
	// ErrInvalidDefault reports a default expression rejected by a validator.
	ErrInvalidDefault = errors.New("schema: invalid default expression")
)

// ShapeError reports a record that is not a flat named-field struct.
type ShapeError struct {
	Record string
	Field  string
	Index  int
	Err    error
}

func (e *ShapeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Field != "":
		return fmt.Sprintf("%v: record %s field %s", e.Err, e.Record, e.Field)
	case e.Index >= 0:
		return fmt.Sprintf("%v: record %s field #%d", e.Err, e.Record, e.Index)
	default:
		return fmt.Sprintf("%v: record %s", e.Err, e.Record)
	}
}

func (e *ShapeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// PolicyError reports an invalid field annotation.
type PolicyError struct {
	Record     string
	Field      string
	Annotation string
	Err        error
}

func (e *PolicyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%v: record %s field %s", e.Err, e.Record, e.Field)
	if e.Annotation != "" {
		msg += fmt.Sprintf(" annotation %q", e.Annotation)
	}
	return msg
}

func (e *PolicyError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func shapeError(record, field string, index int, err error) *ShapeError {
	return &ShapeError{Record: record, Field: field, Index: index, Err: err}
}
