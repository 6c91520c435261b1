package schema

import (
	"errors"
	"fmt"
)

// CompileOption configures Compile.
type CompileOption func(*compileConfig)

type compileConfig struct {
	validateDefault func(field PlannedField) error
}

// WithDefaultValidator checks every default expression during Compile.
// A validator error is reported as ErrInvalidDefault.
func WithDefaultValidator(fn func(field PlannedField) error) CompileOption {
	return func(cfg *compileConfig) {
		cfg.validateDefault = fn
	}
}

// Compile validates record and resolves every field's policy. It returns
// the first error found; no plan is produced on failure.
func Compile(record Record, opts ...CompileOption) (Plan, error) {
	cfg := compileConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if record.Name == "" {
		return Plan{}, shapeError("<anonymous>", "", -1, ErrNotRecord)
	}
	if len(record.TypeParams) > 0 {
		return Plan{}, shapeError(record.Name, "", -1, ErrTypeParams)
	}

	plan := Plan{Name: record.Name, Fields: make([]PlannedField, 0, len(record.Fields))}
	seen := make(map[string]struct{}, len(record.Fields))
	for position, field := range record.Fields {
		if field.Embedded || field.Name == "" || field.Name == "_" {
			return Plan{}, shapeError(record.Name, field.Name, position, ErrUnlabeledField)
		}
		if _, dup := seen[field.Name]; dup {
			return Plan{}, shapeError(record.Name, field.Name, position, ErrDuplicateField)
		}
		seen[field.Name] = struct{}{}

		policy, err := ParsePolicy(field.Annotations)
		if err != nil {
			return Plan{}, withLocation(err, record.Name, field.Name)
		}
		planned := PlannedField{
			Name:   field.Name,
			Type:   field.Type,
			Index:  field.Index,
			Policy: policy,
		}
		if policy.HasDefault && cfg.validateDefault != nil {
			if err := cfg.validateDefault(planned); err != nil {
				return Plan{}, &PolicyError{
					Record:     record.Name,
					Field:      field.Name,
					Annotation: annotationDefault + "=" + policy.Default,
					Err:        fmt.Errorf("%w: %v", ErrInvalidDefault, err),
				}
			}
		}
		plan.Fields = append(plan.Fields, planned)
	}
	return plan, nil
}

func withLocation(err error, record, field string) error {
	var policyErr *PolicyError
	if errors.As(err, &policyErr) {
		policyErr.Record = record
		policyErr.Field = field
		return policyErr
	}
	return &PolicyError{Record: record, Field: field, Err: err}
}
