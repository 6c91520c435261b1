package schema

import "fmt"

const (
	annotationDefault   = "default"
	annotationSkipMerge = "skip_merge"
)

// ParsePolicy folds annotations into a Policy.
//
// The returned error is a *PolicyError with Record and Field left empty;
// Compile fills them in.
func ParsePolicy(annotations []Annotation) (Policy, error) {
	var policy Policy
	for _, ann := range annotations {
		switch ann.Key {
		case annotationDefault:
			if !ann.HasValue || ann.Value == "" {
				return Policy{}, &PolicyError{Annotation: ann.String(), Err: fmt.Errorf("%w: default requires a value", ErrMalformedAnnotation)}
			}
			if policy.HasDefault {
				return Policy{}, &PolicyError{Annotation: ann.String(), Err: ErrDuplicateDefault}
			}
			policy.Default = ann.Value
			policy.HasDefault = true
		case annotationSkipMerge:
			if ann.HasValue {
				return Policy{}, &PolicyError{Annotation: ann.String(), Err: fmt.Errorf("%w: skip_merge takes no value", ErrMalformedAnnotation)}
			}
			policy.SkipMerge = true
		default:
			return Policy{}, &PolicyError{Annotation: ann.String(), Err: ErrUnrecognizedAnnotation}
		}
	}
	return policy, nil
}
