package schema

// DefaultTagKey is the struct tag key read for annotations.
const DefaultTagKey = "inherit"

// Record is the parsed description of one configuration record.
type Record struct {
	Name string
	// TypeParams lists type parameter names of a generic declaration.
	TypeParams []string
	Fields     []Field
}

// Field describes one record field in declaration order.
type Field struct {
	Name string
	// Type is the field's type expression as written or reported by reflect.
	Type string
	// Embedded marks an anonymous field.
	Embedded    bool
	Index       int
	Annotations []Annotation
}

// Annotation is one raw policy directive attached to a field.
type Annotation struct {
	Key      string
	Value    string
	HasValue bool
	// Raw keeps the annotation text for diagnostics.
	Raw string
}

// String renders the annotation in tag form.
func (a Annotation) String() string {
	if a.Raw != "" {
		return a.Raw
	}
	if a.HasValue {
		return a.Key + "=" + a.Value
	}
	return a.Key
}

// Policy is the per-field synthesis directive set.
type Policy struct {
	Default    string
	HasDefault bool
	SkipMerge  bool
}

// Plan is a validated record ready for synthesis.
type Plan struct {
	Name   string
	Fields []PlannedField
}

// PlannedField pairs a field with its parsed policy.
type PlannedField struct {
	Name   string
	Type   string
	Index  int
	Policy Policy
}
