// Package schema describes configuration records for synthesis.
//
// A Record is an ordered list of named fields, each carrying raw
// annotations. Compile validates the record shape, parses every field's
// annotations into a Policy and returns a Plan that generators and the
// reflective deriver consume. Only two annotations are recognised:
//
//	default=<expr>  override the field type's intrinsic default
//	skip_merge      carry the receiver's value forward, ignore the parent
//
// Annotations are authored as struct tags, for example
// `inherit:"default=inherit.Set(7),skip_merge"`, or as field comment
// directives read by package gen.
package schema
