// Package gen generates Default and Merge methods for configuration records.
//
// Records are read from Go source. A struct type is selected either by name
// (WithTypes) or by a //inherit:generate line in its doc comment. Field
// policy comes from the `inherit` struct tag or from //inherit: comment
// directives on the field:
//
//	//inherit:generate
//	type Config struct {
//		Retries inherit.Field[int] `inherit:"default=inherit.Set(3)"`
//		//inherit:skip_merge
//		Token string
//	}
//
// Default expressions are Go expressions copied verbatim into the generated
// Default method. Output is gofmt formatted and byte-identical for identical
// input.
package gen
