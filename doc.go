// Package inherit merges hierarchical configuration layers (system, project,
// user, ...) where every field is tri-state: Inherit defers to the parent
// layer, Unset explicitly clears the value, and Set carries a value.
//
// Records get their Default and Merge procedures either by hand, from the
// inheritgen code generator, or at run time through Derive, which reads the
// `inherit` struct tag:
//
//	type Server struct {
//		Port    inherit.Field[int]    `inherit:"default=8080"`
//		Token   inherit.Field[string] `inherit:"skip_merge"`
//		Region  inherit.Optional[string]
//	}
//
// Layers are resolved strongest first with MergeLayers or a Stack, which also
// keeps per-layer provenance for Trace.
package inherit
