// Package state defines persistence-facing contracts for loading and saving
// per-scope record snapshots, plus a resolver that loads the scopes of one
// domain and merges them with the inherit core.
//
// Responsibilities:
//   - Store[T] only loads/saves a single snapshot for a single Ref.
//   - Resolver[T] loads snapshots for multiple scopes and merges them by
//     constructing inherit.Layer[T] + inherit.Stack[T].
//   - The inherit package remains persistence-agnostic; all persistence logic
//     stays behind Store implementations supplied by consumers.
//
// Data flow:
//
//	Store -> Resolver -> inherit.NewStack(...).Merge(...) -> *inherit.Resolved[T]
//
// Provenance:
//
//	Meta.SnapshotID is mapped onto inherit.Layer[T].SnapshotID (via
//	inherit.WithSnapshotID), which is then observable through
//	Resolved.Trace(...).
//
// Activity:
//
//	When Resolver.Hooks is set, every resolution emits one layer-applied event
//	per contributing layer and every Mutate emits a snapshot created/updated
//	event listing the top-level fields that changed.
//
// Concurrency:
//
//	Meta.ETag is the optimistic concurrency token. Mutate rejects a caller
//	ETag that no longer matches the loaded snapshot with ErrETagMismatch,
//	and MemoryStore applies the same check on Save, issuing a new ETag per
//	revision.
//
// Deterministic keys:
//
//	Ref.Identifier() provides a canonical storage key format based on the
//	scope name `system` and the OwnedScopes list.
package state
