package inherit

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/goliatone/go-inherit/internal/clone"
)

var (
	// ErrScopeNameRequired indicates a layer whose scope has no name.
	ErrScopeNameRequired = errors.New("inherit: scope name must be provided")
	// ErrDuplicateScopeName indicates two layers naming the same scope.
	ErrDuplicateScopeName = errors.New("inherit: scope names must be unique")
	// ErrPriorityOrder indicates two layers sharing a priority, which would
	// leave their precedence undefined.
	ErrPriorityOrder = errors.New("inherit: scope priorities must be strictly ordered")
	// ErrEmptyStack is returned when merging a stack without layers.
	ErrEmptyStack = errors.New("inherit: stack must include at least one layer")
)

// Scope names one level of an override chain such as system, project or
// user. A higher Priority is a stronger level.
type Scope struct {
	Name     string
	Label    string
	Priority int
	Metadata map[string]any
}

// ScopeOption configures a Scope built by NewScope.
type ScopeOption func(*Scope)

// WithScopeLabel sets the display label.
func WithScopeLabel(label string) ScopeOption {
	return func(s *Scope) {
		s.Label = label
	}
}

// WithScopeMetadata attaches metadata, such as the tenant or user id the
// scope belongs to. The map is copied.
func WithScopeMetadata(metadata map[string]any) ScopeOption {
	return func(s *Scope) {
		if len(metadata) > 0 {
			s.Metadata = maps.Clone(metadata)
		}
	}
}

// NewScope builds a Scope. Names and priorities are checked by NewStack.
func NewScope(name string, priority int, opts ...ScopeOption) Scope {
	scope := Scope{Name: name, Priority: priority}
	for _, opt := range opts {
		if opt != nil {
			opt(&scope)
		}
	}
	return scope
}

// String returns the scope name followed by its priority.
func (s Scope) String() string {
	return fmt.Sprintf("%s(%d)", s.Name, s.Priority)
}

func (s Scope) clone() Scope {
	if len(s.Metadata) == 0 {
		s.Metadata = nil
		return s
	}
	s.Metadata = maps.Clone(s.Metadata)
	return s
}

// Layer is one scope's snapshot of a record: the opinions that level of the
// chain holds.
type Layer[T any] struct {
	Scope      Scope
	Snapshot   T
	SnapshotID string
}

// LayerOption configures a Layer built by NewLayer.
type LayerOption[T any] func(*Layer[T])

// WithSnapshotID records the store id of the snapshot so traces can point at
// the stored document.
func WithSnapshotID[T any](id string) LayerOption[T] {
	return func(layer *Layer[T]) {
		layer.SnapshotID = id
	}
}

// NewLayer pairs scope with a deep copy of snapshot.
func NewLayer[T any](scope Scope, snapshot T, opts ...LayerOption[T]) Layer[T] {
	layer := Layer[T]{Scope: scope, Snapshot: snapshot}
	for _, opt := range opts {
		if opt != nil {
			opt(&layer)
		}
	}
	return layer.clone()
}

func (l Layer[T]) clone() Layer[T] {
	l.Scope = l.Scope.clone()
	l.Snapshot = clone.Of(l.Snapshot)
	return l
}

// Stack is an immutable override chain, strongest layer first.
type Stack[T any] struct {
	layers []Layer[T]
}

// NewStack copies layers, orders them by descending priority and rejects
// unnamed scopes, repeated names and repeated priorities. An empty stack is
// valid but cannot be merged.
func NewStack[T any](layers ...Layer[T]) (*Stack[T], error) {
	ordered := make([]Layer[T], 0, len(layers))
	names := make(map[string]struct{}, len(layers))
	for _, layer := range layers {
		if layer.Scope.Name == "" {
			return nil, ErrScopeNameRequired
		}
		if _, seen := names[layer.Scope.Name]; seen {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateScopeName, layer.Scope.Name)
		}
		names[layer.Scope.Name] = struct{}{}
		ordered = append(ordered, layer.clone())
	}

	slices.SortStableFunc(ordered, func(a, b Layer[T]) int {
		return cmp.Compare(b.Scope.Priority, a.Scope.Priority)
	})
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Scope.Priority == ordered[i].Scope.Priority {
			return nil, fmt.Errorf("%w: %s and %s share %d", ErrPriorityOrder,
				ordered[i-1].Scope.Name, ordered[i].Scope.Name, ordered[i].Scope.Priority)
		}
	}
	return &Stack[T]{layers: ordered}, nil
}

// With returns a new stack holding the receiver's layers plus layer.
func (s *Stack[T]) With(layer Layer[T]) (*Stack[T], error) {
	return NewStack(append(s.Layers(), layer)...)
}

// Layers returns copies of the layers, strongest first.
func (s *Stack[T]) Layers() []Layer[T] {
	if s == nil || len(s.layers) == 0 {
		return nil
	}
	out := make([]Layer[T], len(s.layers))
	for i, layer := range s.layers {
		out[i] = layer.clone()
	}
	return out
}

// Len returns the number of layers.
func (s *Stack[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.layers)
}

// Merge folds the layers strongest first with MergeValue, or with the merger
// set by WithMerger, and keeps the layers for Trace.
func (s *Stack[T]) Merge(opts ...Option) (*Resolved[T], error) {
	if s.Len() == 0 {
		return nil, ErrEmptyStack
	}
	cfg := applyOptions(opts)
	merge, err := mergerFor[T](cfg)
	if err != nil {
		return nil, err
	}

	snapshots := make([]T, len(s.layers))
	for i, layer := range s.layers {
		snapshots[i] = layer.Snapshot
	}
	// Merge rules may hand back parent payloads, so the result is detached
	// from the stack before it escapes.
	resolved := &Resolved[T]{
		Value:  clone.Of(mergeLayersWith(merge, snapshots)),
		cfg:    cfg,
		layers: s.Layers(),
	}
	if cfg.validate {
		if err := resolved.Validate(); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}
