package state

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	inherit "github.com/goliatone/go-inherit"
	"github.com/goliatone/go-inherit/pkg/activity"
)

// Resolver orchestrates scoped loads and merges them into a Resolved value.
type Resolver[T any] struct {
	Store Store[T]
	// Hooks receive one layer-applied event per contributing layer on every
	// resolution and one snapshot event per successful Mutate.
	Hooks activity.Hooks
	// Channel is stamped on emitted events.
	Channel string
	// Options are forwarded to Stack.Merge, e.g. inherit.WithMerger with a
	// derived Merge procedure.
	Options []inherit.Option
}

type loadedLayer[T any] struct {
	layer inherit.Layer[T]
	meta  Meta
}

// Resolve loads each scope's snapshot and merges the ones that exist. Scopes
// without a stored snapshot are skipped.
func (r Resolver[T]) Resolve(ctx context.Context, domain string, scopes ...inherit.Scope) (*inherit.Resolved[T], error) {
	if r.Store == nil {
		return nil, fmt.Errorf("state: store is required")
	}
	if domain == "" {
		return nil, fmt.Errorf("state: domain is required")
	}
	if len(scopes) == 0 {
		return nil, fmt.Errorf("state: at least one scope is required")
	}

	loaded, err := r.loadLayers(ctx, domain, scopes)
	if err != nil {
		return nil, err
	}
	if len(loaded) == 0 {
		return nil, fmt.Errorf("state: no layers found for domain %q", domain)
	}
	return r.merge(ctx, domain, loaded)
}

// ResolveWithDefaults behaves like Resolve and appends a "defaults" layer
// weaker than every scope. When defaults is the zero value the record's
// intrinsic default (inherit.DefaultValue) is used instead.
func (r Resolver[T]) ResolveWithDefaults(ctx context.Context, domain string, defaults T, scopes ...inherit.Scope) (*inherit.Resolved[T], error) {
	if r.Store == nil {
		return nil, fmt.Errorf("state: store is required")
	}
	if domain == "" {
		return nil, fmt.Errorf("state: domain is required")
	}

	prioritySet := make(map[int]struct{}, len(scopes)+1)
	minPriority := 0
	if len(scopes) > 0 {
		minPriority = scopes[0].Priority
	}
	for _, scope := range scopes {
		if scope.Name == DefaultsScopeName {
			return nil, fmt.Errorf("state: scope name %q is reserved", DefaultsScopeName)
		}
		prioritySet[scope.Priority] = struct{}{}
		if scope.Priority < minPriority {
			minPriority = scope.Priority
		}
	}

	defaultsPriority := 0
	if len(scopes) > 0 {
		defaultsPriority = minPriority - 1
		for {
			if _, ok := prioritySet[defaultsPriority]; !ok {
				break
			}
			defaultsPriority--
		}
	}

	loaded, err := r.loadLayers(ctx, domain, scopes)
	if err != nil {
		return nil, err
	}

	if isZero(defaults) {
		defaults = inherit.DefaultValue[T]()
	}
	defaultsScope := inherit.NewScope(DefaultsScopeName, defaultsPriority, inherit.WithScopeLabel("Defaults"))
	loaded = append(loaded, loadedLayer[T]{layer: inherit.NewLayer(defaultsScope, defaults)})

	return r.merge(ctx, domain, loaded)
}

// Mutate loads one snapshot, applies fn to a copy, validates the result, then
// saves it. The returned value is the single-layer resolution of the saved
// snapshot.
func (r Resolver[T]) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator[T]) (*inherit.Resolved[T], Meta, error) {
	if r.Store == nil {
		return nil, Meta{}, fmt.Errorf("state: store is required")
	}
	if ref.Domain == "" {
		return nil, Meta{}, fmt.Errorf("state: domain is required")
	}
	if ref.Scope.Name == "" {
		return nil, Meta{}, fmt.Errorf("state: scope name is required")
	}
	if fn == nil {
		return nil, Meta{}, fmt.Errorf("state: mutator is required")
	}

	previous, loadedMeta, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: load %q for scope %q: %w", ref.Domain, ref.Scope.Name, err)
	}
	if !ok {
		var zero T
		previous = zero
		loadedMeta = Meta{}
	}

	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return nil, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	snapshot := inherit.Clone(previous)
	if err := fn(&snapshot); err != nil {
		return nil, loadedMeta, err
	}

	candidate, err := inherit.NewStack(inherit.NewLayer(ref.Scope, snapshot))
	if err != nil {
		return nil, loadedMeta, fmt.Errorf("state: stack: %w", err)
	}
	if _, err := candidate.Merge(r.mergeOptions(inherit.WithValidation(true))...); err != nil {
		return nil, loadedMeta, err
	}

	saveMeta := overlayMeta(loadedMeta, meta)
	if meta.UpdatedAt.IsZero() {
		saveMeta.UpdatedAt = time.Time{}
	}
	savedMeta, err := r.Store.Save(ctx, ref, snapshot, saveMeta)
	if err != nil {
		return nil, loadedMeta, fmt.Errorf("state: save %q for scope %q: %w", ref.Domain, ref.Scope.Name, err)
	}

	stack, err := inherit.NewStack(inherit.NewLayer(ref.Scope, snapshot, inherit.WithSnapshotID[T](savedMeta.SnapshotID)))
	if err != nil {
		return nil, loadedMeta, fmt.Errorf("state: stack: %w", err)
	}
	resolved, err := stack.Merge(r.mergeOptions()...)
	if err != nil {
		return nil, loadedMeta, err
	}

	input := r.eventInput(ref.Domain, ref.Scope, savedMeta)
	input.Identifier, _ = ref.Identifier()
	input.Changed = changedFields(previous, snapshot)
	event := activity.BuildSnapshotUpdatedEvent(input)
	if !ok {
		event = activity.BuildSnapshotCreatedEvent(input)
	}
	if err := r.notify(ctx, event); err != nil {
		return resolved, savedMeta, err
	}
	return resolved, savedMeta, nil
}

func (r Resolver[T]) loadLayers(ctx context.Context, domain string, scopes []inherit.Scope) ([]loadedLayer[T], error) {
	loaded := make([]loadedLayer[T], 0, len(scopes)+1)
	for _, scope := range scopes {
		snapshot, meta, ok, err := r.Store.Load(ctx, Ref{Domain: domain, Scope: scope})
		if err != nil {
			return nil, fmt.Errorf("state: load %q for scope %q: %w", domain, scope.Name, err)
		}
		if !ok {
			continue
		}
		loaded = append(loaded, loadedLayer[T]{
			layer: inherit.NewLayer(scope, snapshot, inherit.WithSnapshotID[T](meta.SnapshotID)),
			meta:  meta,
		})
	}
	return loaded, nil
}

func (r Resolver[T]) merge(ctx context.Context, domain string, loaded []loadedLayer[T]) (*inherit.Resolved[T], error) {
	layers := make([]inherit.Layer[T], len(loaded))
	for i := range loaded {
		layers[i] = loaded[i].layer
	}
	stack, err := inherit.NewStack(layers...)
	if err != nil {
		return nil, fmt.Errorf("state: stack: %w", err)
	}
	resolved, err := stack.Merge(r.mergeOptions()...)
	if err != nil {
		return nil, err
	}

	if !r.Hooks.Enabled() {
		return resolved, nil
	}
	var errs []error
	for _, item := range loaded {
		input := r.eventInput(domain, item.layer.Scope, item.meta)
		if item.layer.Scope.Name != DefaultsScopeName {
			input.Identifier, _ = Ref{Domain: domain, Scope: item.layer.Scope}.Identifier()
		}
		if err := r.notify(ctx, activity.BuildLayerAppliedEvent(input)); err != nil {
			errs = append(errs, err)
		}
	}
	return resolved, errors.Join(errs...)
}

func (r Resolver[T]) mergeOptions(extra ...inherit.Option) []inherit.Option {
	out := make([]inherit.Option, 0, len(r.Options)+len(extra))
	out = append(out, r.Options...)
	return append(out, extra...)
}

func (r Resolver[T]) eventInput(domain string, scope inherit.Scope, meta Meta) activity.SnapshotEventInput {
	return activity.SnapshotEventInput{
		ActorID:  meta.Extra[ExtraActorID],
		UserID:   meta.Extra[ExtraUserID],
		TenantID: meta.Extra[ExtraTenantID],
		Channel:  r.Channel,
		Domain:   domain,
		ETag:     meta.ETag,
		Scope: activity.ScopeContext{
			Name:       scope.Name,
			Label:      scope.Label,
			Priority:   scope.Priority,
			Metadata:   scope.Metadata,
			SnapshotID: meta.SnapshotID,
		},
		OccurredAt: meta.UpdatedAt,
	}
}

func (r Resolver[T]) notify(ctx context.Context, event activity.Event) error {
	if !r.Hooks.Enabled() {
		return nil
	}
	if err := r.Hooks.Notify(ctx, event); err != nil {
		return fmt.Errorf("%w: %w", ErrNotify, err)
	}
	return nil
}

func isZero[T any](value T) bool {
	return reflect.ValueOf(&value).Elem().IsZero()
}

// changedFields lists the exported top-level fields whose value differs
// between before and after. Non-struct records report nothing.
func changedFields[T any](before, after T) []string {
	b := reflect.ValueOf(&before).Elem()
	a := reflect.ValueOf(&after).Elem()
	if b.Kind() != reflect.Struct {
		return nil
	}
	var out []string
	t := b.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if !reflect.DeepEqual(b.Field(i).Interface(), a.Field(i).Interface()) {
			out = append(out, field.Name)
		}
	}
	return out
}
