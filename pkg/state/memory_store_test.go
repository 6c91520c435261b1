package state_test

import (
	"context"
	"errors"
	"testing"
	"time"

	inherit "github.com/goliatone/go-inherit"
	"github.com/goliatone/go-inherit/pkg/state"
)

type editorConfig struct {
	Theme    inherit.Field[string]   `json:"theme,omitzero"`
	FontSize inherit.Field[int]      `json:"font_size,omitzero"`
	Plugins  inherit.Field[[]string] `json:"plugins,omitzero"`
}

func (c editorConfig) Merge(parent editorConfig) editorConfig {
	return editorConfig{
		Theme:    c.Theme.Merge(parent.Theme),
		FontSize: c.FontSize.Merge(parent.FontSize),
		Plugins:  c.Plugins.Merge(parent.Plugins),
	}
}

func (editorConfig) Default() editorConfig {
	return editorConfig{Theme: inherit.Set("light"), FontSize: inherit.Set(12)}
}

func systemScope() inherit.Scope {
	return inherit.NewScope("system", inherit.ScopePrioritySystem)
}

func projectScope(id string) inherit.Scope {
	return inherit.NewScope("project", inherit.ScopePriorityProject, inherit.WithScopeMetadata(map[string]any{"project_id": id}))
}

func userScope(id string) inherit.Scope {
	return inherit.NewScope("user", inherit.ScopePriorityUser, inherit.WithScopeMetadata(map[string]any{"user_id": id}))
}

func TestMemoryStoreRoundTripCopiesSnapshots(t *testing.T) {
	store := state.NewMemoryStore[editorConfig]()
	ref := state.Ref{Domain: "editor", Scope: userScope("u1")}
	plugins := []string{"git"}

	meta, err := store.Save(context.Background(), ref, editorConfig{Plugins: inherit.Set(plugins)}, state.Meta{ETag: "v1"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if meta.SnapshotID == "" {
		t.Fatalf("expected generated snapshot id")
	}
	if meta.UpdatedAt.IsZero() {
		t.Fatalf("expected UpdatedAt to be stamped")
	}
	plugins[0] = "changed"

	got, loadedMeta, ok, err := store.Load(context.Background(), ref)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if loadedMeta.SnapshotID != meta.SnapshotID || loadedMeta.ETag != "1" || meta.ETag != "1" {
		t.Fatalf("unexpected meta: %+v", loadedMeta)
	}
	value, _ := got.Plugins.Get()
	if len(value) != 1 || value[0] != "git" {
		t.Fatalf("expected stored copy to be isolated, got %v", value)
	}
}

func TestMemoryStoreKeepsProvidedSnapshotID(t *testing.T) {
	store := state.NewMemoryStore[editorConfig]()
	ref := state.Ref{Domain: "editor", Scope: systemScope()}
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	meta, err := store.Save(context.Background(), ref, editorConfig{}, state.Meta{SnapshotID: "snap-1", UpdatedAt: at})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if meta.SnapshotID != "snap-1" || !meta.UpdatedAt.Equal(at) {
		t.Fatalf("expected provided meta preserved, got %+v", meta)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one record, got %d", store.Len())
	}
}

func TestMemoryStoreMissingAndInvalidRefs(t *testing.T) {
	store := state.NewMemoryStore[editorConfig]()

	_, _, ok, err := store.Load(context.Background(), state.Ref{Domain: "editor", Scope: systemScope()})
	if err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	bad := state.Ref{Domain: "editor", Scope: inherit.NewScope("user", 1)}
	if _, err := store.Save(context.Background(), bad, editorConfig{}, state.Meta{}); !errors.Is(err, state.ErrMissingScopeID) {
		t.Fatalf("expected ErrMissingScopeID, got %v", err)
	}
}

func TestMemoryStoreETagGuardsConcurrentWriters(t *testing.T) {
	store := state.NewMemoryStore[editorConfig]()
	ctx := context.Background()
	ref := state.Ref{Domain: "editor", Scope: projectScope("p1")}

	first, err := store.Save(ctx, ref, editorConfig{Theme: inherit.Set("dark")}, state.Meta{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := store.Save(ctx, ref, editorConfig{Theme: inherit.Set("light")}, state.Meta{ETag: first.ETag})
	if err != nil {
		t.Fatalf("conditional save: %v", err)
	}
	if second.ETag == first.ETag || second.SnapshotID != first.SnapshotID {
		t.Fatalf("expected new revision of the same snapshot, got %+v then %+v", first, second)
	}

	if _, err := store.Save(ctx, ref, editorConfig{}, state.Meta{ETag: first.ETag}); !errors.Is(err, state.ErrETagMismatch) {
		t.Fatalf("expected ErrETagMismatch for stale etag, got %v", err)
	}
	got, _, _, _ := store.Load(ctx, ref)
	if theme, _ := got.Theme.Get(); theme != "light" {
		t.Fatalf("stale write must not land, got %q", theme)
	}
}
