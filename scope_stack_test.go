package inherit

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type sampleSnapshot struct {
	Name   string
	Count  *int
	Labels map[string]string
}

func intPtr(v int) *int {
	return &v
}

func TestNewScopeCopiesMetadata(t *testing.T) {
	meta := map[string]any{"owner": "system"}
	scope := NewScope("system", 50,
		WithScopeLabel("System Defaults"),
		WithScopeMetadata(meta),
	)

	meta["owner"] = "mutated"

	if got := scope.Metadata["owner"]; got != "system" {
		t.Fatalf("expected metadata copy to remain 'system', got %q", got)
	}
	if scope.Label != "System Defaults" {
		t.Fatalf("label not set, got %q", scope.Label)
	}
}

func TestNewLayerClonesSnapshot(t *testing.T) {
	snapshot := sampleSnapshot{
		Name:  "default",
		Count: intPtr(5),
		Labels: map[string]string{
			"env": "prod",
		},
	}

	layer := NewLayer(NewScope("user", 100), snapshot, WithSnapshotID[sampleSnapshot]("abc-123"))

	snapshot.Labels["env"] = "qa"
	if layer.Snapshot.Labels["env"] != "prod" {
		t.Fatalf("expected layer snapshot to remain immutable; got %q", layer.Snapshot.Labels["env"])
	}
	layer.Snapshot.Labels["env"] = "staging"
	if snapshot.Labels["env"] != "qa" {
		t.Fatalf("mutating layer snapshot should not affect original, got %q", snapshot.Labels["env"])
	}
	if layer.SnapshotID != "abc-123" {
		t.Fatalf("snapshot id not set, got %q", layer.SnapshotID)
	}
}

func TestNewStackOrdersAndValidates(t *testing.T) {
	user := NewLayer(NewScope("user", 300), sampleSnapshot{Name: "user"})
	group := NewLayer(NewScope("group", 200), sampleSnapshot{Name: "group"})
	defaults := NewLayer(NewScope("defaults", 100), sampleSnapshot{Name: "defaults"})

	stack, err := NewStack(defaults, user, group)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	layers := stack.Layers()
	wantOrder := []string{"user", "group", "defaults"}
	for i, want := range wantOrder {
		if layers[i].Scope.Name != want {
			t.Fatalf("expected layer %d to be %q, got %q", i, want, layers[i].Scope.Name)
		}
	}

	if _, err := NewStack(user, NewLayer(NewScope("user", 50), sampleSnapshot{})); !errors.Is(err, ErrDuplicateScopeName) {
		t.Fatalf("expected duplicate scope name error, got %v", err)
	}

	if _, err := NewStack(
		NewLayer(NewScope("alpha", 100), sampleSnapshot{}),
		NewLayer(NewScope("beta", 100), sampleSnapshot{}),
	); !errors.Is(err, ErrPriorityOrder) {
		t.Fatalf("expected priority order error, got %v", err)
	}
}

func TestStackMergeStructSnapshots(t *testing.T) {
	defaults := NewLayer(NewScope("defaults", 100), serviceConfig{
		Name:    Set("defaults"),
		Retries: Set(3),
		Labels:  Set(map[string]string{"env": "prod"}),
		Limits:  limitsConfig{CPU: Set(1.0), Memory: Set(512)},
	})
	group := NewLayer(NewScope("group", 200), serviceConfig{
		Retries: Set(7),
		Region:  Some("eu"),
		Limits:  limitsConfig{Memory: Unset[int]()},
	})
	user := NewLayer(NewScope("user", 300), serviceConfig{
		Name:  Set("user"),
		Token: "secret",
	})

	stack, err := NewStack(defaults, user, group)
	if err != nil {
		t.Fatalf("stack validation failed: %v", err)
	}

	merged, err := stack.Merge()
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	want := serviceConfig{
		Name:    Set("user"),
		Retries: Set(7),
		Region:  Some("eu"),
		Labels:  Set(map[string]string{"env": "prod"}),
		Limits:  limitsConfig{CPU: Set(1.0), Memory: Unset[int]()},
		Token:   "secret",
	}
	if diff := cmp.Diff(want, merged.Value); diff != "" {
		t.Fatalf("merged value mismatch (-want +got):\n%s", diff)
	}
	scopes := merged.Scopes()
	if len(scopes) != 3 || scopes[0].Name != "user" || scopes[2].Name != "defaults" {
		t.Fatalf("unexpected scopes %+v", scopes)
	}
}

func TestStackMergeWithCustomMerger(t *testing.T) {
	type snapshot map[string]any
	defaults := NewLayer(NewScope("defaults", 10), snapshot{"dark_mode": false, "lang": "en"})
	user := NewLayer(NewScope("user", 20), snapshot{"dark_mode": true})

	stack, err := NewStack(defaults, user)
	if err != nil {
		t.Fatalf("stack validation failed: %v", err)
	}

	merged, err := stack.Merge()
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if _, ok := merged.Value["lang"]; ok {
		t.Fatalf("maps without Merge keep self, got %+v", merged.Value)
	}

	merged, err = stack.Merge(WithMerger(func(self, parent snapshot) snapshot {
		out := snapshot{}
		for k, v := range parent {
			out[k] = v
		}
		for k, v := range self {
			out[k] = v
		}
		return out
	}))
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if merged.Value["dark_mode"] != true || merged.Value["lang"] != "en" {
		t.Fatalf("expected custom merger to combine maps, got %+v", merged.Value)
	}

	if _, err := stack.Merge(WithMerger(func(self, parent int) int { return self })); err == nil {
		t.Fatalf("expected mismatched merger to fail")
	}
}

type validatedConfig struct {
	Port Field[int]
}

func (c validatedConfig) Merge(parent validatedConfig) validatedConfig {
	return validatedConfig{Port: c.Port.Merge(parent.Port)}
}

func (c validatedConfig) Validate() error {
	if !c.Port.IsSet() {
		return errors.New("port required")
	}
	return nil
}

func TestStackMergeValidation(t *testing.T) {
	stack, err := NewStack(NewLayer(NewScope("user", 1), validatedConfig{Port: Unset[int]()}))
	if err != nil {
		t.Fatalf("stack validation failed: %v", err)
	}
	if _, err := stack.Merge(); err != nil {
		t.Fatalf("validation is opt-in, got %v", err)
	}
	if _, err := stack.Merge(WithValidation(true)); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestSystemProjectUser(t *testing.T) {
	resolved, err := SystemProjectUser(
		chainRecord{X: Set(1)},
		chainRecord{Y: Set(2)},
		chainRecord{},
	)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if diff := cmp.Diff(chainRecord{X: Set(1), Y: Set(2)}, resolved.Value); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	next := resolved.LayerWith(chainRecord{X: Unset[int]()})
	if !next.Value.X.IsUnset() {
		t.Fatalf("expected LayerWith override to clear X, got %s", next.Value.X)
	}
	if !resolved.Value.X.IsSet() {
		t.Fatalf("LayerWith must not modify the receiver")
	}
}

func TestStackLayersAreImmutable(t *testing.T) {
	stack, err := NewStack(
		NewLayer(NewScope("a", 100, WithScopeMetadata(map[string]any{"owner": "a"})),
			sampleSnapshot{Labels: map[string]string{"key": "value"}}),
		NewLayer(NewScope("b", 50), sampleSnapshot{}),
	)
	if err != nil {
		t.Fatalf("stack validation failed: %v", err)
	}

	layers := stack.Layers()
	layers[0].Scope.Metadata["owner"] = "mutated"
	layers[0].Snapshot.Labels["key"] = "mutated"

	next := stack.Layers()
	if next[0].Scope.Metadata["owner"] != "a" {
		t.Fatalf("expected metadata copy to remain 'a', got %q", next[0].Scope.Metadata["owner"])
	}
	if next[0].Snapshot.Labels["key"] != "value" {
		t.Fatalf("expected snapshot labels to remain 'value', got %q", next[0].Snapshot.Labels["key"])
	}
}

func TestStackLenAndEmpty(t *testing.T) {
	stack, err := NewStack[sampleSnapshot]()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stack.Len() != 0 {
		t.Fatalf("empty stack len expected 0, got %d", stack.Len())
	}

	if _, err := stack.Merge(); err == nil {
		t.Fatalf("expected merge to fail for empty stack")
	}
	if layers := stack.Layers(); layers != nil {
		t.Fatalf("expected nil layers for empty stack, got %+v", layers)
	}
}

type toggles struct {
	Beta  Field[bool]
	Theme Field[string]
}

func TestStackWithAddsLayerWithoutTouchingReceiver(t *testing.T) {
	base, err := NewStack(
		NewLayer(NewScope("system", ScopePrioritySystem), toggles{Beta: Set(false), Theme: Set("light")}),
	)
	if err != nil {
		t.Fatalf("new stack: %v", err)
	}
	extended, err := base.With(NewLayer(NewScope("user", ScopePriorityUser), toggles{Beta: Set(true)}))
	if err != nil {
		t.Fatalf("with: %v", err)
	}
	if base.Len() != 1 || extended.Len() != 2 {
		t.Fatalf("unexpected lengths base=%d extended=%d", base.Len(), extended.Len())
	}

	resolved, err := extended.Merge()
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	want := toggles{Beta: Set(true), Theme: Set("light")}
	if diff := cmp.Diff(want, resolved.Value); diff != "" {
		t.Fatalf("merged mismatch (-want +got):\n%s", diff)
	}
	layers := resolved.Layers()
	if len(layers) != 2 || layers[0].Scope.String() != "user(300)" || layers[1].Scope.String() != "system(100)" {
		t.Fatalf("unexpected layers %+v", layers)
	}

	if _, err := extended.With(NewLayer(NewScope("project", ScopePriorityUser), toggles{})); !errors.Is(err, ErrPriorityOrder) {
		t.Fatalf("expected ErrPriorityOrder, got %v", err)
	}
}
