package inherit

import (
	"errors"
	"reflect"
	"testing"
)

func traceFixture(t *testing.T) *Resolved[serviceConfig] {
	t.Helper()
	stack, err := NewStack(
		NewLayer(NewScope("system", ScopePrioritySystem), serviceConfig{
			Name:    Set("base"),
			Retries: Set(3),
			Labels:  Set(map[string]string{"env": "prod"}),
			Limits:  limitsConfig{Memory: Set(512)},
		}, WithSnapshotID[serviceConfig]("snap-system")),
		NewLayer(NewScope("project", ScopePriorityProject), serviceConfig{
			Retries: Unset[int](),
		}),
		NewLayer(NewScope("user", ScopePriorityUser), serviceConfig{
			Limits: limitsConfig{Memory: Set(1024)},
		}),
	)
	if err != nil {
		t.Fatalf("stack: %v", err)
	}
	resolved, err := stack.Merge()
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	return resolved
}

func TestResolvedTraceReportsLayerProvenance(t *testing.T) {
	resolved := traceFixture(t)

	value, trace, err := resolved.Trace("limits.memory")
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if value != 1024 {
		t.Fatalf("expected merged value 1024, got %v", value)
	}
	states := []string{"set", "inherit", "set"}
	if len(trace.Layers) != len(states) {
		t.Fatalf("expected %d layers, got %d", len(states), len(trace.Layers))
	}
	for i, want := range states {
		if trace.Layers[i].State != want {
			t.Fatalf("layer %d (%s) state %q, want %q", i, trace.Layers[i].Scope.Name, trace.Layers[i].State, want)
		}
	}
	winner, ok := trace.Winner()
	if !ok || winner.Scope.Name != "user" || winner.Value != 1024 {
		t.Fatalf("unexpected winner %+v", winner)
	}
	if trace.Layers[2].SnapshotID != "snap-system" {
		t.Fatalf("expected snapshot id on system layer, got %q", trace.Layers[2].SnapshotID)
	}
}

func TestResolvedTraceUnsetWins(t *testing.T) {
	resolved := traceFixture(t)

	value, trace, err := resolved.Trace("Retries")
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if value != nil {
		t.Fatalf("expected nil value for unset path, got %v", value)
	}
	winner, ok := trace.Winner()
	if !ok || winner.Scope.Name != "project" || winner.State != "unset" {
		t.Fatalf("expected project unset to win, got %+v", winner)
	}
}

func TestResolvedTraceIntoMaps(t *testing.T) {
	resolved := traceFixture(t)

	value, trace, err := resolved.Trace("labels.env")
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if value != "prod" {
		t.Fatalf("expected prod, got %v", value)
	}
	if trace.Layers[0].State != "inherit" || trace.Layers[0].Found {
		t.Fatalf("user layer has no opinion, got %+v", trace.Layers[0])
	}

	_, trace, err = resolved.Trace("labels.missing")
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if trace.Layers[2].State != ProvenanceMissing {
		t.Fatalf("expected missing key state, got %+v", trace.Layers[2])
	}
}

func TestResolvedTraceUnknownPath(t *testing.T) {
	resolved := traceFixture(t)
	if _, _, err := resolved.Trace("nope"); !errors.Is(err, ErrPathNotFound) {
		t.Fatalf("expected ErrPathNotFound, got %v", err)
	}
	if _, _, err := resolved.Trace(""); err == nil {
		t.Fatalf("expected empty path error")
	}
}

func TestTraceJSONRoundTrip(t *testing.T) {
	resolved := traceFixture(t)
	_, trace, err := resolved.Trace("name")
	if err != nil {
		t.Fatalf("trace: %v", err)
	}

	payload, err := trace.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	decoded, err := TraceFromJSON(payload)
	if err != nil {
		t.Fatalf("from json: %v", err)
	}
	if decoded.Path != trace.Path || len(decoded.Layers) != len(trace.Layers) {
		t.Fatalf("decoded trace mismatch: %+v", decoded)
	}
	for i := range trace.Layers {
		if decoded.Layers[i].Scope.Name != trace.Layers[i].Scope.Name ||
			decoded.Layers[i].State != trace.Layers[i].State ||
			!reflect.DeepEqual(decoded.Layers[i].Value, trace.Layers[i].Value) {
			t.Fatalf("layer %d mismatch: %+v vs %+v", i, decoded.Layers[i], trace.Layers[i])
		}
	}
}
