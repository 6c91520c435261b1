package clone

import (
	"reflect"
	"testing"
	"time"
)

type nested struct {
	Tags   []string
	Labels map[string][]int
	Next   *nested
	hidden []string
}

type counted struct {
	calls *int
}

func (c counted) Clone() counted {
	*c.calls++
	return counted{calls: c.calls}
}

func TestOfDeepCopiesExportedState(t *testing.T) {
	hidden := []string{"shared"}
	src := nested{
		Tags:   []string{"a"},
		Labels: map[string][]int{"x": {1, 2}},
		Next:   &nested{Tags: []string{"b"}},
		hidden: hidden,
	}

	out := Of(src)
	if !reflect.DeepEqual(src, out) {
		t.Fatalf("expected equal copy, got %+v", out)
	}

	out.Tags[0] = "changed"
	out.Labels["x"][0] = 9
	out.Next.Tags[0] = "changed"
	if src.Tags[0] != "a" || src.Labels["x"][0] != 1 || src.Next.Tags[0] != "b" {
		t.Fatalf("expected source untouched, got %+v", src)
	}

	out.hidden[0] = "mutated"
	if hidden[0] != "mutated" {
		t.Fatalf("expected unexported state to be carried over as-is")
	}
}

func TestOfPreservesNilsAndOpaqueValues(t *testing.T) {
	var empty nested
	out := Of(empty)
	if out.Tags != nil || out.Labels != nil || out.Next != nil {
		t.Fatalf("expected nil members preserved, got %+v", out)
	}

	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	if got := Of(at); !got.Equal(at) {
		t.Fatalf("expected time preserved, got %v", got)
	}

	var iface any = map[string]any{"k": []any{1}}
	copied := Of(iface).(map[string]any)
	copied["k"].([]any)[0] = 2
	if iface.(map[string]any)["k"].([]any)[0] != 1 {
		t.Fatalf("expected interface payload deep copied")
	}
}

func TestOfUsesCloneMethod(t *testing.T) {
	calls := 0
	Of([]counted{{calls: &calls}, {calls: &calls}})
	if calls != 2 {
		t.Fatalf("expected Clone to run per element, got %d", calls)
	}
}

func TestOfCopiesCyclicReferencesOnce(t *testing.T) {
	loop := &nested{Tags: []string{"head"}}
	loop.Next = loop

	out := Of(loop)
	if out == loop {
		t.Fatalf("expected a fresh pointer")
	}
	if out.Next != out {
		t.Fatalf("expected cycle to point back at the copy, got %p -> %p", out, out.Next)
	}
	out.Tags[0] = "changed"
	if loop.Tags[0] != "head" {
		t.Fatalf("expected source untouched, got %q", loop.Tags[0])
	}

	shared := []string{"x"}
	pair := struct{ A, B []string }{A: shared, B: shared}
	copied := Of(pair)
	copied.A[0] = "y"
	if copied.B[0] != "y" || shared[0] != "x" {
		t.Fatalf("expected shared slice copied once, got %v %v (source %v)", copied.A, copied.B, shared)
	}

	self := map[string]any{}
	self["self"] = self
	again := Of(self)
	if reflect.ValueOf(again["self"]).Pointer() != reflect.ValueOf(again).Pointer() {
		t.Fatalf("expected map cycle preserved in the copy")
	}
}
