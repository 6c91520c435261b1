package inherit

import (
	"testing"
)

func TestFieldZeroValueIsInherit(t *testing.T) {
	var f Field[int]
	if !f.IsInherit() || f.State() != StateInherit {
		t.Fatalf("expected zero Field to inherit, got %s", f)
	}
	if !f.Equal(Inherit[int]()) {
		t.Fatalf("zero Field should equal Inherit()")
	}
	if _, ok := f.Get(); ok {
		t.Fatalf("Inherit must not report a value")
	}
}

func TestFieldMergeTable(t *testing.T) {
	parents := []Field[int]{Inherit[int](), Unset[int](), Set(1)}

	for _, parent := range parents {
		t.Run("parent_"+parent.String(), func(t *testing.T) {
			if got := Set(9).Merge(parent); !got.Equal(Set(9)) {
				t.Fatalf("Set(9).Merge(%s) = %s, want set(9)", parent, got)
			}
			if got := Unset[int]().Merge(parent); !got.Equal(Unset[int]()) {
				t.Fatalf("Unset.Merge(%s) = %s, want unset", parent, got)
			}
			if got := Inherit[int]().Merge(parent); !got.Equal(parent) {
				t.Fatalf("Inherit.Merge(%s) = %s, want %s", parent, got, parent)
			}
		})
	}
}

func TestFieldMergeIsIdempotent(t *testing.T) {
	for _, f := range []Field[string]{Inherit[string](), Unset[string](), Set("x")} {
		if got := f.Merge(f); !got.Equal(f) {
			t.Fatalf("%s.Merge(self) = %s", f, got)
		}
	}
}

func TestFieldMergeDoesNotShareState(t *testing.T) {
	parent := Set([]string{"a", "b"})
	merged := Inherit[[]string]().Merge(parent)

	value, _ := merged.Get()
	value[0] = "mutated"

	original, _ := parent.Get()
	if original[0] != "a" {
		t.Fatalf("merge result must not alias parent payload, got %v", original)
	}
}

type ringNode struct {
	Name string
	Next *ringNode
}

func TestFieldMergeCopiesCyclicPayload(t *testing.T) {
	node := &ringNode{Name: "a"}
	node.Next = node

	merged := Inherit[*ringNode]().Merge(Set(node))
	got, ok := merged.Get()
	if !ok || got == node {
		t.Fatalf("expected a copied payload, got %v", merged)
	}
	if got.Next != got || got.Name != "a" {
		t.Fatalf("expected the cycle to survive the copy, got %+v", got)
	}
}

func TestFieldUnsetIsStickyThroughChains(t *testing.T) {
	root := Set(1)
	mid := Set(2)
	leaf := Unset[int]()

	if got := leaf.Merge(mid).Merge(root); !got.IsUnset() {
		t.Fatalf("expected Unset to survive chaining, got %s", got)
	}
	if got := Inherit[int]().Merge(Inherit[int]()).Merge(root); !got.Equal(root) {
		t.Fatalf("expected Inherit chain to reach root, got %s", got)
	}
}

func TestFieldAccessors(t *testing.T) {
	if got := Set(3).OrElse(5); got != 3 {
		t.Fatalf("Set OrElse = %d", got)
	}
	if got := Unset[int]().OrElse(5); got != 5 {
		t.Fatalf("Unset OrElse = %d", got)
	}
	if got := Set(3).String(); got != "set(3)" {
		t.Fatalf("unexpected String %q", got)
	}
	if got := Unset[int]().String(); got != "unset" {
		t.Fatalf("unexpected String %q", got)
	}
	if Set(1).Equal(Set(2)) || Set(1).Equal(Unset[int]()) || Unset[int]().Equal(Inherit[int]()) {
		t.Fatalf("Equal must compare variant and payload")
	}
	if !Set(map[string]int{"a": 1}).Equal(Set(map[string]int{"a": 1})) {
		t.Fatalf("Equal must compare payloads structurally")
	}
}

func TestParseState(t *testing.T) {
	for _, s := range []State{StateInherit, StateUnset, StateSet} {
		got, err := ParseState(s.String())
		if err != nil || got != s {
			t.Fatalf("ParseState(%q) = %v, %v", s.String(), got, err)
		}
	}
	if _, err := ParseState("maybe"); err == nil {
		t.Fatalf("expected error for unknown state")
	}
}
