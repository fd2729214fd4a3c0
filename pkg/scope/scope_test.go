package scope

import (
	"strings"
	"testing"

	"github.com/treeform/nimmy/pkg/value"
)

func TestDefineAndLookup(t *testing.T) {
	s := New()
	s.Define("x", value.Int{Val: 42}, false)

	got, err := s.Lookup("x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !value.Equal(got, value.Int{Val: 42}) {
		t.Errorf("Lookup(x) = %v, want 42", got)
	}
}

func TestLookupUndefined(t *testing.T) {
	s := New()
	_, err := s.Lookup("missing")
	if err == nil {
		t.Fatal("expected an error for an undefined variable")
	}
	if !strings.Contains(err.Error(), "undefined variable 'missing'") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestChildShadowsParent(t *testing.T) {
	parent := New()
	parent.Define("x", value.Int{Val: 1}, false)

	child := Child(parent)
	child.Define("x", value.Int{Val: 2}, false)

	got, _ := child.Lookup("x")
	if !value.Equal(got, value.Int{Val: 2}) {
		t.Errorf("expected child's shadowing definition, got %v", got)
	}

	parentGot, _ := parent.Lookup("x")
	if !value.Equal(parentGot, value.Int{Val: 1}) {
		t.Error("expected parent's binding to be untouched by the child's shadow")
	}
}

func TestChildFallsThroughToParent(t *testing.T) {
	parent := New()
	parent.Define("y", value.Int{Val: 7}, false)
	child := Child(parent)

	got, err := child.Lookup("y")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !value.Equal(got, value.Int{Val: 7}) {
		t.Errorf("expected lookup to fall through to parent, got %v", got)
	}
}

func TestAssignUpdatesNearestBinding(t *testing.T) {
	parent := New()
	parent.Define("x", value.Int{Val: 1}, false)
	child := Child(parent)

	if err := child.Assign("x", value.Int{Val: 99}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := parent.Lookup("x")
	if !value.Equal(got, value.Int{Val: 99}) {
		t.Errorf("expected assign through child to mutate parent's binding, got %v", got)
	}
}

func TestAssignToConstFails(t *testing.T) {
	s := New()
	s.Define("x", value.Int{Val: 1}, true)

	err := s.Assign("x", value.Int{Val: 2})
	if err == nil {
		t.Fatal("expected an error assigning to a constant")
	}
	if !strings.Contains(err.Error(), "cannot assign to constant 'x'") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestAssignUndefinedFails(t *testing.T) {
	s := New()
	if err := s.Assign("nope", value.Int{Val: 1}); err == nil {
		t.Fatal("expected an error assigning to an undefined variable")
	}
}

func TestIsConst(t *testing.T) {
	s := New()
	s.Define("c", value.Int{Val: 1}, true)
	s.Define("v", value.Int{Val: 1}, false)

	if !s.IsConst("c") {
		t.Error("expected c to be const")
	}
	if s.IsConst("v") {
		t.Error("expected v not to be const")
	}
	if s.IsConst("missing") {
		t.Error("expected an unbound name to report not-const")
	}
}

func TestHas(t *testing.T) {
	parent := New()
	parent.Define("x", value.Int{Val: 1}, false)
	child := Child(parent)

	if !child.Has("x") {
		t.Error("expected Has to find a parent binding")
	}
	if child.Has("nope") {
		t.Error("expected Has to report false for an unbound name")
	}
}

func TestSnapshotInnermostShadowsOutermost(t *testing.T) {
	parent := New()
	parent.Define("x", value.Int{Val: 1}, false)
	parent.Define("y", value.Int{Val: 2}, false)

	child := Child(parent)
	child.Define("x", value.Int{Val: 100}, false)

	snap := child.Snapshot()
	if !value.Equal(snap["x"], value.Int{Val: 100}) {
		t.Errorf("expected snapshot's x to be the child's shadow, got %v", snap["x"])
	}
	if !value.Equal(snap["y"], value.Int{Val: 2}) {
		t.Errorf("expected snapshot to include parent-only bindings, got %v", snap["y"])
	}
}

func TestNames(t *testing.T) {
	s := New()
	s.Define("a", value.Int{Val: 1}, false)
	s.Define("b", value.Int{Val: 2}, false)

	names := s.Names()
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %d", len(names))
	}
}
