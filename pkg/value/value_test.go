package value

import "testing"

func TestKindStrings(t *testing.T) {
	cases := map[Kind]string{
		KindNil:      "nil",
		KindBool:     "bool",
		KindInt:      "int",
		KindFloat:    "float",
		KindString:   "string",
		KindArray:    "array",
		KindSet:      "set",
		KindTable:    "table",
		KindObject:   "object",
		KindFunction: "function",
		KindNative:   "native",
		KindType:     "type",
		KindRange:    "range",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Nil{}, false},
		{Bool{Val: false}, false},
		{Bool{Val: true}, true},
		{Int{Val: 0}, true},
		{Float{Val: 0}, true},
		{String{Val: ""}, true},
		{NewArray(nil), true},
	}
	for _, c := range cases {
		if got := Truthy(c.v); got != c.want {
			t.Errorf("Truthy(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestEqualScalars(t *testing.T) {
	if !Equal(Int{Val: 3}, Int{Val: 3}) {
		t.Error("expected 3 == 3")
	}
	if Equal(Int{Val: 3}, Int{Val: 4}) {
		t.Error("expected 3 != 4")
	}
	if !Equal(Int{Val: 3}, Float{Val: 3}) {
		t.Error("expected int and float to cross-compare equal at the same magnitude")
	}
	if Equal(Int{Val: 3}, Float{Val: 3.5}) {
		t.Error("expected int and float to compare unequal at different magnitudes")
	}
}

func TestEqualArray(t *testing.T) {
	a := NewArray([]Value{Int{Val: 1}, String{Val: "x"}})
	b := NewArray([]Value{Int{Val: 1}, String{Val: "x"}})
	c := NewArray([]Value{Int{Val: 1}, String{Val: "y"}})
	if !Equal(a, b) {
		t.Error("expected equal arrays to compare equal")
	}
	if Equal(a, c) {
		t.Error("expected arrays differing in an element to compare unequal")
	}
}

func TestSetDeduplicates(t *testing.T) {
	s := NewSet([]Value{Int{Val: 1}, Int{Val: 2}, Int{Val: 1}})
	if len(*s.Val) != 2 {
		t.Errorf("expected duplicate 1 to collapse, got %d elements", len(*s.Val))
	}
}

func TestSetEqualIgnoresOrder(t *testing.T) {
	a := NewSet([]Value{Int{Val: 1}, Int{Val: 2}})
	b := NewSet([]Value{Int{Val: 2}, Int{Val: 1}})
	if !Equal(a, b) {
		t.Error("expected sets with the same members in different order to compare equal")
	}
}

func TestTableEqual(t *testing.T) {
	a := NewTable(map[string]Value{"x": Int{Val: 1}})
	b := NewTable(map[string]Value{"x": Int{Val: 1}})
	c := NewTable(map[string]Value{"x": Int{Val: 2}})
	if !Equal(a, b) {
		t.Error("expected equal tables to compare equal")
	}
	if Equal(a, c) {
		t.Error("expected tables differing in a value to compare unequal")
	}
}

func TestObjectStringIncludesTypeName(t *testing.T) {
	obj := NewObject("Point", map[string]Value{"x": Int{Val: 1}, "y": Int{Val: 2}})
	got := obj.String()
	want := "Point{x: 1, y: 2}"
	if got != want {
		t.Errorf("Object.String() = %q, want %q", got, want)
	}
}

func TestRangeLen(t *testing.T) {
	cases := []struct {
		r    Range
		want int64
	}{
		{Range{Start: 0, End: 5, Inclusive: false}, 5},
		{Range{Start: 0, End: 5, Inclusive: true}, 6},
		{Range{Start: 5, End: 5, Inclusive: false}, 0},
		{Range{Start: 5, End: 0, Inclusive: true}, 0},
	}
	for _, c := range cases {
		if got := c.r.Len(); got != c.want {
			t.Errorf("%v.Len() = %d, want %d", c.r, got, c.want)
		}
	}
}

func TestArrayIsReferenceSemantic(t *testing.T) {
	a := NewArray([]Value{Int{Val: 1}})
	b := a
	*b.Val = append(*b.Val, Int{Val: 2})
	if len(*a.Val) != 2 {
		t.Error("expected Array's backing slice to be shared by value, mutation visible through both handles")
	}
}

func TestTypeName(t *testing.T) {
	if TypeName(Int{Val: 1}) != "int" {
		t.Error("expected typeof(int) to report the kind name")
	}
	obj := NewObject("Widget", nil)
	if TypeName(obj) != "Widget" {
		t.Error("expected typeof(object) to report the object's type name, not \"object\"")
	}
}

func TestStringQuotedWhenNested(t *testing.T) {
	arr := NewArray([]Value{String{Val: "hi"}})
	got := arr.String()
	want := `["hi"]`
	if got != want {
		t.Errorf("Array.String() = %q, want %q", got, want)
	}
}
