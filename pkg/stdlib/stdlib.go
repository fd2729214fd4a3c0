// Package stdlib implements nimmy's built-in functions: len, str, int,
// float, typeof, push, pop, keys, values, hasKey, abs, min, max,
// contains, incl, excl, card, del. Like the lexer and parser, the
// standard library is an external collaborator to the VM core — it is
// simply the set of natives a fresh VM registers by default.
package stdlib

import (
	"fmt"
	"strconv"

	"github.com/treeform/nimmy/pkg/value"
)

// Registerer is satisfied by anything that can install a native
// function under a name in its global scope (pkg/vm.VM implements it).
type Registerer interface {
	AddNative(name string, fn value.NativeFunc)
}

// Register installs every standard library builtin on r. Called once by
// a fresh VM at construction time; embedders may call AddNative
// afterward to shadow or extend the set.
func Register(r Registerer) {
	r.AddNative("len", builtinLen)
	r.AddNative("str", builtinStr)
	r.AddNative("int", builtinInt)
	r.AddNative("float", builtinFloat)
	r.AddNative("typeof", builtinTypeof)
	r.AddNative("push", builtinPush)
	r.AddNative("pop", builtinPop)
	r.AddNative("keys", builtinKeys)
	r.AddNative("values", builtinValues)
	r.AddNative("hasKey", builtinHasKey)
	r.AddNative("abs", builtinAbs)
	r.AddNative("min", builtinMin)
	r.AddNative("max", builtinMax)
	r.AddNative("contains", builtinContains)
	r.AddNative("incl", builtinIncl)
	r.AddNative("excl", builtinExcl)
	r.AddNative("card", builtinCard)
	r.AddNative("del", builtinDel)
}

func argError(name string, want, got int) error {
	return fmt.Errorf("%s expects %d arguments, got %d", name, want, got)
}

func builtinLen(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return nil, argError("len", 1, len(args))
	}
	switch v := args[0].(type) {
	case value.Array:
		return value.Int{Val: int64(len(*v.Val))}, nil
	case value.String:
		return value.Int{Val: int64(len(v.Val))}, nil
	case value.Table:
		return value.Int{Val: int64(len(*v.Val))}, nil
	default:
		return nil, fmt.Errorf("len: cannot measure %s", value.TypeName(args[0]))
	}
}

func builtinStr(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return nil, argError("str", 1, len(args))
	}
	return value.String{Val: args[0].String()}, nil
}

func builtinInt(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return nil, argError("int", 1, len(args))
	}
	switch v := args[0].(type) {
	case value.Int:
		return v, nil
	case value.Float:
		return value.Int{Val: int64(v.Val)}, nil
	case value.String:
		n, err := strconv.ParseInt(v.Val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("int: cannot convert '%s' to int", v.Val)
		}
		return value.Int{Val: n}, nil
	case value.Bool:
		if v.Val {
			return value.Int{Val: 1}, nil
		}
		return value.Int{Val: 0}, nil
	default:
		return nil, fmt.Errorf("int: cannot convert %s to int", value.TypeName(args[0]))
	}
}

func builtinFloat(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return nil, argError("float", 1, len(args))
	}
	switch v := args[0].(type) {
	case value.Float:
		return v, nil
	case value.Int:
		return value.Float{Val: float64(v.Val)}, nil
	case value.String:
		f, err := strconv.ParseFloat(v.Val, 64)
		if err != nil {
			return nil, fmt.Errorf("float: cannot convert '%s' to float", v.Val)
		}
		return value.Float{Val: f}, nil
	default:
		return nil, fmt.Errorf("float: cannot convert %s to float", value.TypeName(args[0]))
	}
}

func builtinTypeof(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return nil, argError("typeof", 1, len(args))
	}
	return value.String{Val: value.TypeName(args[0])}, nil
}

func builtinPush(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return nil, argError("push", 2, len(args))
	}
	arr, ok := args[0].(value.Array)
	if !ok {
		return nil, fmt.Errorf("push: expected array, got %s", value.TypeName(args[0]))
	}
	*arr.Val = append(*arr.Val, args[1])
	return arr, nil
}

func builtinPop(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return nil, argError("pop", 1, len(args))
	}
	arr, ok := args[0].(value.Array)
	if !ok {
		return nil, fmt.Errorf("pop: expected array, got %s", value.TypeName(args[0]))
	}
	n := len(*arr.Val)
	if n == 0 {
		return value.Nil{}, nil
	}
	last := (*arr.Val)[n-1]
	*arr.Val = (*arr.Val)[:n-1]
	return last, nil
}

func builtinKeys(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return nil, argError("keys", 1, len(args))
	}
	tbl, ok := args[0].(value.Table)
	if !ok {
		return nil, fmt.Errorf("keys: expected table, got %s", value.TypeName(args[0]))
	}
	out := make([]value.Value, 0, len(*tbl.Val))
	for k := range *tbl.Val {
		out = append(out, value.String{Val: k})
	}
	return value.NewArray(out), nil
}

func builtinValues(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return nil, argError("values", 1, len(args))
	}
	tbl, ok := args[0].(value.Table)
	if !ok {
		return nil, fmt.Errorf("values: expected table, got %s", value.TypeName(args[0]))
	}
	out := make([]value.Value, 0, len(*tbl.Val))
	for _, v := range *tbl.Val {
		out = append(out, v)
	}
	return value.NewArray(out), nil
}

func builtinHasKey(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return nil, argError("hasKey", 2, len(args))
	}
	tbl, ok := args[0].(value.Table)
	if !ok {
		return nil, fmt.Errorf("hasKey: expected table, got %s", value.TypeName(args[0]))
	}
	key, ok := args[1].(value.String)
	if !ok {
		return nil, fmt.Errorf("hasKey: key must be a string")
	}
	_, found := (*tbl.Val)[key.Val]
	return value.Bool{Val: found}, nil
}

func builtinAbs(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return nil, argError("abs", 1, len(args))
	}
	switch v := args[0].(type) {
	case value.Int:
		if v.Val < 0 {
			return value.Int{Val: -v.Val}, nil
		}
		return v, nil
	case value.Float:
		if v.Val < 0 {
			return value.Float{Val: -v.Val}, nil
		}
		return v, nil
	default:
		return nil, fmt.Errorf("abs: expected number, got %s", value.TypeName(args[0]))
	}
}

func builtinMin(args []value.Value) (value.Value, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("min expects at least 1 argument, got 0")
	}
	best := args[0]
	for _, a := range args[1:] {
		less, err := numericLess(a, best)
		if err != nil {
			return nil, err
		}
		if less {
			best = a
		}
	}
	return best, nil
}

func builtinMax(args []value.Value) (value.Value, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("max expects at least 1 argument, got 0")
	}
	best := args[0]
	for _, a := range args[1:] {
		less, err := numericLess(best, a)
		if err != nil {
			return nil, err
		}
		if less {
			best = a
		}
	}
	return best, nil
}

func numericLess(a, b value.Value) (bool, error) {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if !aok || !bok {
		return false, fmt.Errorf("min/max: expected numbers, got %s and %s", value.TypeName(a), value.TypeName(b))
	}
	return af < bf, nil
}

func asFloat(v value.Value) (float64, bool) {
	switch n := v.(type) {
	case value.Int:
		return float64(n.Val), true
	case value.Float:
		return n.Val, true
	default:
		return 0, false
	}
}

func builtinContains(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return nil, argError("contains", 2, len(args))
	}
	switch c := args[0].(type) {
	case value.Array:
		for _, item := range *c.Val {
			if value.Equal(item, args[1]) {
				return value.Bool{Val: true}, nil
			}
		}
		return value.Bool{Val: false}, nil
	case value.Set:
		for _, item := range *c.Val {
			if value.Equal(item, args[1]) {
				return value.Bool{Val: true}, nil
			}
		}
		return value.Bool{Val: false}, nil
	case value.String:
		sub, ok := args[1].(value.String)
		if !ok {
			return nil, fmt.Errorf("contains: substring argument must be a string")
		}
		return value.Bool{Val: stringsContains(c.Val, sub.Val)}, nil
	default:
		return nil, fmt.Errorf("contains: cannot search in %s", value.TypeName(args[0]))
	}
}

func stringsContains(s, substr string) bool {
	return len(substr) == 0 || indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	n, m := len(s), len(substr)
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == substr {
			return i
		}
	}
	return -1
}

func builtinIncl(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return nil, argError("incl", 2, len(args))
	}
	s, ok := args[0].(value.Set)
	if !ok {
		return nil, fmt.Errorf("incl: expected set, got %s", value.TypeName(args[0]))
	}
	for _, item := range *s.Val {
		if value.Equal(item, args[1]) {
			return s, nil
		}
	}
	*s.Val = append(*s.Val, args[1])
	return s, nil
}

func builtinExcl(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return nil, argError("excl", 2, len(args))
	}
	s, ok := args[0].(value.Set)
	if !ok {
		return nil, fmt.Errorf("excl: expected set, got %s", value.TypeName(args[0]))
	}
	out := (*s.Val)[:0]
	for _, item := range *s.Val {
		if !value.Equal(item, args[1]) {
			out = append(out, item)
		}
	}
	*s.Val = out
	return s, nil
}

func builtinCard(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return nil, argError("card", 1, len(args))
	}
	s, ok := args[0].(value.Set)
	if !ok {
		return nil, fmt.Errorf("card: expected set, got %s", value.TypeName(args[0]))
	}
	return value.Int{Val: int64(len(*s.Val))}, nil
}

func builtinDel(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return nil, argError("del", 2, len(args))
	}
	tbl, ok := args[0].(value.Table)
	if !ok {
		return nil, fmt.Errorf("del: expected table, got %s", value.TypeName(args[0]))
	}
	key, ok := args[1].(value.String)
	if !ok {
		return nil, fmt.Errorf("del: key must be a string")
	}
	delete(*tbl.Val, key.Val)
	return value.Nil{}, nil
}
