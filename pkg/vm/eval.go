package vm

import (
	"strings"

	"github.com/treeform/nimmy/pkg/ast"
	"github.com/treeform/nimmy/pkg/scope"
	"github.com/treeform/nimmy/pkg/value"
)

// Eval evaluates expr against sc eagerly (recursing through the whole
// subtree in one call), producing the exact RuntimeError detail strings
// spelled out for the language. Used both inside a single Step and, in
// pkg/interactive, against a paused scope without touching the frame
// stack.
func (v *VM) Eval(sc *scope.Scope, expr ast.Expr) (value.Value, error) {
	switch e := expr.(type) {
	case *ast.IntLit:
		return value.Int{Val: e.Value}, nil
	case *ast.FloatLit:
		return value.Float{Val: e.Value}, nil
	case *ast.StringLit:
		return value.String{Val: e.Value}, nil
	case *ast.BoolLit:
		return value.Bool{Val: e.Value}, nil
	case *ast.NilLit:
		return value.Nil{}, nil
	case *ast.Identifier:
		val, err := sc.Lookup(e.Name)
		if err != nil {
			return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "Undefined variable '%s'", e.Name)
		}
		return val, nil
	case *ast.UnaryExpr:
		return v.evalUnary(sc, e)
	case *ast.BinaryExpr:
		return v.evalBinary(sc, e)
	case *ast.RangeLit:
		return v.evalRange(sc, e)
	case *ast.ArrayLit:
		return v.evalArrayLit(sc, e)
	case *ast.SetLit:
		return v.evalSetLit(sc, e)
	case *ast.TableLit:
		return v.evalTableLit(sc, e)
	case *ast.IndexExpr:
		return v.evalIndex(sc, e)
	case *ast.DotExpr:
		return v.evalDot(sc, e)
	case *ast.CallExpr:
		return v.evalCall(sc, e)
	default:
		line, col := ast.LineCol(expr)
		return nil, v.runtimeErr(line, col, "unsupported expression")
	}
}

func (v *VM) evalUnary(sc *scope.Scope, e *ast.UnaryExpr) (value.Value, error) {
	operand, err := v.Eval(sc, e.Operand)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "not":
		return value.Bool{Val: !value.Truthy(operand)}, nil
	case "-":
		switch n := operand.(type) {
		case value.Int:
			return value.Int{Val: -n.Val}, nil
		case value.Float:
			return value.Float{Val: -n.Val}, nil
		default:
			return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "cannot negate %s", value.TypeName(operand))
		}
	case "$":
		return value.String{Val: operand.String()}, nil
	default:
		return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "unknown unary operator '%s'", e.Op)
	}
}

// cardinality implements the `.len` pseudo-property: length of an array,
// string or table, or a set's cardinality.
func (v *VM) cardinality(e *ast.UnaryExpr, operand value.Value) (value.Value, error) {
	switch c := operand.(type) {
	case value.Array:
		return value.Int{Val: int64(len(*c.Val))}, nil
	case value.Set:
		return value.Int{Val: int64(len(*c.Val))}, nil
	case value.Table:
		return value.Int{Val: int64(len(*c.Val))}, nil
	case value.String:
		return value.Int{Val: int64(len(c.Val))}, nil
	default:
		return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "cannot measure %s", value.TypeName(operand))
	}
}

func (v *VM) evalBinary(sc *scope.Scope, e *ast.BinaryExpr) (value.Value, error) {
	if e.Op == "and" {
		left, err := v.Eval(sc, e.Left)
		if err != nil {
			return nil, err
		}
		if !value.Truthy(left) {
			return left, nil
		}
		return v.Eval(sc, e.Right)
	}
	if e.Op == "or" {
		left, err := v.Eval(sc, e.Left)
		if err != nil {
			return nil, err
		}
		if value.Truthy(left) {
			return left, nil
		}
		return v.Eval(sc, e.Right)
	}

	left, err := v.Eval(sc, e.Left)
	if err != nil {
		return nil, err
	}
	right, err := v.Eval(sc, e.Right)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case "==":
		return value.Bool{Val: value.Equal(left, right)}, nil
	case "!=":
		return value.Bool{Val: !value.Equal(left, right)}, nil
	case "in":
		return v.evalIn(e, left, right)
	case "<", "<=", ">", ">=":
		return v.evalCompare(e, left, right)
	case "&":
		return value.String{Val: left.String() + right.String()}, nil
	case "+", "-", "*", "/", "%", "div", "mod":
		return v.evalArith(e, left, right)
	default:
		return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "unknown operator '%s'", e.Op)
	}
}

func (v *VM) evalIn(e *ast.BinaryExpr, left, right value.Value) (value.Value, error) {
	switch c := right.(type) {
	case value.Array:
		for _, item := range *c.Val {
			if value.Equal(item, left) {
				return value.Bool{Val: true}, nil
			}
		}
		return value.Bool{Val: false}, nil
	case value.Set:
		for _, item := range *c.Val {
			if value.Equal(item, left) {
				return value.Bool{Val: true}, nil
			}
		}
		return value.Bool{Val: false}, nil
	case value.Table:
		key, ok := left.(value.String)
		if !ok {
			return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "Table key must be a string")
		}
		_, found := (*c.Val)[key.Val]
		return value.Bool{Val: found}, nil
	case value.Range:
		n, ok := left.(value.Int)
		if !ok {
			return value.Bool{Val: false}, nil
		}
		end := c.End
		if c.Inclusive {
			end++
		}
		return value.Bool{Val: n.Val >= c.Start && n.Val < end}, nil
	default:
		return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "cannot test membership in %s", value.TypeName(right))
	}
}

func (v *VM) evalCompare(e *ast.BinaryExpr, left, right value.Value) (value.Value, error) {
	lf, lok := numericOf(left)
	rf, rok := numericOf(right)
	if lok && rok {
		switch e.Op {
		case "<":
			return value.Bool{Val: lf < rf}, nil
		case "<=":
			return value.Bool{Val: lf <= rf}, nil
		case ">":
			return value.Bool{Val: lf > rf}, nil
		case ">=":
			return value.Bool{Val: lf >= rf}, nil
		}
	}
	ls, lok := left.(value.String)
	rs, rok := right.(value.String)
	if lok && rok {
		switch e.Op {
		case "<":
			return value.Bool{Val: ls.Val < rs.Val}, nil
		case "<=":
			return value.Bool{Val: ls.Val <= rs.Val}, nil
		case ">":
			return value.Bool{Val: ls.Val > rs.Val}, nil
		case ">=":
			return value.Bool{Val: ls.Val >= rs.Val}, nil
		}
	}
	return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "cannot compare %s and %s", value.TypeName(left), value.TypeName(right))
}

func numericOf(v value.Value) (float64, bool) {
	switch n := v.(type) {
	case value.Int:
		return float64(n.Val), true
	case value.Float:
		return n.Val, true
	default:
		return 0, false
	}
}

func (v *VM) evalArith(e *ast.BinaryExpr, left, right value.Value) (value.Value, error) {
	if e.Op == "+" {
		if ls, ok := left.(value.Set); ok {
			if rs, ok := right.(value.Set); ok {
				return setUnion(ls, rs), nil
			}
		}
	}
	if e.Op == "-" {
		if ls, ok := left.(value.Set); ok {
			if rs, ok := right.(value.Set); ok {
				return setDifference(ls, rs), nil
			}
		}
	}
	if e.Op == "*" {
		if ls, ok := left.(value.Set); ok {
			if rs, ok := right.(value.Set); ok {
				return setIntersection(ls, rs), nil
			}
		}
	}

	li, liok := left.(value.Int)
	ri, riok := right.(value.Int)
	if liok && riok && e.Op != "/" {
		switch e.Op {
		case "+":
			return value.Int{Val: li.Val + ri.Val}, nil
		case "-":
			return value.Int{Val: li.Val - ri.Val}, nil
		case "*":
			return value.Int{Val: li.Val * ri.Val}, nil
		case "%":
			if ri.Val == 0 {
				return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "Modulo by zero")
			}
			return value.Int{Val: li.Val % ri.Val}, nil
		case "div":
			if ri.Val == 0 {
				return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "Division by zero")
			}
			return value.Int{Val: li.Val / ri.Val}, nil
		case "mod":
			if ri.Val == 0 {
				return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "Modulo by zero")
			}
			return value.Int{Val: li.Val % ri.Val}, nil
		}
	}

	lf, lok := numericOf(left)
	rf, rok := numericOf(right)
	if lok && rok {
		switch e.Op {
		case "+":
			return value.Float{Val: lf + rf}, nil
		case "-":
			return value.Float{Val: lf - rf}, nil
		case "*":
			return value.Float{Val: lf * rf}, nil
		case "/":
			if rf == 0 {
				return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "Division by zero")
			}
			return value.Float{Val: lf / rf}, nil
		case "%", "mod":
			if rf == 0 {
				return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "Modulo by zero")
			}
			return value.Float{Val: floatMod(lf, rf)}, nil
		case "div":
			if rf == 0 {
				return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "Division by zero")
			}
			return value.Int{Val: int64(lf / rf)}, nil
		}
	}

	if e.Op == "+" {
		if ls, ok := left.(value.String); ok {
			if rs, ok := right.(value.String); ok {
				return value.String{Val: ls.Val + rs.Val}, nil
			}
		}
	}

	return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "cannot apply '%s' to %s and %s", e.Op, value.TypeName(left), value.TypeName(right))
}

func floatMod(a, b float64) float64 {
	m := a - b*float64(int64(a/b))
	return m
}

func setUnion(a, b value.Set) value.Value {
	out := append([]value.Value(nil), (*a.Val)...)
	out = append(out, (*b.Val)...)
	return value.NewSet(out)
}

func setDifference(a, b value.Set) value.Value {
	var out []value.Value
	for _, item := range *a.Val {
		found := false
		for _, o := range *b.Val {
			if value.Equal(item, o) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, item)
		}
	}
	return value.NewSet(out)
}

func setIntersection(a, b value.Set) value.Value {
	var out []value.Value
	for _, item := range *a.Val {
		for _, o := range *b.Val {
			if value.Equal(item, o) {
				out = append(out, item)
				break
			}
		}
	}
	return value.NewSet(out)
}

func (v *VM) evalRange(sc *scope.Scope, e *ast.RangeLit) (value.Value, error) {
	start, err := v.Eval(sc, e.Start)
	if err != nil {
		return nil, err
	}
	end, err := v.Eval(sc, e.End)
	if err != nil {
		return nil, err
	}
	si, ok := start.(value.Int)
	if !ok {
		return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "range bounds must be int, got %s", value.TypeName(start))
	}
	ei, ok := end.(value.Int)
	if !ok {
		return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "range bounds must be int, got %s", value.TypeName(end))
	}
	return value.Range{Start: si.Val, End: ei.Val, Inclusive: e.Inclusive}, nil
}

func (v *VM) evalArrayLit(sc *scope.Scope, e *ast.ArrayLit) (value.Value, error) {
	items := make([]value.Value, len(e.Elements))
	for i, el := range e.Elements {
		val, err := v.Eval(sc, el)
		if err != nil {
			return nil, err
		}
		items[i] = val
	}
	return value.NewArray(items), nil
}

func (v *VM) evalSetLit(sc *scope.Scope, e *ast.SetLit) (value.Value, error) {
	items := make([]value.Value, len(e.Elements))
	for i, el := range e.Elements {
		val, err := v.Eval(sc, el)
		if err != nil {
			return nil, err
		}
		items[i] = val
	}
	return value.NewSet(items), nil
}

func (v *VM) evalTableLit(sc *scope.Scope, e *ast.TableLit) (value.Value, error) {
	m := make(map[string]value.Value, len(e.Entries))
	for _, entry := range e.Entries {
		kv, err := v.Eval(sc, entry.Key)
		if err != nil {
			return nil, err
		}
		ks, ok := kv.(value.String)
		if !ok {
			line, col := ast.LineCol(entry.Key)
			return nil, v.runtimeErr(line, col, "Table key must be a string")
		}
		val, err := v.Eval(sc, entry.Value)
		if err != nil {
			return nil, err
		}
		m[ks.Val] = val
	}
	return value.NewTable(m), nil
}

func (v *VM) evalIndex(sc *scope.Scope, e *ast.IndexExpr) (value.Value, error) {
	container, err := v.Eval(sc, e.Container)
	if err != nil {
		return nil, err
	}
	idx, err := v.Eval(sc, e.Index)
	if err != nil {
		return nil, err
	}
	switch c := container.(type) {
	case value.Array:
		n, ok := idx.(value.Int)
		if !ok {
			return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "array index must be an int, got %s", value.TypeName(idx))
		}
		i := n.Val
		if i < 0 || i >= int64(len(*c.Val)) {
			return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "Array index %d out of bounds", i)
		}
		return (*c.Val)[i], nil
	case value.String:
		n, ok := idx.(value.Int)
		if !ok {
			return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "string index must be an int, got %s", value.TypeName(idx))
		}
		i := n.Val
		if i < 0 || i >= int64(len(c.Val)) {
			return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "Array index %d out of bounds", i)
		}
		return value.String{Val: string(c.Val[i])}, nil
	case value.Table:
		ks, ok := idx.(value.String)
		if !ok {
			return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "Table key must be a string")
		}
		val, ok := (*c.Val)[ks.Val]
		if !ok {
			return value.Nil{}, nil
		}
		return val, nil
	default:
		return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "Cannot index %s", value.TypeName(container))
	}
}

// evalDot resolves `left.field` per the dot-expression resolution
// order: object field, then a function of that name in scope, called
// with left as its sole argument (UFCS), then a pseudo-property, then
// error.
func (v *VM) evalDot(sc *scope.Scope, e *ast.DotExpr) (value.Value, error) {
	left, err := v.Eval(sc, e.Left)
	if err != nil {
		return nil, err
	}
	if obj, ok := left.(value.Object); ok {
		if fv, ok := (*obj.Fields)[e.Field]; ok {
			return fv, nil
		}
	}
	if fn, err := sc.Lookup(e.Field); err == nil {
		switch f := fn.(type) {
		case value.Native:
			res, err := f.Obj.Fn([]value.Value{left})
			if err != nil {
				return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "%s", err.Error())
			}
			return res, nil
		case value.Function:
			return v.callFunctionEager(&ast.CallExpr{Pos: e.Pos, Callee: e}, f, []value.Value{left})
		}
	}
	switch e.Field {
	case "len":
		return v.cardinality(&ast.UnaryExpr{Pos: e.Pos}, left)
	case "card":
		if s, ok := left.(value.Set); ok {
			return value.Int{Val: int64(len(*s.Val))}, nil
		}
	}
	return nil, v.runtimeErr(e.Pos.Line, e.Pos.Column, "Cannot index %s", value.TypeName(left))
}

// resolveCallee resolves a CallExpr's callee to a callable value and, if
// the call used UFCS (`x.f(...)`), the receiver value that must be
// prepended to the evaluated argument list.
func (v *VM) resolveCallee(sc *scope.Scope, call *ast.CallExpr) (value.Value, value.Value, error) {
	switch callee := call.Callee.(type) {
	case *ast.Identifier:
		fn, err := sc.Lookup(callee.Name)
		if err != nil {
			return nil, nil, v.runtimeErr(callee.Pos.Line, callee.Pos.Column, "Undefined variable '%s'", callee.Name)
		}
		return fn, nil, nil
	case *ast.DotExpr:
		left, err := v.Eval(sc, callee.Left)
		if err != nil {
			return nil, nil, err
		}
		if obj, ok := left.(value.Object); ok {
			if fv, ok := (*obj.Fields)[callee.Field]; ok {
				if isCallable(fv) {
					return fv, nil, nil
				}
			}
		}
		fn, err := sc.Lookup(callee.Field)
		if err == nil {
			return fn, left, nil
		}
		return nil, nil, v.runtimeErr(callee.Pos.Line, callee.Pos.Column, "Undefined variable '%s'", callee.Field)
	default:
		fn, err := v.Eval(sc, call.Callee)
		if err != nil {
			return nil, nil, err
		}
		return fn, nil, nil
	}
}

func isCallable(v value.Value) bool {
	switch v.(type) {
	case value.Function, value.Native, value.TypeDesc:
		return true
	default:
		return false
	}
}

// evalCall evaluates a call expression eagerly: used for calls embedded
// inside a larger expression (e.g. `f(g(x))`'s inner g), where the
// stepper cannot suspend mid-expression. Only top-level user-function
// calls in statement position enter a frame (see asUserCall); nested
// calls, and all native/type-descriptor calls, run to completion here.
func (v *VM) evalCall(sc *scope.Scope, call *ast.CallExpr) (value.Value, error) {
	fn, receiver, err := v.resolveCallee(sc, call)
	if err != nil {
		return nil, err
	}
	var args []value.Value
	if receiver != nil {
		args = append(args, receiver)
	}
	for _, a := range call.Args {
		av, err := v.Eval(sc, a)
		if err != nil {
			return nil, err
		}
		args = append(args, av)
	}

	switch f := fn.(type) {
	case value.Native:
		res, err := f.Obj.Fn(args)
		if err != nil {
			return nil, v.runtimeErr(call.Pos.Line, call.Pos.Column, "%s", err.Error())
		}
		return res, nil
	case value.TypeDesc:
		return v.constructObject(call, f, args)
	case value.Function:
		return v.callFunctionEager(call, f, args)
	default:
		return nil, v.runtimeErr(call.Pos.Line, call.Pos.Column, "Cannot call %s", value.TypeName(fn))
	}
}

func (v *VM) constructObject(call *ast.CallExpr, td value.TypeDesc, args []value.Value) (value.Value, error) {
	if len(args) != len(td.Obj.Fields) {
		return nil, v.runtimeErr(call.Pos.Line, call.Pos.Column, "Expected %d arguments, got %d", len(td.Obj.Fields), len(args))
	}
	fields := make(map[string]value.Value, len(args))
	for i, name := range td.Obj.Fields {
		fields[name] = args[i]
	}
	return value.NewObject(td.Obj.Name, fields), nil
}

// callFunctionEager fully evaluates a user-defined function call within
// the current step, used for calls nested inside a larger expression
// rather than in statement position. It runs its own private frame
// stack on the shared VM so debug stepping is unaffected, since the
// caller's frame position does not advance until this returns.
func (v *VM) callFunctionEager(call *ast.CallExpr, fn value.Function, args []value.Value) (value.Value, error) {
	obj := fn.Obj
	if len(args) != len(obj.Params) {
		return nil, v.runtimeErr(call.Pos.Line, call.Pos.Column, "Expected %d arguments, got %d", len(obj.Params), len(args))
	}
	closureScope, _ := obj.Closure.(*scope.Scope)
	activation := scope.Child(closureScope)
	for i, p := range obj.Params {
		activation.Define(p, args[i], false)
	}
	body, _ := obj.Body.(*ast.Block)

	savedFrames, savedReturn, savedControl, savedCurrent := v.frames, v.returnValue, v.control, v.current
	// retireFunction clears returnValue, so the return value is delivered
	// through a binding sink into a private scope and read back from there.
	resultScope := scope.New()
	v.frames = []*Frame{{Kind: FrameFunction, Scope: activation, Stmts: body.Statements, FuncName: obj.Name, CallerScope: savedCurrent, Sink: &ReturnSink{Kind: SinkBinding, Name: "result", Caller: resultScope}}}
	v.returnValue = nil
	v.control = ControlNone

	var result value.Value = value.Nil{}
	var stepErr error
	for len(v.frames) > 0 {
		if stepErr = v.stepInner(); stepErr != nil {
			break
		}
	}
	if stepErr == nil {
		if rv, err := resultScope.Lookup("result"); err == nil {
			result = rv
		}
	}

	v.frames, v.control = savedFrames, savedControl
	v.returnValue = savedReturn
	v.current = savedCurrent
	return result, stepErr
}

// stepInner executes one statement of the innermost frame without the
// metering/logging side effects of the public Step, for use inside
// callFunctionEager's private sub-evaluation.
func (v *VM) stepInner() error {
	f := v.top()
	if f == nil {
		return nil
	}
	if f.Index >= len(f.Stmts) {
		return v.advance()
	}
	stmt := f.Stmts[f.Index]
	return v.execStatement(f, stmt)
}

// AssignInScope writes val through target (an identifier, index
// expression, or dot expression) against sc directly. Exported for
// pkg/interactive, which evaluates fragments against a paused scope
// without entering the frame stepper.
func (v *VM) AssignInScope(sc *scope.Scope, target ast.Expr, val value.Value) error {
	return v.applyAssign(sc, target, val)
}

// applyAssign writes val through target, the left-hand side of an
// assignment: an identifier, an index expression, or a dot expression.
func (v *VM) applyAssign(sc *scope.Scope, target ast.Expr, val value.Value) error {
	switch t := target.(type) {
	case *ast.Identifier:
		if err := sc.Assign(t.Name, val); err != nil {
			if strings.Contains(err.Error(), "constant") {
				return v.runtimeErr(t.Pos.Line, t.Pos.Column, "Cannot assign to constant '%s'", t.Name)
			}
			return v.runtimeErr(t.Pos.Line, t.Pos.Column, "Undefined variable '%s'", t.Name)
		}
		return nil
	case *ast.IndexExpr:
		return v.assignIndex(sc, t, val)
	case *ast.DotExpr:
		return v.assignDot(sc, t, val)
	default:
		line, col := ast.LineCol(target)
		return v.runtimeErr(line, col, "invalid assignment target")
	}
}

func (v *VM) assignIndex(sc *scope.Scope, t *ast.IndexExpr, val value.Value) error {
	container, err := v.Eval(sc, t.Container)
	if err != nil {
		return err
	}
	idx, err := v.Eval(sc, t.Index)
	if err != nil {
		return err
	}
	switch c := container.(type) {
	case value.Array:
		n, ok := idx.(value.Int)
		if !ok {
			return v.runtimeErr(t.Pos.Line, t.Pos.Column, "array index must be an int, got %s", value.TypeName(idx))
		}
		if n.Val < 0 || n.Val >= int64(len(*c.Val)) {
			return v.runtimeErr(t.Pos.Line, t.Pos.Column, "Array index %d out of bounds", n.Val)
		}
		(*c.Val)[n.Val] = val
		return nil
	case value.Table:
		ks, ok := idx.(value.String)
		if !ok {
			return v.runtimeErr(t.Pos.Line, t.Pos.Column, "Table key must be a string")
		}
		(*c.Val)[ks.Val] = val
		return nil
	default:
		return v.runtimeErr(t.Pos.Line, t.Pos.Column, "Cannot index %s", value.TypeName(container))
	}
}

func (v *VM) assignDot(sc *scope.Scope, t *ast.DotExpr, val value.Value) error {
	left, err := v.Eval(sc, t.Left)
	if err != nil {
		return err
	}
	obj, ok := left.(value.Object)
	if !ok {
		return v.runtimeErr(t.Pos.Line, t.Pos.Column, "Cannot index %s", value.TypeName(left))
	}
	(*obj.Fields)[t.Field] = val
	return nil
}
