package vm

import (
	"fmt"

	"github.com/treeform/nimmy/pkg/ast"
	nimmyerrors "github.com/treeform/nimmy/pkg/errors"
	"github.com/treeform/nimmy/pkg/scope"
	"github.com/treeform/nimmy/pkg/value"
)

// FrameKind distinguishes the four execution-frame variants.
type FrameKind int

const (
	FrameBlock FrameKind = iota
	FrameFor
	FrameWhile
	FrameFunction
)

// SinkKind identifies what a function frame's return value is delivered to.
type SinkKind int

const (
	SinkNone SinkKind = iota
	SinkBinding
	SinkAssign
)

// ReturnSink describes where a function frame's return value goes when
// the frame retires.
type ReturnSink struct {
	Kind    SinkKind
	Name    string // SinkBinding
	Const   bool   // SinkBinding
	Target  ast.Expr // SinkAssign
	Caller  *scope.Scope // scope the sink is applied in
}

// Frame is one entry on the VM's explicit execution-frame stack: a
// block, a for-loop iteration, a while-loop iteration, or a function
// activation. All variants are folded into one struct, tagged by Kind,
// since a step only ever inspects the fields for its own kind.
type Frame struct {
	Kind  FrameKind
	Scope *scope.Scope
	Stmts []ast.Stmt
	Index int

	// FrameFor
	LoopVar    string
	Iteration  []value.Value
	IterIndex  int

	// FrameWhile
	Cond ast.Expr

	// FrameFunction
	FuncName    string
	CallerScope *scope.Scope
	Sink        *ReturnSink
}

func (v *VM) top() *Frame {
	if len(v.frames) == 0 {
		return nil
	}
	return v.frames[len(v.frames)-1]
}

func (v *VM) pop() {
	v.frames = v.frames[:len(v.frames)-1]
}

func (v *VM) push(f *Frame) {
	v.frames = append(v.frames, f)
}

func (v *VM) runtimeErr(line, col int, format string, args ...interface{}) error {
	return &nimmyerrors.RuntimeError{
		Line: line, Column: col,
		Message:   fmt.Sprintf(format, args...),
		CallStack: v.funcNameStack(),
	}
}

func (v *VM) funcNameStack() []string {
	var names []string
	for _, f := range v.frames {
		if f.Kind == FrameFunction {
			names = append(names, f.FuncName)
		}
	}
	return names
}

// Step executes exactly one source statement in the innermost frame
// (the statement-granularity primitive every debug control is built
// from). If the VM is finished it is a no-op.
func (v *VM) Step() error {
	if v.finished || len(v.frames) == 0 {
		v.finished = true
		return nil
	}
	if v.meter != nil {
		v.meter.IncStep()
		v.meter.SetCallDepth(v.CallDepth())
	}
	v.stepCount++
	if v.maxSteps > 0 && v.stepCount > v.maxSteps {
		return v.runtimeErr(v.currentLine, v.currentCol, "execution exceeded maximum step limit (%d steps)", v.maxSteps)
	}

	f := v.top()
	if f.Index >= len(f.Stmts) {
		return v.advance()
	}

	stmt := f.Stmts[f.Index]
	v.current = f.Scope
	line, col := ast.LineCol(stmt)
	v.log("step", map[string]interface{}{"line": line, "column": col, "session_id": v.SessionID})

	if err := v.execStatement(f, stmt); err != nil {
		return err
	}

	v.refreshCurrentLine()
	return nil
}

// refreshCurrentLine sets currentLine/currentCol from the innermost
// frame's next statement, running advance if the frame is exhausted, or
// marks the VM finished if the stack has emptied.
func (v *VM) refreshCurrentLine() {
	for {
		if len(v.frames) == 0 {
			v.finished = true
			return
		}
		f := v.top()
		if f.Index < len(f.Stmts) {
			v.currentLine, v.currentCol = ast.LineCol(f.Stmts[f.Index])
			return
		}
		if err := v.advance(); err != nil {
			// advance errors are not expected in refreshCurrentLine's
			// retirement-only paths (no user code runs here except a
			// while/for condition re-check, which execStatement already
			// validated); surfacing would require refreshCurrentLine to
			// return an error too. Treat it as terminating.
			v.finished = true
			return
		}
		if v.finished {
			return
		}
	}
}

// execStatement dispatches a single statement per §4.2 and advances the
// frame's statement index (except where the statement itself manages
// frame transitions, e.g. entering a call).
func (v *VM) execStatement(f *Frame, stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.LetStmt:
		return v.execBindingStmt(f, s.Value, s.Name, true)
	case *ast.VarStmt:
		return v.execBindingStmt(f, s.Value, s.Name, false)
	case *ast.AssignStmt:
		return v.execAssignStmt(f, s)
	case *ast.FuncDef:
		fn := value.Function{Obj: &value.FunctionObj{Name: s.Name, Params: s.Params, Body: s.Body, Closure: f.Scope}}
		f.Scope.Define(s.Name, fn, false)
		f.Index++
		return nil
	case *ast.TypeDef:
		td := value.TypeDesc{Obj: &value.TypeDescObj{Name: s.Name, Fields: s.Fields}}
		f.Scope.Define(s.Name, td, false)
		f.Index++
		return nil
	case *ast.EchoStmt:
		return v.execEcho(f, s)
	case *ast.IfStmt:
		return v.execIf(f, s)
	case *ast.ForStmt:
		return v.execFor(f, s)
	case *ast.WhileStmt:
		return v.execWhile(f, s)
	case *ast.ReturnStmt:
		return v.execReturn(f, s)
	case *ast.BreakStmt:
		v.unwindToLoop()
		return nil
	case *ast.ContinueStmt:
		v.continueLoop()
		return nil
	case *ast.ExprStmt:
		return v.execExprStmt(f, s)
	default:
		line, col := ast.LineCol(stmt)
		return v.runtimeErr(line, col, "unsupported statement")
	}
}

// execBindingStmt implements `let`/`var`: if the RHS is a user-defined
// call, it enters the call by pushing a function frame with a binding
// sink instead of evaluating eagerly.
func (v *VM) execBindingStmt(f *Frame, rhs ast.Expr, name string, isConst bool) error {
	if call, fn, ok := v.asUserCall(f.Scope, rhs); ok {
		f.Index++
		return v.enterCall(f.Scope, fn, call, &ReturnSink{Kind: SinkBinding, Name: name, Const: isConst, Caller: f.Scope})
	}
	val, err := v.Eval(f.Scope, rhs)
	if err != nil {
		return err
	}
	f.Scope.Define(name, val, isConst)
	f.Index++
	return nil
}

func (v *VM) execAssignStmt(f *Frame, s *ast.AssignStmt) error {
	if call, fn, ok := v.asUserCall(f.Scope, s.Value); ok {
		f.Index++
		return v.enterCall(f.Scope, fn, call, &ReturnSink{Kind: SinkAssign, Target: s.Target, Caller: f.Scope})
	}
	val, err := v.Eval(f.Scope, s.Value)
	if err != nil {
		return err
	}
	if err := v.applyAssign(f.Scope, s.Target, val); err != nil {
		return err
	}
	f.Index++
	return nil
}

func (v *VM) execEcho(f *Frame, s *ast.EchoStmt) error {
	parts := make([]string, len(s.Args))
	for i, a := range s.Args {
		val, err := v.Eval(f.Scope, a)
		if err != nil {
			return err
		}
		parts[i] = val.String()
	}
	line := joinSpaces(parts)
	v.output = append(v.output, line)
	f.Index++
	return nil
}

func joinSpaces(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}

func (v *VM) execIf(f *Frame, s *ast.IfStmt) error {
	cond, err := v.Eval(f.Scope, s.Cond)
	if err != nil {
		return err
	}
	if value.Truthy(cond) {
		f.Index++
		v.pushBlockChild(f.Scope, s.Then.Statements)
		return nil
	}
	for _, ei := range s.ElseIfs {
		econd, err := v.Eval(f.Scope, ei.Cond)
		if err != nil {
			return err
		}
		if value.Truthy(econd) {
			f.Index++
			v.pushBlockChild(f.Scope, ei.Body.Statements)
			return nil
		}
	}
	if s.Else != nil {
		f.Index++
		v.pushBlockChild(f.Scope, s.Else.Statements)
		return nil
	}
	f.Index++
	return nil
}

func (v *VM) pushBlockChild(parent *scope.Scope, stmts []ast.Stmt) {
	child := scope.Child(parent)
	v.push(&Frame{Kind: FrameBlock, Scope: child, Stmts: stmts})
}

func (v *VM) execFor(f *Frame, s *ast.ForStmt) error {
	iterVal, err := v.Eval(f.Scope, s.Iterable)
	if err != nil {
		return err
	}
	items, err := materializeIteration(iterVal)
	if err != nil {
		line, col := ast.LineCol(s.Iterable)
		return v.runtimeErr(line, col, "%s", err.Error())
	}
	f.Index++
	if len(items) == 0 {
		return nil
	}
	child := scope.Child(f.Scope)
	child.Define(s.Var, items[0], false)
	v.push(&Frame{
		Kind: FrameFor, Scope: child, Stmts: s.Body.Statements,
		LoopVar: s.Var, Iteration: items, IterIndex: 0,
	})
	return nil
}

func materializeIteration(v value.Value) ([]value.Value, error) {
	switch c := v.(type) {
	case value.Range:
		n := c.Len()
		out := make([]value.Value, 0, n)
		end := c.End
		if c.Inclusive {
			end++
		}
		for i := c.Start; i < end; i++ {
			out = append(out, value.Int{Val: i})
		}
		return out, nil
	case value.Array:
		return append([]value.Value(nil), (*c.Val)...), nil
	case value.String:
		out := make([]value.Value, 0, len(c.Val))
		for _, ch := range c.Val {
			out = append(out, value.String{Val: string(ch)})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("Cannot iterate over %s", value.TypeName(v))
	}
}

func (v *VM) execWhile(f *Frame, s *ast.WhileStmt) error {
	cond, err := v.Eval(f.Scope, s.Cond)
	if err != nil {
		return err
	}
	f.Index++
	if value.Truthy(cond) {
		child := scope.Child(f.Scope)
		v.push(&Frame{Kind: FrameWhile, Scope: child, Stmts: s.Body.Statements, Cond: s.Cond})
	}
	return nil
}

func (v *VM) execReturn(f *Frame, s *ast.ReturnStmt) error {
	var val value.Value = value.Nil{}
	if s.Value != nil {
		rv, err := v.Eval(f.Scope, s.Value)
		if err != nil {
			return err
		}
		val = rv
	}
	v.returnValue = val
	v.control = ControlReturn
	// Pop frames until the innermost function frame, then retire it.
	for len(v.frames) > 0 && v.top().Kind != FrameFunction {
		v.pop()
	}
	if len(v.frames) == 0 {
		return nil
	}
	return v.retireFunction()
}

func (v *VM) unwindToLoop() {
	for len(v.frames) > 0 {
		k := v.top().Kind
		if k == FrameFor || k == FrameWhile {
			v.pop()
			return
		}
		v.pop()
	}
}

func (v *VM) continueLoop() {
	for len(v.frames) > 0 {
		f := v.top()
		if f.Kind == FrameFor || f.Kind == FrameWhile {
			f.Index = len(f.Stmts)
			return
		}
		v.pop()
	}
}

func (v *VM) execExprStmt(f *Frame, s *ast.ExprStmt) error {
	if call, fn, ok := v.asUserCall(f.Scope, s.X); ok {
		f.Index++
		return v.enterCall(f.Scope, fn, call, &ReturnSink{Kind: SinkNone})
	}
	_, err := v.Eval(f.Scope, s.X)
	if err != nil {
		return err
	}
	f.Index++
	return nil
}

// asUserCall reports whether expr is a call whose callee resolves to a
// user-defined (non-native) function, returning the CallExpr and the
// resolved function value so the stepper can enter it as a frame.
func (v *VM) asUserCall(sc *scope.Scope, expr ast.Expr) (*ast.CallExpr, value.Function, bool) {
	call, ok := expr.(*ast.CallExpr)
	if !ok {
		return nil, value.Function{}, false
	}
	fn, _, err := v.resolveCallee(sc, call)
	if err != nil {
		return nil, value.Function{}, false
	}
	userFn, ok := fn.(value.Function)
	if !ok {
		return nil, value.Function{}, false
	}
	return call, userFn, true
}

// enterCall builds the activation scope, binds arguments, and pushes a
// function frame carrying sink.
func (v *VM) enterCall(callerScope *scope.Scope, fn value.Function, call *ast.CallExpr, sink *ReturnSink) error {
	args, err := v.evalCallArgs(callerScope, call, fn)
	if err != nil {
		return err
	}
	obj := fn.Obj
	if len(args) != len(obj.Params) {
		line, col := ast.LineCol(call)
		return v.runtimeErr(line, col, "Expected %d arguments, got %d", len(obj.Params), len(args))
	}
	closureScope, _ := obj.Closure.(*scope.Scope)
	activation := scope.Child(closureScope)
	for i, p := range obj.Params {
		activation.Define(p, args[i], false)
	}
	body, _ := obj.Body.(*ast.Block)
	sink.Caller = callerScope
	v.push(&Frame{
		Kind: FrameFunction, Scope: activation, Stmts: body.Statements,
		FuncName: obj.Name, CallerScope: callerScope, Sink: sink,
	})
	return nil
}

// evalCallArgs evaluates a call's argument list, prepending the
// receiver when the callee was resolved via UFCS.
func (v *VM) evalCallArgs(sc *scope.Scope, call *ast.CallExpr, fn value.Value) ([]value.Value, error) {
	_, receiver, err := v.resolveCallee(sc, call)
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
	return args, nil
}

// advance retires an exhausted frame per §4.2.
func (v *VM) advance() error {
	f := v.top()
	switch f.Kind {
	case FrameBlock:
		v.pop()
		return nil
	case FrameFor:
		f.IterIndex++
		if f.IterIndex >= len(f.Iteration) {
			v.pop()
			return nil
		}
		child := scope.Child(f.Scope.Parent())
		child.Define(f.LoopVar, f.Iteration[f.IterIndex], false)
		f.Scope = child
		f.Index = 0
		return nil
	case FrameWhile:
		cond, err := v.Eval(f.Scope.Parent(), f.Cond)
		if err != nil {
			return err
		}
		if value.Truthy(cond) {
			f.Index = 0
			return nil
		}
		v.pop()
		return nil
	case FrameFunction:
		return v.retireFunction()
	default:
		v.pop()
		return nil
	}
}

// retireFunction pops the function frame, restores the caller's scope,
// and delivers the return value per its sink.
func (v *VM) retireFunction() error {
	f := v.top()
	v.pop()
	v.current = f.CallerScope
	ret := v.returnValue
	if ret == nil {
		ret = value.Nil{}
	}
	v.returnValue = nil
	v.control = ControlNone

	switch f.Sink.Kind {
	case SinkBinding:
		f.Sink.Caller.Define(f.Sink.Name, ret, f.Sink.Const)
	case SinkAssign:
		if err := v.applyAssign(f.Sink.Caller, f.Sink.Target, ret); err != nil {
			return err
		}
	}
	return nil
}
