// Package interactive implements nimmy's "run-interactive" debug
// console command: evaluate a source fragment against the scope active
// at the current pause point without perturbing the VM's frame stack,
// current line, or finished flag.
package interactive

import (
	"fmt"
	"strings"
	"time"

	"github.com/treeform/nimmy/pkg/ast"
	"github.com/treeform/nimmy/pkg/parser"
	"github.com/treeform/nimmy/pkg/value"
	"github.com/treeform/nimmy/pkg/vm"
)

// Result is the outcome of one interactive evaluation: Success mirrors
// whether Err is nil, Value is the last statement's value, and Output
// collects any echo lines the fragment produced — separate from the
// VM's own output buffer, which a fragment never touches.
type Result struct {
	Success bool
	Value   value.Value
	Err     error
	Output  []string
}

// Meter is the narrow metrics surface an Evaluator reports interactive
// timings through.
type Meter interface {
	ObserveInteractiveEval(seconds float64)
}

// Evaluator evaluates fragments against a paused VM's current scope.
type Evaluator struct {
	machine *vm.VM
	meter   Meter
}

// New creates an Evaluator over m. Pass the same Meter m was
// constructed with to time interactive evaluations, or nil to skip
// metrics.
func New(m *vm.VM, meter Meter) *Evaluator {
	return &Evaluator{machine: m, meter: meter}
}

// Eval parses fragment as a sequence of statements and evaluates them
// against the VM's current scope, reading and, for
// `let`/`var`/assignment/`proc` fragments, writing directly into that
// scope. Runtime errors are captured in the result rather than returned
// as a Go error, since a failed interactive expression should not abort
// the debug session — only a parse failure is returned directly, as
// there is then nothing to evaluate at all.
func (e *Evaluator) Eval(fragment string) (Result, error) {
	started := time.Now()
	defer func() {
		if e.meter != nil {
			e.meter.ObserveInteractiveEval(time.Since(started).Seconds())
		}
	}()

	prog, err := parser.Parse(fragment)
	if err != nil {
		return Result{Err: err}, err
	}
	if len(prog.Statements) == 0 {
		return Result{Success: true, Value: value.Nil{}}, nil
	}

	var output []string
	var last value.Value = value.Nil{}
	for _, stmt := range prog.Statements {
		val, evalErr := e.evalOne(stmt, &output)
		if evalErr != nil {
			return Result{Err: evalErr, Output: output}, nil
		}
		last = val
	}
	return Result{Success: true, Value: last, Output: output}, nil
}

// evalOne evaluates a single interactive statement against the VM's
// current paused scope, without touching its frame stack — a
// `let`/`var`/`proc` fragment defines in the paused scope itself
// (visible to subsequent interactive fragments, and to the paused
// program once resumed, matching how a debugger console is expected to
// let you poke at running state). echo lines are appended to output
// rather than the VM's own output buffer.
func (e *Evaluator) evalOne(stmt ast.Stmt, output *[]string) (value.Value, error) {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		return e.machine.Eval(e.machine.CurrentScope(), s.X)
	case *ast.LetStmt:
		val, err := e.machine.Eval(e.machine.CurrentScope(), s.Value)
		if err != nil {
			return nil, err
		}
		e.machine.CurrentScope().Define(s.Name, val, true)
		return val, nil
	case *ast.VarStmt:
		val, err := e.machine.Eval(e.machine.CurrentScope(), s.Value)
		if err != nil {
			return nil, err
		}
		e.machine.CurrentScope().Define(s.Name, val, false)
		return val, nil
	case *ast.AssignStmt:
		val, err := e.machine.Eval(e.machine.CurrentScope(), s.Value)
		if err != nil {
			return nil, err
		}
		if err := e.machine.AssignInScope(e.machine.CurrentScope(), s.Target, val); err != nil {
			return nil, err
		}
		return val, nil
	case *ast.FuncDef:
		fn := value.Function{Obj: &value.FunctionObj{
			Name: s.Name, Params: s.Params, Body: s.Body, Closure: e.machine.CurrentScope(),
		}}
		e.machine.CurrentScope().Define(s.Name, fn, false)
		return fn, nil
	case *ast.EchoStmt:
		parts := make([]string, len(s.Args))
		for i, a := range s.Args {
			val, err := e.machine.Eval(e.machine.CurrentScope(), a)
			if err != nil {
				return nil, err
			}
			parts[i] = val.String()
		}
		*output = append(*output, strings.Join(parts, " "))
		return value.Nil{}, nil
	default:
		return nil, fmt.Errorf("unsupported interactive statement")
	}
}
