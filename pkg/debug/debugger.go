// Package debug wraps a *vm.VM with the debug controls a steppable
// debugger needs: step-into, step-over, step-out, and continue, all
// built on the VM's single Step primitive plus its call-depth counter.
package debug

import (
	"fmt"

	"github.com/treeform/nimmy/pkg/ast"
	"github.com/treeform/nimmy/pkg/parser"
	"github.com/treeform/nimmy/pkg/value"
	"github.com/treeform/nimmy/pkg/vm"
)

// StepMode names which debug control last resumed execution, surfaced
// for display by a host (CLI or remote debug server).
type StepMode int

const (
	StepContinue StepMode = iota
	StepInto
	StepOver
	StepOut
)

func (m StepMode) String() string {
	switch m {
	case StepInto:
		return "step-into"
	case StepOver:
		return "step-over"
	case StepOut:
		return "step-out"
	default:
		return "continue"
	}
}

// Session is a single debugging session over one VM instance: load a
// program, drive it one control at a time, and inspect it while paused.
type Session struct {
	machine  *vm.VM
	source   string
	program  *ast.Program
	lastMode StepMode
}

// New creates a debug session wrapping vm, which must already have been
// constructed with whatever Logger/Meter/Tracer/Store options the
// embedder wants.
func New(m *vm.VM) *Session {
	return &Session{machine: m, lastMode: StepContinue}
}

// VM returns the underlying VM, e.g. so a host can call Output() after a
// pause or read CurrentLine() for display.
func (s *Session) VM() *vm.VM { return s.machine }

// Load parses source and loads it into the VM, paused at its first
// statement (or immediately finished, for an empty program).
func (s *Session) Load(source string) error {
	prog, err := parser.Parse(source)
	if err != nil {
		return err
	}
	s.source = source
	s.program = prog
	s.machine.Load(source, prog)
	return nil
}

// StepInto executes exactly one statement, descending into any call it
// makes. This is the primitive every other control composes.
func (s *Session) StepInto() error {
	s.lastMode = StepInto
	return s.machine.Step()
}

// StepOver executes one statement, then keeps stepping for as long as
// the call stack is deeper than it was at the start — i.e. it runs any
// call entered by that statement to completion before pausing again.
func (s *Session) StepOver() error {
	s.lastMode = StepOver
	depth := s.machine.CallDepth()
	if err := s.machine.Step(); err != nil {
		return err
	}
	for !s.machine.IsFinished() && s.machine.CallDepth() > depth {
		if err := s.machine.Step(); err != nil {
			return err
		}
	}
	return nil
}

// StepOut runs until the call stack becomes shallower than it is right
// now, i.e. until the innermost function frame active at the call
// returns to its caller.
func (s *Session) StepOut() error {
	s.lastMode = StepOut
	depth := s.machine.CallDepth()
	for !s.machine.IsFinished() && s.machine.CallDepth() >= depth {
		if err := s.machine.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Continue steps once unconditionally (so a paused-on-breakpoint line
// always makes forward progress) and then keeps stepping until a
// breakpoint line is reached or the program finishes.
func (s *Session) Continue() error {
	s.lastMode = StepContinue
	if err := s.machine.Step(); err != nil {
		return err
	}
	for !s.machine.IsFinished() && !s.machine.HasBreakpoint(s.machine.CurrentLine()) {
		if err := s.machine.Step(); err != nil {
			return err
		}
	}
	if !s.machine.IsFinished() && s.machine.HasBreakpoint(s.machine.CurrentLine()) {
		s.machine.RecordBreakpointHit()
	}
	return nil
}

// LastMode reports which control most recently resumed execution.
func (s *Session) LastMode() StepMode { return s.lastMode }

// AddBreakpoint registers line as a breakpoint.
func (s *Session) AddBreakpoint(line int) { s.machine.AddBreakpoint(line) }

// RemoveBreakpoint clears a single breakpoint.
func (s *Session) RemoveBreakpoint(line int) { s.machine.RemoveBreakpoint(line) }

// Breakpoints returns the current breakpoint line numbers.
func (s *Session) Breakpoints() []int { return s.machine.Breakpoints() }

// IsPaused reports whether the session has a statement left to execute.
func (s *Session) IsPaused() bool { return !s.machine.IsFinished() }

// CurrentLine is the source line the next step will execute.
func (s *Session) CurrentLine() int { return s.machine.CurrentLine() }

// CallDepth is the number of function activations currently on the
// frame stack.
func (s *Session) CallDepth() int { return s.machine.CallDepth() }

// Locals returns a flat snapshot of every binding visible in the scope
// active at the current pause point, leaving out native functions (the
// standard library and any embedder-registered natives).
func (s *Session) Locals() map[string]value.Value {
	locals := s.machine.CurrentScope().Snapshot()
	for name, v := range locals {
		if _, ok := v.(value.Native); ok {
			delete(locals, name)
		}
	}
	return locals
}

// FormatLocals renders the paused scope's bindings as "name = value"
// lines in map iteration order, which is not stable between calls.
func (s *Session) FormatLocals() string {
	locals := s.Locals()
	if len(locals) == 0 {
		return "no local variables"
	}
	out := ""
	for name, v := range locals {
		out += fmt.Sprintf("%s = %s\n", name, v.String())
	}
	return out
}
