// Package vm implements nimmy's tree-walking virtual machine: the
// expression evaluator, the explicit execution-frame stack and its
// statement-granularity stepper, and the embedding surface a host
// application drives.
package vm

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/treeform/nimmy/pkg/ast"
	"github.com/treeform/nimmy/pkg/parser"
	"github.com/treeform/nimmy/pkg/scope"
	"github.com/treeform/nimmy/pkg/stdlib"
	"github.com/treeform/nimmy/pkg/value"
)

// ControlFlow records which, if any, non-local control transfer is in
// flight between a statement's dispatch and the next advance.
type ControlFlow int

const (
	ControlNone ControlFlow = iota
	ControlBreak
	ControlContinue
	ControlReturn
)

// Logger is the narrow logging surface the VM calls into, satisfied by
// *logging.Logger. Left nil, a VM logs nothing.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
}

// Meter is the narrow metrics surface the VM calls into, satisfied by
// *metrics.Recorder. Left nil, a VM records nothing.
type Meter interface {
	IncStep()
	SetCallDepth(n int)
	IncBreakpointHit()
	ObserveInteractiveEval(seconds float64)
}

// Tracer is the narrow tracing surface the VM calls into, satisfied by
// *tracing.Tracer. Left nil, a VM creates no spans.
type Tracer interface {
	StartSpan(name string, attrs map[string]string) func()
}

// RunRecord is one row of run-history a Store may persist.
type RunRecord struct {
	SourceHash string
	Started    time.Time
	Finished   time.Time
	Output     string
	Err        string
}

// Store is the narrow persistence surface the VM calls into, satisfied
// by pkg/store backends. Left nil, a VM persists nothing.
type Store interface {
	LoadBreakpoints(sourceHash string) ([]int, error)
	SaveBreakpoints(sourceHash string, lines []int) error
	RecordRun(record RunRecord) error
}

// VM is a single instance of the nimmy virtual machine.
type VM struct {
	SessionID string

	global  *scope.Scope
	current *scope.Scope

	output      []string
	returnValue value.Value
	control     ControlFlow

	frames      []*Frame
	currentLine int
	currentCol  int
	finished    bool

	breakpoints map[int]bool

	sourceHash string
	maxSteps   int
	stepCount  int

	logger Logger
	meter  Meter
	tracer Tracer
	store  Store
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithLogger attaches a structured logger. Nil-safe: every call site
// checks for a configured logger before use.
func WithLogger(l Logger) Option { return func(v *VM) { v.logger = l } }

// WithMeter attaches a metrics recorder.
func WithMeter(m Meter) Option { return func(v *VM) { v.meter = m } }

// WithTracer attaches a tracer.
func WithTracer(t Tracer) Option { return func(v *VM) { v.tracer = t } }

// WithStore attaches a breakpoint/run-history store.
func WithStore(s Store) Option { return func(v *VM) { v.store = s } }

// WithMaxSteps bounds the number of steps EvalToEnd/Run will take before
// failing, guarding an embedder against a runaway script. Zero (the
// default) means unbounded.
func WithMaxSteps(n int) Option { return func(v *VM) { v.maxSteps = n } }

// New creates a fresh VM with the standard library registered in its
// global scope.
func New(opts ...Option) *VM {
	v := &VM{
		SessionID:   uuid.NewString(),
		global:      scope.New(),
		breakpoints: make(map[int]bool),
		finished:    true,
	}
	v.current = v.global
	for _, opt := range opts {
		opt(v)
	}
	stdlib.Register(v)
	return v
}

// AddNative installs a native function in the global scope, implementing
// stdlib.Registerer so a fresh VM can self-register the standard
// library, and so embedders can shadow or add natives afterward.
func (v *VM) AddNative(name string, fn value.NativeFunc) {
	v.global.Define(name, value.Native{Obj: &value.NativeObj{Name: name, Fn: fn}}, false)
}

// SetGlobal assigns name in the global scope directly, defining it if
// absent.
func (v *VM) SetGlobal(name string, val value.Value) {
	v.global.Define(name, val, false)
}

// GetGlobal reads name from the global scope.
func (v *VM) GetGlobal(name string) (value.Value, error) {
	return v.global.Lookup(name)
}

// GlobalScope returns the VM's global scope.
func (v *VM) GlobalScope() *scope.Scope { return v.global }

// CurrentScope returns the scope active at the current pause point.
func (v *VM) CurrentScope() *scope.Scope { return v.current }

// CurrentLine returns the source line the next step will execute.
func (v *VM) CurrentLine() int { return v.currentLine }

// IsFinished reports whether the frame stack is empty.
func (v *VM) IsFinished() bool { return v.finished }

// CallDepth is the number of function frames currently on the stack.
func (v *VM) CallDepth() int {
	depth := 0
	for _, f := range v.frames {
		if f.Kind == FrameFunction {
			depth++
		}
	}
	return depth
}

// Output returns the collected output lines so far.
func (v *VM) Output() []string { return append([]string(nil), v.output...) }

// AddBreakpoint registers line as a breakpoint.
func (v *VM) AddBreakpoint(line int) { v.breakpoints[line] = true }

// RemoveBreakpoint clears a single breakpoint.
func (v *VM) RemoveBreakpoint(line int) { delete(v.breakpoints, line) }

// ClearBreakpoints removes every breakpoint.
func (v *VM) ClearBreakpoints() { v.breakpoints = make(map[int]bool) }

// HasBreakpoint reports whether line is a registered breakpoint.
func (v *VM) HasBreakpoint(line int) bool { return v.breakpoints[line] }

// Breakpoints returns the current breakpoint line numbers.
func (v *VM) Breakpoints() []int {
	out := make([]int, 0, len(v.breakpoints))
	for l := range v.breakpoints {
		out = append(out, l)
	}
	return out
}

func (v *VM) log(msg string, fields map[string]interface{}) {
	if v.logger != nil {
		v.logger.Debug(msg, fields)
	}
}

// RecordBreakpointHit notifies the configured Meter that execution
// paused on a breakpoint. Called by pkg/debug, which owns the decision
// of when a breakpoint line was actually the reason execution stopped.
func (v *VM) RecordBreakpointHit() {
	if v.meter != nil {
		v.meter.IncBreakpointHit()
	}
}

// Load resets the frame stack and seeds it with the program's top-level
// statements. The global scope and the breakpoint set persist across
// Load calls. If a Store is configured, any persisted breakpoints for
// this exact source are merged in before the caller's own breakpoints
// take effect.
func (v *VM) Load(source string, prog *ast.Program) {
	v.frames = nil
	v.current = v.global
	v.returnValue = nil
	v.control = ControlNone
	v.stepCount = 0
	v.sourceHash = hashSource(source)

	if v.store != nil {
		if lines, err := v.store.LoadBreakpoints(v.sourceHash); err == nil {
			for _, l := range lines {
				v.breakpoints[l] = true
			}
		}
	}

	if len(prog.Statements) == 0 {
		v.finished = true
		v.currentLine = 0
		return
	}

	v.finished = false
	root := &Frame{Kind: FrameBlock, Scope: v.global, Stmts: prog.Statements}
	v.frames = append(v.frames, root)
	v.currentLine, v.currentCol = ast.LineCol(prog.Statements[0])
}

// LoadSource parses source and loads the resulting program in one call.
func (v *VM) LoadSource(source string) error {
	prog, err := parser.Parse(source)
	if err != nil {
		return err
	}
	v.Load(source, prog)
	return nil
}

// EvalToEnd is equivalent to Load followed by repeated Step until
// finished.
func (v *VM) EvalToEnd(source string, prog *ast.Program) error {
	v.Load(source, prog)
	for !v.finished {
		if err := v.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Run parses, evaluates source to completion, and returns the collected
// output, clearing the output buffer. This is the embedding surface's
// primary "just run it" entry point.
func (v *VM) Run(source string) (string, error) {
	if v.tracer != nil {
		end := v.tracer.StartSpan("run", map[string]string{"session_id": v.SessionID})
		defer end()
	}
	started := time.Now()

	prog, err := parser.Parse(source)
	if err != nil {
		v.recordRun(started, "", err)
		return "", err
	}
	if err := v.EvalToEnd(source, prog); err != nil {
		v.recordRun(started, joinOutput(v.output), err)
		return "", err
	}
	out := joinOutput(v.output)
	v.output = nil
	v.recordRun(started, out, nil)
	return out, nil
}

func (v *VM) recordRun(started time.Time, output string, err error) {
	if v.store == nil {
		return
	}
	rec := RunRecord{SourceHash: v.sourceHash, Started: started, Finished: time.Now(), Output: output}
	if err != nil {
		rec.Err = err.Error()
	}
	_ = v.store.RecordRun(rec)
}

func joinOutput(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func hashSource(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}
