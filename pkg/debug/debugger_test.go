package debug

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treeform/nimmy/pkg/vm"
)

func TestLoadPausesAtFirstStatement(t *testing.T) {
	s := New(vm.New())
	require.NoError(t, s.Load("let a = 1\necho a\n"))
	assert.True(t, s.IsPaused())
	assert.Equal(t, 1, s.CurrentLine())
}

func TestLoadEmptyProgramFinishesImmediately(t *testing.T) {
	s := New(vm.New())
	require.NoError(t, s.Load(""))
	assert.False(t, s.IsPaused())
}

func TestStepOverSkipsCallBody(t *testing.T) {
	s := New(vm.New())
	source := "proc add(a, b) =\n  return a + b\n\nlet result = add(1, 2)\necho result\n"
	require.NoError(t, s.Load(source))

	require.NoError(t, s.StepOver()) // proc def
	require.NoError(t, s.StepOver()) // runs add(1, 2) to completion in one control
	assert.Equal(t, 0, s.CallDepth())
	assert.Equal(t, 5, s.CurrentLine())
}

func TestStepIntoDescendsOneFrame(t *testing.T) {
	s := New(vm.New())
	source := "proc add(a, b) =\n  return a + b\n\nlet result = add(1, 2)\necho result\n"
	require.NoError(t, s.Load(source))

	require.NoError(t, s.StepInto()) // proc def
	require.NoError(t, s.StepInto()) // enters add
	assert.Equal(t, 1, s.CallDepth())
	assert.Equal(t, 2, s.CurrentLine())
}

func TestStepOutReturnsToCaller(t *testing.T) {
	s := New(vm.New())
	source := "proc add(a, b) =\n  return a + b\n\nlet result = add(1, 2)\necho result\n"
	require.NoError(t, s.Load(source))

	require.NoError(t, s.StepInto()) // proc def
	require.NoError(t, s.StepInto()) // enters add, depth 1
	require.Equal(t, 1, s.CallDepth())
	require.NoError(t, s.StepOut())
	assert.Equal(t, 0, s.CallDepth())
}

func TestContinueStopsOnBreakpoint(t *testing.T) {
	s := New(vm.New())
	source := "let a = 1\nlet b = 2\nlet c = 3\necho a + b + c\n"
	require.NoError(t, s.Load(source))
	s.AddBreakpoint(3)

	require.NoError(t, s.Continue())
	assert.True(t, s.IsPaused())
	assert.Equal(t, 3, s.CurrentLine())
}

func TestContinueRunsToCompletionWithoutBreakpoints(t *testing.T) {
	s := New(vm.New())
	require.NoError(t, s.Load("echo 1\necho 2\n"))
	require.NoError(t, s.Continue())
	assert.False(t, s.IsPaused())
}

func TestRemoveBreakpointStopsItFromTriggering(t *testing.T) {
	s := New(vm.New())
	source := "let a = 1\necho a\n"
	require.NoError(t, s.Load(source))
	s.AddBreakpoint(2)
	s.RemoveBreakpoint(2)

	require.NoError(t, s.Continue())
	assert.False(t, s.IsPaused())
}

func TestLocalsReflectsPausedScope(t *testing.T) {
	s := New(vm.New())
	require.NoError(t, s.Load("let a = 1\nlet b = 2\necho a\n"))
	require.NoError(t, s.StepInto())
	require.NoError(t, s.StepInto())

	locals := s.Locals()
	assert.Contains(t, locals, "a")
	assert.Contains(t, locals, "b")
}

func TestFormatLocalsReportsNoLocalsWhenEmpty(t *testing.T) {
	s := New(vm.New())
	require.NoError(t, s.Load("echo 1\n"))
	assert.Equal(t, "no local variables", s.FormatLocals())
}

func TestLastModeTracksMostRecentControl(t *testing.T) {
	s := New(vm.New())
	require.NoError(t, s.Load("echo 1\necho 2\n"))
	assert.Equal(t, StepContinue, s.LastMode())
	require.NoError(t, s.StepInto())
	assert.Equal(t, StepInto, s.LastMode())
	require.NoError(t, s.StepOver())
	assert.Equal(t, StepOver, s.LastMode())
}
