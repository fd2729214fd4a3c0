package interactive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treeform/nimmy/pkg/value"
	"github.com/treeform/nimmy/pkg/vm"
)

func TestEvalExpressionAgainstPausedScope(t *testing.T) {
	m := vm.New()
	require.NoError(t, m.LoadSource("let a = 1\nlet b = 2\necho a\n"))
	require.NoError(t, m.Step())
	require.NoError(t, m.Step())

	ev := New(m, nil)
	res, err := ev.Eval("a + b")
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.True(t, value.Equal(res.Value, value.Int{Val: 3}))
}

func TestEvalDoesNotPerturbVMState(t *testing.T) {
	m := vm.New()
	require.NoError(t, m.LoadSource("let a = 1\necho a\necho a\n"))
	require.NoError(t, m.Step())

	lineBefore := m.CurrentLine()
	depthBefore := m.CallDepth()
	finishedBefore := m.IsFinished()

	ev := New(m, nil)
	_, err := ev.Eval("a * 2")
	require.NoError(t, err)

	assert.Equal(t, lineBefore, m.CurrentLine())
	assert.Equal(t, depthBefore, m.CallDepth())
	assert.Equal(t, finishedBefore, m.IsFinished())
}

func TestEvalLetDefinesInPausedScopeVisibleToProgram(t *testing.T) {
	m := vm.New()
	require.NoError(t, m.LoadSource("let a = 1\necho a\n"))
	require.NoError(t, m.Step())

	ev := New(m, nil)
	_, err := ev.Eval("let injected = 99")
	require.NoError(t, err)

	got, err := m.CurrentScope().Lookup("injected")
	require.NoError(t, err)
	assert.True(t, value.Equal(got, value.Int{Val: 99}))
}

func TestEvalRuntimeErrorCapturedInResult(t *testing.T) {
	m := vm.New()
	require.NoError(t, m.LoadSource("echo 1\n"))

	ev := New(m, nil)
	res, err := ev.Eval("1 / 0")
	require.NoError(t, err)
	require.Error(t, res.Err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Err.Error(), "Division by zero")
}

func TestEvalEchoCapturedInOutputNotMainStream(t *testing.T) {
	m := vm.New()
	require.NoError(t, m.LoadSource("echo 1\n"))

	ev := New(m, nil)
	res, err := ev.Eval("echo 2, 3\necho 4\n")
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"2 3", "4"}, res.Output)
	assert.Empty(t, m.Output(), "fragment echo must not leak into the VM's main output stream")
}

func TestEvalProcFragmentInstallsFunctionInScope(t *testing.T) {
	m := vm.New()
	require.NoError(t, m.LoadSource("echo 1\n"))

	ev := New(m, nil)
	_, err := ev.Eval("proc triple(n) =\n  return n * 3\n")
	require.NoError(t, err)

	res, err := ev.Eval("triple(4)")
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.True(t, value.Equal(res.Value, value.Int{Val: 12}))
}

func TestEvalParseErrorReturnedDirectly(t *testing.T) {
	m := vm.New()
	require.NoError(t, m.LoadSource("echo 1\n"))

	ev := New(m, nil)
	_, err := ev.Eval("let = \n")
	assert.Error(t, err)
}

func TestEvalEmptyFragmentSucceedsWithNil(t *testing.T) {
	m := vm.New()
	require.NoError(t, m.LoadSource("echo 1\n"))

	ev := New(m, nil)
	res, err := ev.Eval("")
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.True(t, value.Equal(res.Value, value.Nil{}))
}

func TestEvalAssignMutatesPausedScope(t *testing.T) {
	m := vm.New()
	require.NoError(t, m.LoadSource("var a = 1\necho a\n"))
	require.NoError(t, m.Step())

	ev := New(m, nil)
	_, err := ev.Eval("a = 42")
	require.NoError(t, err)

	got, err := m.CurrentScope().Lookup("a")
	require.NoError(t, err)
	assert.True(t, value.Equal(got, value.Int{Val: 42}))
}
