package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treeform/nimmy/pkg/vm"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadBreakpointsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveBreakpoints("hash-a", []int{3, 7, 9}))

	got, err := s.LoadBreakpoints("hash-a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{3, 7, 9}, got)
}

func TestSaveBreakpointsReplacesPriorSet(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveBreakpoints("hash-a", []int{1, 2}))
	require.NoError(t, s.SaveBreakpoints("hash-a", []int{5}))

	got, err := s.LoadBreakpoints("hash-a")
	require.NoError(t, err)
	assert.Equal(t, []int{5}, got)
}

func TestLoadBreakpointsUnknownHashIsEmpty(t *testing.T) {
	s := openTestStore(t)
	got, err := s.LoadBreakpoints("never-saved")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBreakpointsAreScopedPerSourceHash(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveBreakpoints("hash-a", []int{1}))
	require.NoError(t, s.SaveBreakpoints("hash-b", []int{2}))

	a, err := s.LoadBreakpoints("hash-a")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, a)

	b, err := s.LoadBreakpoints("hash-b")
	require.NoError(t, err)
	assert.Equal(t, []int{2}, b)
}

func TestRecordRunAndRunHistory(t *testing.T) {
	s := openTestStore(t)
	started := time.Now().Add(-time.Second)
	finished := time.Now()

	require.NoError(t, s.RecordRun(vm.RunRecord{
		SourceHash: "hash-a", Started: started, Finished: finished, Output: "7",
	}))
	require.NoError(t, s.RecordRun(vm.RunRecord{
		SourceHash: "hash-a", Started: started, Finished: finished, Err: "boom",
	}))

	history, err := s.RunHistory("hash-a", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
}
