package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treeform/nimmy/pkg/vm"
)

// fakeStore is an in-memory vm.Store stand-in so CachedStore's
// read-through/write-through behavior can be tested without a real
// backing database.
type fakeStore struct {
	breakpoints map[string][]int
	runs        []vm.RunRecord
	loadCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{breakpoints: make(map[string][]int)}
}

func (f *fakeStore) LoadBreakpoints(sourceHash string) ([]int, error) {
	f.loadCalls++
	return append([]int(nil), f.breakpoints[sourceHash]...), nil
}

func (f *fakeStore) SaveBreakpoints(sourceHash string, lines []int) error {
	f.breakpoints[sourceHash] = append([]int(nil), lines...)
	return nil
}

func (f *fakeStore) RecordRun(rec vm.RunRecord) error {
	f.runs = append(f.runs, rec)
	return nil
}

// newTestCachedStore points the redis client at an address nothing
// listens on, so every redis call fails fast (connection refused) and
// CachedStore falls back to the backing store — enough to exercise the
// fallback and write-through paths without a live redis server.
func newTestCachedStore(backing vm.Store) *CachedStore {
	return NewCachedStore(backing, "127.0.0.1:1", time.Minute)
}

func TestCachedStoreFallsBackToBackingOnCacheMiss(t *testing.T) {
	backing := newFakeStore()
	backing.breakpoints["hash-a"] = []int{3, 5}

	c := newTestCachedStore(backing)
	lines, err := c.LoadBreakpoints("hash-a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{3, 5}, lines)
	assert.Equal(t, 1, backing.loadCalls)
}

func TestCachedStoreSaveWritesThroughToBacking(t *testing.T) {
	backing := newFakeStore()
	c := newTestCachedStore(backing)

	require.NoError(t, c.SaveBreakpoints("hash-a", []int{1, 2, 3}))
	assert.Equal(t, []int{1, 2, 3}, backing.breakpoints["hash-a"])
}

func TestCachedStoreRecordRunDelegatesToBacking(t *testing.T) {
	backing := newFakeStore()
	c := newTestCachedStore(backing)

	rec := vm.RunRecord{SourceHash: "hash-a", Output: "done"}
	require.NoError(t, c.RecordRun(rec))
	require.Len(t, backing.runs, 1)
	assert.Equal(t, "done", backing.runs[0].Output)
}

func TestCachedStoreCloseClosesRedisClient(t *testing.T) {
	c := newTestCachedStore(newFakeStore())
	assert.NoError(t, c.Close())
}
