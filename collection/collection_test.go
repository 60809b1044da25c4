package collection

import (
	"testing"

	"github.com/AnatoleLucet/rset/change"
	"github.com/AnatoleLucet/rset/errs"
	"github.com/AnatoleLucet/rset/internal/xsignal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect[T comparable](c *Collection[T]) *[]change.Delta[T] {
	out := &[]change.Delta[T]{}
	c.OnChange().Subscribe(xsignal.Func(func(d change.Delta[T]) { *out = append(*out, d) }))
	return out
}

func TestCollectionAddDelete(t *testing.T) {
	c := New[string]()
	deltas := collect(c)

	require.NoError(t, c.Add("a"))
	assert.True(t, c.Has("a"))
	require.NoError(t, c.Add("a")) // idempotent, but still re-evaluated as a no-op delta
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Delete("missing"))

	require.Len(t, *deltas, 1, "second Add('a') is a no-op once already present")
	assert.Equal(t, change.NewSet("a"), (*deltas)[0].Increment)
}

func TestCollectionBatchAddEquivalence(t *testing.T) {
	reduced := New[int]()
	for _, v := range []int{1, 2, 3} {
		require.NoError(t, reduced.Add(v))
	}

	batched := New[int]()
	batchDeltas := collect(batched)
	require.NoError(t, batched.BatchAdd(change.NewSet(1, 2, 3)))

	assert.Equal(t, reduced.Values(), batched.Values())
	assert.Len(t, *batchDeltas, 1, "batch form emits at most one delta")
}

func TestCollectionOverwriteTwiceIsNoOpSecondTime(t *testing.T) {
	c := New[int]()
	deltas := collect(c)

	require.NoError(t, c.Overwrite(change.NewSet(1, 2, 3)))
	require.Len(t, *deltas, 1)

	require.NoError(t, c.Overwrite(change.NewSet(1, 2, 3)))
	require.Len(t, *deltas, 1, "second identical overwrite emits nothing")
}

func TestCollectionClear(t *testing.T) {
	c := New(WithValues(1, 2, 3))
	deltas := collect(c)

	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Len())
	require.Len(t, *deltas, 1)
	assert.Equal(t, change.NewSet(1, 2, 3), (*deltas)[0].Decrement)
}

func TestCollectionTransactionCoalescing(t *testing.T) {
	c := New[string]()
	deltas := collect(c)

	require.NoError(t, c.OpenTransaction())
	require.NoError(t, c.Add("a"))
	require.NoError(t, c.Add("b"))
	require.NoError(t, c.Delete("a"))
	require.NoError(t, c.CloseTransaction())

	require.Len(t, *deltas, 1)
	d := (*deltas)[0]
	assert.Equal(t, change.NewSet("b"), d.Increment)
	assert.Nil(t, d.Decrement)
}

func TestCollectionTransactionRoundtripInvariant(t *testing.T) {
	c := New(WithValues("a", "b"))
	deltas := collect(c)

	require.NoError(t, c.OpenTransaction())
	require.NoError(t, c.Add("c"))
	require.NoError(t, c.Delete("a"))
	require.NoError(t, c.Add("a")) // re-add cancels the pending removal
	require.NoError(t, c.CloseTransaction())

	require.Len(t, *deltas, 1)
	d := (*deltas)[0]
	assert.Equal(t, change.NewSet("c"), d.Increment)
	assert.Nil(t, d.Decrement)
	assert.Equal(t, change.NewSet("a", "b", "c"), c.Values())
}

func TestCollectionTransactionCancel(t *testing.T) {
	c := New(WithValues("a"))
	deltas := collect(c)

	require.NoError(t, c.OpenTransaction())
	require.NoError(t, c.Add("b"))
	require.NoError(t, c.CancelTransaction())

	assert.Equal(t, change.NewSet("a"), c.Values())
	assert.Empty(t, *deltas)
}

func TestCollectionApplyChangesDelta(t *testing.T) {
	c := New(WithValues("a", "b"))
	deltas := collect(c)

	err := c.ApplyChanges(change.FromDelta(change.Delta[string]{
		Increment: change.NewSet("c"),
		Decrement: change.NewSet("a"),
	}))
	require.NoError(t, err)

	assert.Equal(t, change.NewSet("b", "c"), c.Values())
	require.Len(t, *deltas, 1, "applyChanges wraps the increment in a single transaction")
}

func TestCollectionApplyChangesOverlapRejected(t *testing.T) {
	c := New[string]()
	err := c.ApplyChanges(change.FromDelta(change.Delta[string]{
		Increment: change.NewSet("a"),
		Decrement: change.NewSet("a"),
	}))
	require.Error(t, err)
}

func TestCollectionReadonlyFacade(t *testing.T) {
	c := New(WithValues(1, 2))
	ro := NewReadOnly(c, nil, nil)

	assert.Equal(t, c.Values(), ro.Values())

	err := ro.Add(3)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ReadonlyAccess))
}

func TestCollectionReactivityDisabled(t *testing.T) {
	c := New(WithValues(1, 2))
	var switches []bool
	c.OnSwitch().Subscribe(xsignal.Func(func(v bool) { switches = append(switches, v) }))

	c.DisableReactivity()
	assert.Equal(t, 0, c.Len(), "storage is cleared silently on disable")

	err := c.Add(3)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ReactivityDisabled))

	c.EnableReactivity()
	require.NoError(t, c.Add(3))
	assert.True(t, c.Has(3))

	assert.Equal(t, []bool{false, true}, switches)
}
