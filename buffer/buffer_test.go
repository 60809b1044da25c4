package buffer

import (
	"testing"

	"github.com/AnatoleLucet/rset/cell"
	"github.com/AnatoleLucet/rset/change"
	"github.com/AnatoleLucet/rset/collection"
	"github.com/AnatoleLucet/rset/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionBufferAccumulatesAndCommits(t *testing.T) {
	c := collection.New(collection.WithValues(1, 2))
	b := NewCollectionBuffer[int](c)

	_, err := b.GetBufferedChanges()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.BufferDisabled))

	b.Enable()
	d, err := b.GetBufferedChanges()
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, change.NewSet(1, 2), d.Increment)

	require.NoError(t, b.CommitChanges())
	state, ok, err := b.GetCommittedState()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, change.NewSet(1, 2), state)

	require.NoError(t, c.Add(3))
	d, err = b.GetBufferedChanges()
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, change.NewSet(3), d.Increment)

	state, ok, err = b.GetCommittedState()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, change.NewSet(1, 2), state, "committed state still reflects the last commit, not the live source")
}

func TestCollectionBufferDisableClears(t *testing.T) {
	c := collection.New(collection.WithValues(1))
	b := NewCollectionBuffer[int](c)
	b.Enable()
	b.Disable()

	_, err := b.GetBufferedChanges()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.BufferDisabled))

	require.NoError(t, c.Add(2), "source mutation after disable must not panic the detached buffer")
}

func TestCellBufferBuffersInitialValueAndDeepEquality(t *testing.T) {
	c := cell.New("even")
	b := NewCellBuffer[string](c)
	b.Enable()

	d, err := b.GetBufferedChange()
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "even", d.Increment.V)

	require.NoError(t, b.CommitState())

	require.NoError(t, c.Set("even")) // no-op at the cell level, never reaches the buffer
	d, err = b.GetBufferedChange()
	require.NoError(t, err)
	assert.Nil(t, d)

	require.NoError(t, c.Set("odd"))
	d, err = b.GetBufferedChange()
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "odd", d.Increment.V)
	assert.Equal(t, "even", d.Decrement.V)
}

func TestCellBufferCommitWithoutPendingFails(t *testing.T) {
	c := cell.New(1)
	b := NewCellBuffer[int](c)
	b.Enable()
	require.NoError(t, b.CommitState())

	err := b.CommitState()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CommitWithoutPending))
}
