package variadic

import (
	"testing"

	"github.com/AnatoleLucet/rset/change"
	"github.com/AnatoleLucet/rset/collection"
	"github.com/AnatoleLucet/rset/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnionConvergesAfterSourceMutations(t *testing.T) {
	a := collection.New(collection.WithValues(1, 2))
	b := collection.New(collection.WithValues(2, 3))

	u, err := NewUnion[int]([]Source[int]{a, b})
	require.NoError(t, err)
	assert.Equal(t, change.NewSet(1, 2, 3), u.Result().Values())

	require.NoError(t, a.Delete(1))
	assert.Equal(t, change.NewSet(2, 3), u.Result().Values())

	require.NoError(t, b.Delete(2))
	assert.Equal(t, change.NewSet(2, 3), u.Result().Values(), "still held by a")

	require.NoError(t, a.Delete(2))
	assert.Equal(t, change.NewSet(3), u.Result().Values())
}

func TestUnionDuplicateSourceRejected(t *testing.T) {
	a := collection.New[int]()
	_, err := NewUnion[int]([]Source[int]{a, a})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.DuplicateSource))
}

func TestUnionRegisterDuplicateRejected(t *testing.T) {
	a := collection.New[int]()
	u, err := NewUnion[int]([]Source[int]{a})
	require.NoError(t, err)

	err = u.Register(a)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.DuplicateSource))
}

func TestIntersectionConvergesAfterSourceMutations(t *testing.T) {
	a := collection.New(collection.WithValues(1, 2, 3))
	b := collection.New(collection.WithValues(2, 3, 4))

	it, err := NewIntersection[int]([]Source[int]{a, b})
	require.NoError(t, err)
	assert.Equal(t, change.NewSet(2, 3), it.Result().Values())

	require.NoError(t, a.Add(4))
	assert.Equal(t, change.NewSet(2, 3, 4), it.Result().Values())

	require.NoError(t, b.Delete(2))
	assert.Equal(t, change.NewSet(3, 4), it.Result().Values())
}

func TestIntersectionSingleSourceIsItself(t *testing.T) {
	a := collection.New(collection.WithValues(1, 2))
	it, err := NewIntersection[int]([]Source[int]{a})
	require.NoError(t, err)
	assert.Equal(t, change.NewSet(1, 2), it.Result().Values())
}

func TestIntersectionMountNewSourceShrinksResult(t *testing.T) {
	a := collection.New(collection.WithValues(1, 2, 3))
	it, err := NewIntersection[int]([]Source[int]{a})
	require.NoError(t, err)
	assert.Equal(t, change.NewSet(1, 2, 3), it.Result().Values())

	b := collection.New(collection.WithValues(2, 3))
	require.NoError(t, it.Register(b))
	assert.Equal(t, change.NewSet(2, 3), it.Result().Values())
}

func TestDifferenceRecoversWhenExcludedSourceShrinks(t *testing.T) {
	superset := collection.New(collection.WithValues(1, 2, 3))
	excluded := collection.New(collection.WithValues(2))

	d, err := NewDifference[int](superset, []Source[int]{excluded})
	require.NoError(t, err)
	assert.Equal(t, change.NewSet(1, 3), d.Result().Values())

	require.NoError(t, excluded.Add(1))
	assert.Equal(t, change.NewSet(3), d.Result().Values())

	require.NoError(t, excluded.Delete(1))
	assert.Equal(t, change.NewSet(1, 3), d.Result().Values(), "1 is restored once no longer excluded")
}

func TestDifferenceSupersetMutation(t *testing.T) {
	superset := collection.New(collection.WithValues(1, 2))
	excluded := collection.New[int]()

	d, err := NewDifference[int](superset, []Source[int]{excluded})
	require.NoError(t, err)
	assert.Equal(t, change.NewSet(1, 2), d.Result().Values())

	require.NoError(t, superset.Add(3))
	assert.Equal(t, change.NewSet(1, 2, 3), d.Result().Values())

	require.NoError(t, superset.Delete(1))
	assert.Equal(t, change.NewSet(2, 3), d.Result().Values())
}

func TestDifferenceDuplicateExcludedSourceRejected(t *testing.T) {
	superset := collection.New[int]()
	excluded := collection.New[int]()
	_, err := NewDifference[int](superset, []Source[int]{excluded, excluded})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.DuplicateSource))
}

func TestDifferenceSupersetAsOwnExcludedIsAllowed(t *testing.T) {
	superset := collection.New(collection.WithValues(1, 2))
	d, err := NewDifference[int](superset, []Source[int]{superset})
	require.NoError(t, err)
	assert.Equal(t, 0, d.Result().Len(), "every value is both included and excluded by itself")
}

func TestUnionCascadeFromCombinatorSource(t *testing.T) {
	a := collection.New(collection.WithValues(1, 2))
	b := collection.New(collection.WithValues(3))
	inner, err := NewUnion[int]([]Source[int]{a, b})
	require.NoError(t, err)

	c := collection.New(collection.WithValues(4))
	outer, err := NewUnion[int]([]Source[int]{inner.Result(), c})
	require.NoError(t, err)

	assert.Equal(t, change.NewSet(1, 2, 3, 4), outer.Result().Values())

	inner.Disable()
	assert.True(t, outer.Enabled(), "outer stays enabled: a combinator source disabling is not outer's own cascade")
	assert.Equal(t, change.NewSet(4), outer.Result().Values(), "disabled source stops contributing")

	inner.Enable()
	assert.True(t, outer.Enabled())
	assert.Equal(t, change.NewSet(1, 2, 3, 4), outer.Result().Values())
}
