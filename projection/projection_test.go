package projection

import (
	"errors"
	"testing"

	"github.com/AnatoleLucet/rset/cell"
	"github.com/AnatoleLucet/rset/change"
	"github.com/AnatoleLucet/rset/collection"
	"github.com/AnatoleLucet/rset/variadic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isEven(n int) bool { return n%2 == 0 }

func TestSubsetViaCellFiltersByMode(t *testing.T) {
	all := collection.New(collection.WithValues(1, 2, 3, 4, 5, 6))
	mode := cell.New("even")

	project := func(n int, m string) (int, bool) {
		if m == "even" {
			return n, isEven(n)
		}
		return n, !isEven(n)
	}

	e := NewSubsetViaCell[int, int, string](all, mode, project)
	assert.Equal(t, change.NewSet(2, 4, 6), e.Result().Values())

	require.NoError(t, mode.Set("odd"))
	assert.Equal(t, change.NewSet(1, 3, 5), e.Result().Values())
}

func TestComplementViaCellIsSupersetMinusProjection(t *testing.T) {
	all := collection.New(collection.WithValues(1, 2, 3, 4, 5, 6))
	mode := cell.New("even")

	isOddUnderMode := func(n int, m string) bool {
		if m == "even" {
			return isEven(n)
		}
		return !isEven(n)
	}

	e := NewComplementViaCell[int, string](all, mode, isOddUnderMode)
	assert.Equal(t, change.NewSet(1, 3, 5), e.Result().Values())

	require.NoError(t, all.Add(8)) // even, so excluded under mode "even"
	assert.Equal(t, change.NewSet(1, 3, 5), e.Result().Values())
}

func TestSubsetViaCollectionFollowsRelationMembership(t *testing.T) {
	type item struct {
		id  int
		tag string
	}
	items := collection.New(collection.WithValues(
		item{1, "a"}, item{2, "b"}, item{3, "a"},
	))
	tags := collection.New(collection.WithValues("a"))

	e := NewSubsetViaCollection[item, string](items, tags, func(it item) string { return it.tag })
	assert.Equal(t, change.NewSet(item{1, "a"}, item{3, "a"}), e.Result().Values())

	require.NoError(t, tags.Add("b"))
	assert.Equal(t, change.NewSet(item{1, "a"}, item{2, "b"}, item{3, "a"}), e.Result().Values())

	require.NoError(t, tags.Delete("a"))
	assert.Equal(t, change.NewSet(item{2, "b"}), e.Result().Values())
}

func TestComplementViaCollectionOneShotInitThenIncremental(t *testing.T) {
	items := collection.New(collection.WithValues(1, 2, 3, 4))
	excludedKeys := collection.New(collection.WithValues(2))

	e := NewComplementViaCollection[int, int](items, excludedKeys, func(n int) int { return n })
	assert.Equal(t, change.NewSet(1, 3, 4), e.Result().Values())

	require.NoError(t, excludedKeys.Add(3))
	assert.Equal(t, change.NewSet(1, 4), e.Result().Values())

	require.NoError(t, excludedKeys.Delete(2))
	assert.Equal(t, change.NewSet(1, 2, 4), e.Result().Values())
}

func TestMappedSetTransformsEachDelta(t *testing.T) {
	src := collection.New(collection.WithValues(1, 2, 3))
	double := func(d change.Delta[int]) (change.Input[int], error) {
		incr := change.NewSet[int]()
		for v := range d.Increment {
			incr.Add(v * 2)
		}
		decr := change.NewSet[int]()
		for v := range d.Decrement {
			decr.Add(v * 2)
		}
		return change.FromDelta(change.Delta[int]{Increment: incr, Decrement: decr}), nil
	}

	e := NewMappedSet[int, int](src, double)
	assert.Equal(t, change.NewSet(2, 4, 6), e.Result().Values())

	require.NoError(t, src.Add(4))
	assert.Equal(t, change.NewSet(2, 4, 6, 8), e.Result().Values())
}

func TestCascadeDisableFromCombinatorSuperset(t *testing.T) {
	a := collection.New(collection.WithValues(1, 2, 3))
	b := collection.New(collection.WithValues(2, 3, 4))
	p, err := variadic.NewIntersection[int]([]variadic.Source[int]{a, b})
	require.NoError(t, err)
	assert.Equal(t, change.NewSet(2, 3), p.Result().Values())

	relation := cell.New("keep-all")
	keepAll := func(n int, mode string) (int, bool) { return n, true }

	q := NewSubsetViaCell[int, int, string](p.Result(), relation, keepAll)
	assert.True(t, q.Enabled())
	assert.Equal(t, change.NewSet(2, 3), q.Result().Values())

	p.Disable()
	assert.False(t, q.Enabled(), "q is gated by its disabled superset")
	assert.Equal(t, 0, q.Result().Len())

	p.Enable()
	assert.True(t, q.Enabled())
	assert.Equal(t, change.NewSet(2, 3), q.Result().Values(), "q re-initializes to the current intersection")
}

func TestResolverFailureQuarantinesEngine(t *testing.T) {
	src := collection.New[int]()
	calls := 0
	boom := errors.New("boom")

	resolver := func(d change.Delta[int]) (change.Input[int], error) {
		calls++
		if calls == 3 {
			return change.Input[int]{}, boom
		}
		return change.FromDelta(d), nil
	}

	e := NewMappedSet[int, int](src, resolver)

	require.NoError(t, src.Add(1))
	require.NoError(t, src.Add(2))
	assert.True(t, e.Enabled())

	require.NoError(t, src.Add(3))
	assert.False(t, e.Enabled(), "engine disables itself after the resolver fails")

	callsBefore := calls
	require.NoError(t, src.Add(4))
	assert.Equal(t, callsBefore, calls, "no further resolver calls until re-enabled")
}
