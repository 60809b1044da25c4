package projection

import (
	"github.com/AnatoleLucet/rset/buffer"
	"github.com/AnatoleLucet/rset/change"
	"github.com/AnatoleLucet/rset/combination"
	"github.com/AnatoleLucet/rset/internal/xsignal"
)

// cascadeParentsFrom collects the subset of sources that are themselves
// combinations, for the engine's cascade (spec §4.5: "effectively
// enabled iff every parent combination is enabled").
func cascadeParentsFrom(sources ...any) []combination.Enableable {
	var parents []combination.Enableable
	for _, s := range sources {
		if p, ok := s.(combination.Enableable); ok {
			parents = append(parents, p)
		}
	}
	return parents
}

func relationValue[R any](ctx Context, name string) R {
	var zero R
	v, _ := ctx.Value(name).(*change.Value[R])
	if v == nil {
		return zero
	}
	return v.V
}

// NewSubsetViaCell projects superset elements through relation's current
// value into result elements. project reports whether u belongs in the
// result under relation, and what it maps to (spec §4.6).
func NewSubsetViaCell[T comparable, U comparable, R any](
	superset buffer.CollectionSource[U],
	relation buffer.CellSource[R],
	project func(u U, relation R) (T, bool),
	opts ...Option,
) *Engine[T] {
	supersetDep := NewCollectionDependency[T, U]("superset", superset, func(ctx Context, delta change.Delta[U]) (change.Input[T], error) {
		rel := relationValue[R](ctx, "relation")
		toAdd := change.NewSet[T]()
		toRemove := change.NewSet[T]()
		for u := range delta.Increment {
			if t, ok := project(u, rel); ok {
				toAdd.Add(t)
			}
		}
		for u := range delta.Decrement {
			if t, ok := project(u, rel); ok {
				toRemove.Add(t)
			}
		}
		return change.FromDelta(change.Delta[T]{Increment: toAdd, Decrement: toRemove}), nil
	})

	relationDep := NewCellDependency[T, R]("relation", relation, func(ctx Context, delta change.CellDelta[R]) (change.Input[T], error) {
		supersetSnap, _ := ctx.Value("superset").(change.Set[U])
		next := change.NewSet[T]()
		for u := range supersetSnap {
			if t, ok := project(u, delta.Increment.V); ok {
				next.Add(t)
			}
		}
		return change.FromOverwrite(change.Overwrite[T]{Values: next}), nil
	})

	return newEngine[T]([]dependency[T]{supersetDep, relationDep}, cascadeParentsFrom(superset, relation), opts)
}

// NewComplementViaCell is NewSubsetViaCell's complement: the result is
// superset minus whatever excluded reports as matched under the current
// relation value (spec §4.6).
func NewComplementViaCell[T comparable, R any](
	superset buffer.CollectionSource[T],
	relation buffer.CellSource[R],
	excluded func(t T, relation R) bool,
	opts ...Option,
) *Engine[T] {
	supersetDep := NewCollectionDependency[T, T]("superset", superset, func(ctx Context, delta change.Delta[T]) (change.Input[T], error) {
		rel := relationValue[R](ctx, "relation")
		toAdd := change.NewSet[T]()
		for t := range delta.Increment {
			if !excluded(t, rel) {
				toAdd.Add(t)
			}
		}
		return change.FromDelta(change.Delta[T]{Increment: toAdd, Decrement: delta.Decrement.Clone()}), nil
	})

	relationDep := NewCellDependency[T, R]("relation", relation, func(ctx Context, delta change.CellDelta[R]) (change.Input[T], error) {
		supersetSnap, _ := ctx.Value("superset").(change.Set[T])
		next := change.NewSet[T]()
		for t := range supersetSnap {
			if !excluded(t, delta.Increment.V) {
				next.Add(t)
			}
		}
		return change.FromOverwrite(change.Overwrite[T]{Values: next}), nil
	})

	return newEngine[T]([]dependency[T]{supersetDep, relationDep}, cascadeParentsFrom(superset, relation), opts)
}

// NewSubsetViaCollection is NewSubsetViaCell's collection-relation
// counterpart: t belongs in the result iff keyOf(t) is currently a
// member of relation (spec §4.6).
func NewSubsetViaCollection[T comparable, K comparable](
	superset buffer.CollectionSource[T],
	relation buffer.CollectionSource[K],
	keyOf func(t T) K,
	opts ...Option,
) *Engine[T] {
	supersetDep := NewCollectionDependency[T, T]("superset", superset, func(ctx Context, delta change.Delta[T]) (change.Input[T], error) {
		relationSnap, _ := ctx.Value("relation").(change.Set[K])
		toAdd := change.NewSet[T]()
		for t := range delta.Increment {
			if relationSnap.Has(keyOf(t)) {
				toAdd.Add(t)
			}
		}
		return change.FromDelta(change.Delta[T]{Increment: toAdd, Decrement: delta.Decrement.Clone()}), nil
	})

	relationDep := NewCollectionDependency[T, K]("relation", relation, func(ctx Context, delta change.Delta[K]) (change.Input[T], error) {
		supersetSnap, _ := ctx.Value("superset").(change.Set[T])
		toAdd := change.NewSet[T]()
		toRemove := change.NewSet[T]()
		for t := range supersetSnap {
			k := keyOf(t)
			if delta.Increment.Has(k) {
				toAdd.Add(t)
			}
			if delta.Decrement.Has(k) {
				toRemove.Add(t)
			}
		}
		return change.FromDelta(change.Delta[T]{Increment: toAdd, Decrement: toRemove}), nil
	})

	return newEngine[T]([]dependency[T]{supersetDep, relationDep}, cascadeParentsFrom(superset, relation), opts)
}

// NewComplementViaCollection is NewSubsetViaCollection's complement. It
// carries a one-shot initialization flag: the first relation delta seen
// after (re-)enabling is treated as a full re-projection (overwrite);
// subsequent relation deltas are processed incrementally. The flag
// resets whenever the engine disables (spec §4.6).
func NewComplementViaCollection[T comparable, K comparable](
	superset buffer.CollectionSource[T],
	relation buffer.CollectionSource[K],
	keyOf func(t T) K,
	opts ...Option,
) *Engine[T] {
	state := &struct{ initialized bool }{}

	supersetDep := NewCollectionDependency[T, T]("superset", superset, func(ctx Context, delta change.Delta[T]) (change.Input[T], error) {
		relationSnap, _ := ctx.Value("relation").(change.Set[K])
		toAdd := change.NewSet[T]()
		for t := range delta.Increment {
			if !relationSnap.Has(keyOf(t)) {
				toAdd.Add(t)
			}
		}
		return change.FromDelta(change.Delta[T]{Increment: toAdd, Decrement: delta.Decrement.Clone()}), nil
	})

	relationDep := NewCollectionDependency[T, K]("relation", relation, func(ctx Context, delta change.Delta[K]) (change.Input[T], error) {
		supersetSnap, _ := ctx.Value("superset").(change.Set[T])
		relationSnap, _ := ctx.Value("relation").(change.Set[K])

		if !state.initialized {
			state.initialized = true
			next := change.NewSet[T]()
			for t := range supersetSnap {
				if !relationSnap.Has(keyOf(t)) {
					next.Add(t)
				}
			}
			return change.FromOverwrite(change.Overwrite[T]{Values: next}), nil
		}

		toAdd := change.NewSet[T]()
		toRemove := change.NewSet[T]()
		for t := range supersetSnap {
			k := keyOf(t)
			if delta.Increment.Has(k) {
				toRemove.Add(t)
			}
			if delta.Decrement.Has(k) {
				toAdd.Add(t)
			}
		}
		return change.FromDelta(change.Delta[T]{Increment: toAdd, Decrement: toRemove}), nil
	})

	e := newEngine[T]([]dependency[T]{supersetDep, relationDep}, cascadeParentsFrom(superset, relation), opts)
	e.OnSwitch().Subscribe(xsignal.Func(func(enabled bool) {
		if !enabled {
			state.initialized = false
		}
	}))
	return e
}

// MapResolver transforms a single collection dependency's committed
// delta directly into the output's delta, with no context (spec §4.6's
// "mapped set").
type MapResolver[T comparable, U comparable] func(delta change.Delta[U]) (change.Input[T], error)

// NewMappedSet builds a projection with exactly one dependency and no
// context.
func NewMappedSet[T comparable, U comparable](
	source buffer.CollectionSource[U],
	resolver MapResolver[T, U],
	opts ...Option,
) *Engine[T] {
	dep := NewCollectionDependency[T, U]("source", source, func(_ Context, delta change.Delta[U]) (change.Input[T], error) {
		return resolver(delta)
	})
	return newEngine[T]([]dependency[T]{dep}, cascadeParentsFrom(source), opts)
}
