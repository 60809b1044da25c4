package variadic

import (
	"github.com/AnatoleLucet/rset/change"
	"github.com/AnatoleLucet/rset/combination"
	"github.com/AnatoleLucet/rset/errs"
	"github.com/AnatoleLucet/rset/internal/xsignal"
)

// Intersection is v ∈ result iff occ[v] equals the number of currently
// included sources (spec §4.4) — dropping or adding a required source
// can only shrink or grow the result, never both at once.
type Intersection[T comparable] struct {
	*combination.Base[T]
	sources []*sourceEntry[T]
	occ     occMap[T]
}

// NewIntersection builds an Intersection over sources.
func NewIntersection[T comparable](sources []Source[T], opts ...Option) (*Intersection[T], error) {
	cfg := newConfig(opts)
	it := &Intersection[T]{occ: occMap[T]{}}

	for _, s := range sources {
		if isRegistered(it.sources, s) {
			return nil, errs.New(errs.DuplicateSource, "variadic.NewIntersection")
		}
		it.sources = append(it.sources, &sourceEntry[T]{src: s})
	}

	// parents is nil for the same reason as variadic.Union: a source's
	// enabled state only gates that source's own inclusion in occ, not the
	// intersection's overall Enabled().
	// Built disabled, then enabled once it.Base is assigned (see NewUnion).
	it.Base = combination.New[T](cfg.label, false, nil, it.mountAll, it.unmountAll)
	if cfg.enabled {
		it.Enable()
	}
	return it, nil
}

// Register adds a new source after construction.
func (it *Intersection[T]) Register(src Source[T]) error {
	if isRegistered(it.sources, src) {
		return errs.New(errs.DuplicateSource, "variadic.Intersection.Register")
	}
	e := &sourceEntry[T]{src: src}
	it.sources = append(it.sources, e)
	if it.Enabled() {
		it.mountEntry(e)
	}
	return nil
}

func (it *Intersection[T]) includedCount() int {
	n := 0
	for _, e := range it.sources {
		if e.included {
			n++
		}
	}
	return n
}

func (it *Intersection[T]) mountAll() {
	for _, e := range it.sources {
		it.mountEntry(e)
	}
}

func (it *Intersection[T]) mountEntry(e *sourceEntry[T]) {
	e.cancelChange = e.src.OnChange().Subscribe(xsignal.Func(func(d change.Delta[T]) {
		if e.included {
			it.onDelta(e, d)
		}
	}))
	if ls, ok := e.src.(combination.Enableable); ok {
		e.cancelSwitch = ls.OnSwitch().Subscribe(xsignal.Func(func(enabledNow bool) {
			if enabledNow {
				it.mountOne(e)
			} else {
				it.unmountOne(e)
			}
		}))
		if !ls.Enabled() {
			return
		}
	}
	it.mountOne(e)
}

// mountOne folds a newly-included source's values into occ. Since
// requiring one more source can only shrink the result, the new result
// is: on the very first source, exactly its values; otherwise the
// current result intersected with the new source's values.
func (it *Intersection[T]) mountOne(e *sourceEntry[T]) {
	values := e.src.Values()
	e.lastValues = values.Clone()
	for v := range values {
		it.occ.inc(v)
	}
	wasEmpty := it.includedCount() == 0
	e.included = true

	var next change.Set[T]
	if wasEmpty {
		next = values.Clone()
	} else {
		next = it.Storage().Values().Intersect(values)
	}
	_ = it.Storage().Overwrite(next)
}

// unmountOne removes a source's contribution from occ. Dropping a
// required source can only grow the result, so the new result is
// recomputed as every value whose remaining occurrence count matches
// the new (smaller) number of included sources.
func (it *Intersection[T]) unmountOne(e *sourceEntry[T]) {
	for v := range e.lastValues {
		it.occ.dec(v)
	}
	e.included = false
	e.lastValues = nil

	newN := it.includedCount()
	next := change.NewSet[T]()
	if newN > 0 {
		for v, n := range it.occ {
			if n == uint32(newN) {
				next.Add(v)
			}
		}
	}
	_ = it.Storage().Overwrite(next)
}

func (it *Intersection[T]) onDelta(e *sourceEntry[T], d change.Delta[T]) {
	n := uint32(it.includedCount())
	toAdd := change.NewSet[T]()
	toRemove := change.NewSet[T]()

	for v := range d.Decrement {
		e.lastValues.Delete(v)
		before := it.occ.get(v)
		it.occ.dec(v)
		if before == n {
			toRemove.Add(v)
		}
	}
	for v := range d.Increment {
		e.lastValues.Add(v)
		it.occ.inc(v)
		if it.occ.get(v) == n {
			toAdd.Add(v)
		}
	}

	if toAdd.Len() == 0 && toRemove.Len() == 0 {
		return
	}
	_ = it.Storage().ApplyChanges(change.FromDelta(change.Delta[T]{Increment: toAdd, Decrement: toRemove}))
}

func (it *Intersection[T]) unmountAll() {
	for _, e := range it.sources {
		if e.cancelChange != nil {
			e.cancelChange()
		}
		if e.cancelSwitch != nil {
			e.cancelSwitch()
		}
		e.included = false
		e.lastValues = nil
	}
	it.occ = occMap[T]{}
}
