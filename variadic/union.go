package variadic

import (
	"github.com/AnatoleLucet/rset/change"
	"github.com/AnatoleLucet/rset/combination"
	"github.com/AnatoleLucet/rset/errs"
	"github.com/AnatoleLucet/rset/internal/xsignal"
)

// Union is v ∈ result iff occ[v] ≥ 1 across every currently-included
// source (spec §4.4).
type Union[T comparable] struct {
	*combination.Base[T]
	sources []*sourceEntry[T]
	occ     occMap[T]
}

// NewUnion builds a Union over sources. Registering the same source
// object twice is a hard error.
func NewUnion[T comparable](sources []Source[T], opts ...Option) (*Union[T], error) {
	cfg := newConfig(opts)
	u := &Union[T]{occ: occMap[T]{}}

	for _, s := range sources {
		if isRegistered(u.sources, s) {
			return nil, errs.New(errs.DuplicateSource, "variadic.NewUnion")
		}
		u.sources = append(u.sources, &sourceEntry[T]{src: s})
	}

	// parents is nil: a source being a combination only gates that one
	// source's inclusion in occ (handled below, per-entry, via its
	// OnSwitch), never the union's own Enabled() (spec §4.4 — dropping one
	// source must shrink the result, not disable the whole union).
	// The Base starts disabled and is enabled once u.Base is assigned, so
	// mountAll never runs against a nil Base.
	u.Base = combination.New[T](cfg.label, false, nil, u.mountAll, u.unmountAll)
	if cfg.enabled {
		u.Enable()
	}
	return u, nil
}

// Register adds a new source after construction. It fails if the source
// is already registered (spec §4.4 tie-break). If the union is currently
// active, the source is mounted immediately.
func (u *Union[T]) Register(src Source[T]) error {
	if isRegistered(u.sources, src) {
		return errs.New(errs.DuplicateSource, "variadic.Union.Register")
	}
	e := &sourceEntry[T]{src: src}
	u.sources = append(u.sources, e)
	if u.Enabled() {
		u.mountEntry(e)
	}
	return nil
}

func (u *Union[T]) mountAll() {
	for _, e := range u.sources {
		u.mountEntry(e)
	}
}

func (u *Union[T]) mountEntry(e *sourceEntry[T]) {
	e.cancelChange = e.src.OnChange().Subscribe(xsignal.Func(func(d change.Delta[T]) {
		if e.included {
			u.onDelta(e, d)
		}
	}))
	if ls, ok := e.src.(combination.Enableable); ok {
		e.cancelSwitch = ls.OnSwitch().Subscribe(xsignal.Func(func(enabledNow bool) {
			if enabledNow {
				u.mountOne(e)
			} else {
				u.unmountOne(e)
			}
		}))
		if !ls.Enabled() {
			return
		}
	}
	u.mountOne(e)
}

// mountOne folds src's current contents into occ, emitting an increment
// for every value transitioning 0 -> 1.
func (u *Union[T]) mountOne(e *sourceEntry[T]) {
	values := e.src.Values()
	e.lastValues = values.Clone()
	toAdd := change.NewSet[T]()
	for v := range values {
		if u.occ.get(v) == 0 {
			toAdd.Add(v)
		}
		u.occ.inc(v)
	}
	e.included = true
	if toAdd.Len() > 0 {
		_ = u.Storage().BatchAdd(toAdd)
	}
}

// unmountOne removes src's last-known contribution from occ, emitting a
// decrement for every value transitioning 1 -> 0.
func (u *Union[T]) unmountOne(e *sourceEntry[T]) {
	toRemove := change.NewSet[T]()
	for v := range e.lastValues {
		if u.occ.dec(v) == 0 {
			toRemove.Add(v)
		}
	}
	e.included = false
	e.lastValues = nil
	if toRemove.Len() > 0 {
		_ = u.Storage().BatchDelete(toRemove)
	}
}

func (u *Union[T]) onDelta(e *sourceEntry[T], d change.Delta[T]) {
	toAdd := change.NewSet[T]()
	toRemove := change.NewSet[T]()

	for v := range d.Decrement {
		e.lastValues.Delete(v)
		if u.occ.dec(v) == 0 {
			toRemove.Add(v)
		}
	}
	for v := range d.Increment {
		e.lastValues.Add(v)
		if u.occ.get(v) == 0 {
			toAdd.Add(v)
		}
		u.occ.inc(v)
	}

	if toAdd.Len() == 0 && toRemove.Len() == 0 {
		return
	}
	_ = u.Storage().ApplyChanges(change.FromDelta(change.Delta[T]{Increment: toAdd, Decrement: toRemove}))
}

func (u *Union[T]) unmountAll() {
	for _, e := range u.sources {
		if e.cancelChange != nil {
			e.cancelChange()
		}
		if e.cancelSwitch != nil {
			e.cancelSwitch()
		}
		e.included = false
		e.lastValues = nil
	}
	u.occ = occMap[T]{}
}
