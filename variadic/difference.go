package variadic

import (
	"github.com/AnatoleLucet/rset/change"
	"github.com/AnatoleLucet/rset/combination"
	"github.com/AnatoleLucet/rset/errs"
	"github.com/AnatoleLucet/rset/internal/xsignal"
	"github.com/sirupsen/logrus"
)

// Difference is v ∈ result iff v ∈ superset and v is not contributed by
// any currently included excluded source (spec §4.4).
type Difference[T comparable] struct {
	*combination.Base[T]

	superset *sourceEntry[T]
	excluded []*sourceEntry[T]

	// occ counts, per value, how many included excluded sources contain
	// it. excludedSet mirrors {v : occ[v] >= 1} incrementally.
	occ         occMap[T]
	excludedSet change.Set[T]

	log logrus.FieldLogger
}

// NewDifference builds a Difference of superset minus the union of
// excluded. Registering the same excluded source twice is a hard error;
// listing superset itself among excluded is allowed but logged, since it
// trivially makes the result always empty while superset is populated.
func NewDifference[T comparable](superset Source[T], excludedSources []Source[T], opts ...Option) (*Difference[T], error) {
	cfg := newConfig(opts)
	d := &Difference[T]{
		occ:         occMap[T]{},
		excludedSet: change.NewSet[T](),
		log:         logrus.WithField("component", "variadic.Difference"),
	}
	if cfg.label != "" {
		d.log = logrus.WithField("component", "variadic.Difference("+cfg.label+")")
	}

	d.superset = &sourceEntry[T]{src: superset}

	for _, s := range excludedSources {
		if isRegistered(d.excluded, s) {
			return nil, errs.New(errs.DuplicateSource, "variadic.NewDifference")
		}
		if s == superset {
			d.log.Warn("superset registered as its own excluded source; result will stay empty while superset is non-empty")
		}
		d.excluded = append(d.excluded, &sourceEntry[T]{src: s})
	}

	// parents is nil for the same reason as variadic.Union/Intersection: a
	// source's own enabled state only gates that source's contribution
	// (superset or excluded), not the difference's overall Enabled().
	// Built disabled, then enabled once d.Base is assigned (see NewUnion).
	d.Base = combination.New[T](cfg.label, false, nil, d.mountAll, d.unmountAll)
	if cfg.enabled {
		d.Enable()
	}
	return d, nil
}

func (d *Difference[T]) mountAll() {
	d.mountSupersetEntry()
	for _, e := range d.excluded {
		d.mountExcludedEntry(e)
	}
}

func (d *Difference[T]) mountSupersetEntry() {
	e := d.superset
	e.cancelChange = e.src.OnChange().Subscribe(xsignal.Func(func(delta change.Delta[T]) {
		if e.included {
			d.onSupersetDelta(delta)
		}
	}))
	if ls, ok := e.src.(combination.Enableable); ok {
		e.cancelSwitch = ls.OnSwitch().Subscribe(xsignal.Func(func(enabledNow bool) {
			if enabledNow {
				d.mountSuperset()
			} else {
				d.unmountSuperset()
			}
		}))
		if !ls.Enabled() {
			return
		}
	}
	d.mountSuperset()
}

func (d *Difference[T]) mountSuperset() {
	values := d.superset.src.Values()
	d.superset.lastValues = values.Clone()
	d.superset.included = true
	_ = d.Storage().Overwrite(values.Diff(d.excludedSet))
}

func (d *Difference[T]) unmountSuperset() {
	d.superset.included = false
	d.superset.lastValues = nil
	_ = d.Storage().Clear()
}

func (d *Difference[T]) onSupersetDelta(delta change.Delta[T]) {
	toAdd := change.NewSet[T]()
	toRemove := change.NewSet[T]()

	for v := range delta.Decrement {
		d.superset.lastValues.Delete(v)
		toRemove.Add(v)
	}
	for v := range delta.Increment {
		d.superset.lastValues.Add(v)
		if !d.excludedSet.Has(v) {
			toAdd.Add(v)
		}
	}

	if toAdd.Len() == 0 && toRemove.Len() == 0 {
		return
	}
	_ = d.Storage().ApplyChanges(change.FromDelta(change.Delta[T]{Increment: toAdd, Decrement: toRemove}))
}

func (d *Difference[T]) mountExcludedEntry(e *sourceEntry[T]) {
	e.cancelChange = e.src.OnChange().Subscribe(xsignal.Func(func(delta change.Delta[T]) {
		if e.included {
			d.onExcludedDelta(e, delta)
		}
	}))
	if ls, ok := e.src.(combination.Enableable); ok {
		e.cancelSwitch = ls.OnSwitch().Subscribe(xsignal.Func(func(enabledNow bool) {
			if enabledNow {
				d.mountExcluded(e)
			} else {
				d.unmountExcluded(e)
			}
		}))
		if !ls.Enabled() {
			return
		}
	}
	d.mountExcluded(e)
}

// mountExcluded folds a newly-included excluded source's values into
// occ/excludedSet, removing from result every value that transitions
// into the excluded set and is currently present in superset's content.
func (d *Difference[T]) mountExcluded(e *sourceEntry[T]) {
	values := e.src.Values()
	e.lastValues = values.Clone()
	toRemove := change.NewSet[T]()
	for v := range values {
		if d.occ.get(v) == 0 {
			d.excludedSet.Add(v)
			if d.superset.included && d.superset.lastValues.Has(v) {
				toRemove.Add(v)
			}
		}
		d.occ.inc(v)
	}
	e.included = true
	if toRemove.Len() > 0 {
		_ = d.Storage().BatchDelete(toRemove)
	}
}

// unmountExcluded removes a source's contribution; values that drop out
// of excludedSet are restored to the result if still present in
// superset.
func (d *Difference[T]) unmountExcluded(e *sourceEntry[T]) {
	toAdd := change.NewSet[T]()
	for v := range e.lastValues {
		if d.occ.dec(v) == 0 {
			d.excludedSet.Delete(v)
			if d.superset.included && d.superset.lastValues.Has(v) {
				toAdd.Add(v)
			}
		}
	}
	e.included = false
	e.lastValues = nil
	if toAdd.Len() > 0 {
		_ = d.Storage().BatchAdd(toAdd)
	}
}

func (d *Difference[T]) onExcludedDelta(e *sourceEntry[T], delta change.Delta[T]) {
	toAdd := change.NewSet[T]()
	toRemove := change.NewSet[T]()

	for v := range delta.Decrement {
		e.lastValues.Delete(v)
		if d.occ.dec(v) == 0 {
			d.excludedSet.Delete(v)
			if d.superset.included && d.superset.lastValues.Has(v) {
				toAdd.Add(v)
			}
		}
	}
	for v := range delta.Increment {
		e.lastValues.Add(v)
		if d.occ.get(v) == 0 {
			d.excludedSet.Add(v)
			if d.superset.included && d.superset.lastValues.Has(v) {
				toRemove.Add(v)
			}
		}
		d.occ.inc(v)
	}

	if toAdd.Len() == 0 && toRemove.Len() == 0 {
		return
	}
	_ = d.Storage().ApplyChanges(change.FromDelta(change.Delta[T]{Increment: toAdd, Decrement: toRemove}))
}

func (d *Difference[T]) unmountAll() {
	if d.superset.cancelChange != nil {
		d.superset.cancelChange()
	}
	if d.superset.cancelSwitch != nil {
		d.superset.cancelSwitch()
	}
	d.superset.included = false
	d.superset.lastValues = nil

	for _, e := range d.excluded {
		if e.cancelChange != nil {
			e.cancelChange()
		}
		if e.cancelSwitch != nil {
			e.cancelSwitch()
		}
		e.included = false
		e.lastValues = nil
	}
	d.occ = occMap[T]{}
	d.excludedSet = change.NewSet[T]()
}
