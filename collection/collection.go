// Package collection implements the reactive Collection described in
// spec §3/§4.2: a set container with granular, batch, overwrite, and
// transactional mutation, plus the read-only facade combinators hand to
// external observers (§4.3's "read-only from the outside").
package collection

import (
	"github.com/AnatoleLucet/rset/change"
	"github.com/AnatoleLucet/rset/errs"
	"github.com/AnatoleLucet/rset/internal/gid"
	"github.com/AnatoleLucet/rset/internal/xsignal"
)

// Collection owns a set of T and two transaction buffers (pending
// additions, pending removals).
type Collection[T comparable] struct {
	affinity gid.Affinity

	set change.Set[T]

	txOpen         bool
	pendingAdded   change.Set[T]
	pendingRemoved change.Set[T]

	disabled bool
	label    string

	changed *xsignal.Controller[change.Delta[T]]
	switchC *xsignal.Controller[bool]
}

// Option configures a Collection at construction.
type Option[T comparable] func(*Collection[T])

// WithLabel attaches a debug label, surfaced in error/log messages.
func WithLabel[T comparable](label string) Option[T] {
	return func(c *Collection[T]) { c.label = label }
}

// WithValues seeds the initial contents.
func WithValues[T comparable](vs ...T) Option[T] {
	return func(c *Collection[T]) { c.set = change.NewSet(vs...) }
}

// New creates an empty (or seeded, via WithValues) Collection.
func New[T comparable](opts ...Option[T]) *Collection[T] {
	c := &Collection[T]{
		set:     change.NewSet[T](),
		changed: xsignal.NewController[change.Delta[T]](),
		switchC: xsignal.NewController[bool](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Collection[T]) op(name string) string {
	if c.label != "" {
		return "collection(" + c.label + ")." + name
	}
	return "collection." + name
}

// Values returns a frozen snapshot of the current contents.
func (c *Collection[T]) Values() change.Set[T] { return c.set.Clone() }

// Has reports membership in the committed state.
func (c *Collection[T]) Has(v T) bool { return c.set.Has(v) }

// Len returns the number of committed elements.
func (c *Collection[T]) Len() int { return c.set.Len() }

// Label returns the debug label, or "" if none was set.
func (c *Collection[T]) Label() string { return c.label }

// Disabled reports whether reactivity has been turned off.
func (c *Collection[T]) Disabled() bool { return c.disabled }

// OnChange returns the subscribe surface for committed deltas.
func (c *Collection[T]) OnChange() *xsignal.View[change.Delta[T]] { return c.changed.View() }

// OnSwitch returns the subscribe surface for reactivity on/off transitions.
func (c *Collection[T]) OnSwitch() *xsignal.View[bool] { return c.switchC.View() }

func (c *Collection[T]) guard(name string) error {
	if c.disabled {
		return errs.New(errs.ReactivityDisabled, c.op(name))
	}
	if !c.affinity.Check() {
		return errs.New(errs.ReactivityDisabled, c.op(name)+": called from a different goroutine than the one that last mutated this collection")
	}
	c.affinity.Bind()
	return nil
}

func (c *Collection[T]) ensureBuffers() {
	if c.pendingAdded == nil {
		c.pendingAdded = change.NewSet[T]()
	}
	if c.pendingRemoved == nil {
		c.pendingRemoved = change.NewSet[T]()
	}
}

// Add stages or applies a single-element addition, emitting immediately
// unless a transaction is open.
func (c *Collection[T]) Add(v T) error {
	if err := c.guard("Add"); err != nil {
		return err
	}
	return c.applyDelta(change.Delta[T]{Increment: change.NewSet(v)})
}

// Delete stages or applies a single-element removal.
func (c *Collection[T]) Delete(v T) error {
	if err := c.guard("Delete"); err != nil {
		return err
	}
	return c.applyDelta(change.Delta[T]{Decrement: change.NewSet(v)})
}

// Clear removes every current element.
func (c *Collection[T]) Clear() error {
	if err := c.guard("Clear"); err != nil {
		return err
	}
	if c.txOpen {
		c.ensureBuffers()
		c.pendingRemoved = c.set.Clone()
		c.pendingAdded = change.NewSet[T]()
		return nil
	}
	return c.closeOver(func() {
		c.ensureBuffers()
		c.pendingRemoved = c.set.Clone()
	})
}

// BatchAdd adds every element of vs, producing at most one delta.
func (c *Collection[T]) BatchAdd(vs change.Set[T]) error {
	if err := c.guard("BatchAdd"); err != nil {
		return err
	}
	return c.applyDelta(change.Delta[T]{Increment: vs.Clone()})
}

// BatchDelete removes every element of vs, producing at most one delta.
func (c *Collection[T]) BatchDelete(vs change.Set[T]) error {
	if err := c.guard("BatchDelete"); err != nil {
		return err
	}
	return c.applyDelta(change.Delta[T]{Decrement: vs.Clone()})
}

// Overwrite replaces the contents with exactly vs.
func (c *Collection[T]) Overwrite(vs change.Set[T]) error {
	if err := c.guard("Overwrite"); err != nil {
		return err
	}
	next := vs.Clone()
	if c.txOpen {
		c.ensureBuffers()
		c.pendingAdded = next
		c.pendingRemoved = c.set.Diff(next)
		return nil
	}
	return c.closeOver(func() {
		c.ensureBuffers()
		c.pendingAdded = next
		c.pendingRemoved = c.set.Diff(next)
	})
}

// ApplyChanges routes an incremental Delta or a full Overwrite through an
// open/close transaction so a single delta is emitted (§4.2).
func (c *Collection[T]) ApplyChanges(in change.Input[T]) error {
	if err := c.guard("ApplyChanges"); err != nil {
		return err
	}

	switch {
	case in.Overwrite != nil:
		return c.Overwrite(in.Overwrite.Values)
	case in.Delta != nil:
		if in.Delta.Overlaps() {
			return errs.New(errs.ReadonlyAccess, c.op("ApplyChanges")+": increment and decrement overlap")
		}
		wasOpen := c.txOpen
		if !wasOpen {
			if err := c.OpenTransaction(); err != nil {
				return err
			}
		}
		c.ensureBuffers()
		c.pendingAdded = c.pendingAdded.Union(in.Delta.Increment).Diff(in.Delta.Decrement)
		c.pendingRemoved = c.pendingRemoved.Union(in.Delta.Decrement).Diff(in.Delta.Increment)
		if !wasOpen {
			return c.CloseTransaction()
		}
		return nil
	default:
		return nil
	}
}

// applyDelta stages incr/decr into the buffers, then closes immediately
// unless already inside a caller-managed transaction.
func (c *Collection[T]) applyDelta(d change.Delta[T]) error {
	c.ensureBuffers()
	c.pendingAdded = c.pendingAdded.Union(d.Increment).Diff(d.Decrement)
	c.pendingRemoved = c.pendingRemoved.Union(d.Decrement).Diff(d.Increment)

	if c.txOpen {
		return nil
	}
	return c.closeOver(func() {})
}

// OpenTransaction stages subsequent mutations in a separate buffer. A
// re-entrant call is a no-op.
func (c *Collection[T]) OpenTransaction() error {
	if err := c.guard("OpenTransaction"); err != nil {
		return err
	}
	if c.txOpen {
		return nil
	}
	c.txOpen = true
	c.ensureBuffers()
	return nil
}

// CloseTransaction computes the net effect against the committed state
// and emits a single delta iff non-empty (§4.2).
func (c *Collection[T]) CloseTransaction() error {
	if err := c.guard("CloseTransaction"); err != nil {
		return err
	}
	if !c.txOpen {
		return nil
	}
	c.txOpen = false
	return c.commit()
}

func (c *Collection[T]) closeOver(stage func()) error {
	wasOpen := c.txOpen
	c.txOpen = true
	stage()
	c.txOpen = wasOpen
	if wasOpen {
		return nil
	}
	return c.commit()
}

func (c *Collection[T]) commit() error {
	c.ensureBuffers()
	incr := c.pendingAdded.Diff(c.set)
	decr := c.pendingRemoved.Intersect(c.set)

	c.pendingAdded = change.NewSet[T]()
	c.pendingRemoved = change.NewSet[T]()

	for v := range incr {
		c.set.Add(v)
	}
	for v := range decr {
		c.set.Delete(v)
	}

	if incr.Len() == 0 && decr.Len() == 0 {
		return nil
	}

	d := change.Delta[T]{}
	if incr.Len() > 0 {
		d.Increment = incr
	}
	if decr.Len() > 0 {
		d.Decrement = decr
	}
	c.changed.Activate(d)
	return nil
}

// CancelTransaction discards both buffers without emitting.
func (c *Collection[T]) CancelTransaction() error {
	if !c.txOpen {
		return nil
	}
	c.txOpen = false
	c.pendingAdded = change.NewSet[T]()
	c.pendingRemoved = change.NewSet[T]()
	return nil
}

// DisableReactivity marks the collection immutable, cancels any open
// transaction, and silently clears storage. It is privileged: intended
// for use by the combination that owns this collection as its result
// storage, not by arbitrary callers.
func (c *Collection[T]) DisableReactivity() {
	if c.disabled {
		return
	}
	c.disabled = true
	_ = c.CancelTransaction()
	c.set = change.NewSet[T]()
	c.affinity.Release()
	c.switchC.Activate(false)
}

// EnableReactivity restores mutability (restoring, not inverting, per
// §9's open question about the reference implementation's apparent typo).
func (c *Collection[T]) EnableReactivity() {
	if !c.disabled {
		return
	}
	c.disabled = false
	c.switchC.Activate(true)
}
