// Package cell implements the reactive Cell described in spec §3/§4.1: a
// single-value container with a transaction buffer and a structural
// equality gate.
package cell

import (
	"reflect"

	"github.com/AnatoleLucet/rset/change"
	"github.com/AnatoleLucet/rset/errs"
	"github.com/AnatoleLucet/rset/internal/gid"
	"github.com/AnatoleLucet/rset/internal/xsignal"
)

// Cell owns one value of type T and a transaction buffer (spec §3).
type Cell[T any] struct {
	affinity gid.Affinity

	value T

	txOpen  bool
	txValue T

	equal func(a, b T) bool

	disabled bool

	label string

	changed *xsignal.Controller[change.CellDelta[T]]
	switchC *xsignal.Controller[bool]
}

// Option configures a Cell at construction.
type Option[T any] func(*Cell[T])

// WithLabel attaches a debug label, surfaced in error/log messages.
func WithLabel[T any](label string) Option[T] {
	return func(c *Cell[T]) { c.label = label }
}

// WithEqual overrides the equality gate, which defaults to
// reflect.DeepEqual (spec §3: "equality uses structural equality"). Use
// this when T is large or reference-comparable and a deep compare would
// be wasted work — the same escape hatch other_examples' germtb-goli
// signals package gives via CreateSignalWithEquals.
func WithEqual[T any](equal func(a, b T) bool) Option[T] {
	return func(c *Cell[T]) { c.equal = equal }
}

// New creates a Cell holding the given initial value.
func New[T any](initial T, opts ...Option[T]) *Cell[T] {
	c := &Cell[T]{
		value:   initial,
		equal:   reflect.DeepEqual,
		changed: xsignal.NewController[change.CellDelta[T]](),
		switchC: xsignal.NewController[bool](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cell[T]) op(name string) string {
	if c.label != "" {
		return "cell(" + c.label + ")." + name
	}
	return "cell." + name
}

// Value returns the current committed value. While a transaction is
// open, this is unaffected by staged writes (spec §4.1).
func (c *Cell[T]) Value() T { return c.value }

// Label returns the debug label, or "" if none was set.
func (c *Cell[T]) Label() string { return c.label }

// Disabled reports whether reactivity has been turned off.
func (c *Cell[T]) Disabled() bool { return c.disabled }

// OnChange returns the subscribe surface for committed changes.
func (c *Cell[T]) OnChange() *xsignal.View[change.CellDelta[T]] { return c.changed.View() }

// OnSwitch returns the subscribe surface for reactivity on/off transitions.
func (c *Cell[T]) OnSwitch() *xsignal.View[bool] { return c.switchC.View() }

// Set writes next. Outside a transaction, a next that deep-equals the
// current value is a no-op; otherwise it commits and emits one
// CellDelta. Inside a transaction, next is always staged and the
// equality gate is applied at CloseTransaction.
func (c *Cell[T]) Set(next T) error {
	if c.disabled {
		return errs.New(errs.ReactivityDisabled, c.op("Set"))
	}
	if !c.affinity.Check() {
		return errs.New(errs.ReactivityDisabled, c.op("Set")+": called from a different goroutine than the one that last mutated this cell")
	}
	c.affinity.Bind()

	if c.txOpen {
		c.txValue = next
		return nil
	}

	c.commit(next)
	return nil
}

func (c *Cell[T]) commit(next T) {
	if c.equal(c.value, next) {
		return
	}
	old := c.value
	c.value = next
	c.changed.Activate(change.CellDelta[T]{
		Decrement: &change.Value[T]{V: old},
		Increment: &change.Value[T]{V: next},
	})
}

// OpenTransaction stages subsequent writes in a separate buffer. A
// re-entrant call is a no-op.
func (c *Cell[T]) OpenTransaction() error {
	if c.disabled {
		return errs.New(errs.ReactivityDisabled, c.op("OpenTransaction"))
	}
	if c.txOpen {
		return nil
	}
	c.txOpen = true
	c.txValue = c.value
	return nil
}

// CloseTransaction assigns the staged value, applying the equality gate
// and emitting at most one delta.
func (c *Cell[T]) CloseTransaction() error {
	if c.disabled {
		return errs.New(errs.ReactivityDisabled, c.op("CloseTransaction"))
	}
	if !c.txOpen {
		return nil
	}
	c.txOpen = false
	c.commit(c.txValue)
	return nil
}

// CancelTransaction discards the staged buffer without emitting.
func (c *Cell[T]) CancelTransaction() error {
	if !c.txOpen {
		return nil
	}
	c.txOpen = false
	var zero T
	c.txValue = zero
	return nil
}

// ApplyChanges routes an Overwrite to a direct Set, or a Delta to the
// set-to-last-increment path, matching §4.1.
func (c *Cell[T]) ApplyChanges(in change.CellInput[T]) error {
	if c.disabled {
		return errs.New(errs.ReactivityDisabled, c.op("ApplyChanges"))
	}
	switch {
	case in.Overwrite != nil:
		return c.Set(in.Overwrite.Value.V)
	case in.Delta != nil:
		if in.Delta.Increment != nil {
			return c.Set(in.Delta.Increment.V)
		}
		return nil
	default:
		return nil
	}
}

// DisableReactivity marks the cell immutable and clears its transaction
// state. It is privileged: intended for use by the combination that owns
// this cell as its result storage (spec §4.1's "derived consumer that
// owns it"), not by arbitrary callers. A switch signal is emitted once
// per effective transition.
func (c *Cell[T]) DisableReactivity() {
	if c.disabled {
		return
	}
	c.disabled = true
	_ = c.CancelTransaction()
	c.affinity.Release()
	c.switchC.Activate(false)
}

// EnableReactivity restores mutability. Per spec §9's open question, the
// flag is restored to true (not left false, as the reference
// implementation's apparent typo would do).
func (c *Cell[T]) EnableReactivity() {
	if !c.disabled {
		return
	}
	c.disabled = false
	c.switchC.Activate(true)
}
