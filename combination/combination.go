// Package combination implements the Combination base described in spec
// §3/§4.3: the enabled/disabled lifecycle state machine and cascade every
// derived collection in this module shares, plus the read-only ownership
// of its result storage.
package combination

import (
	"github.com/AnatoleLucet/rset/collection"
	"github.com/AnatoleLucet/rset/internal/xsignal"
)

// Enableable is implemented by anything a combinator can depend on whose
// own enabled state should cascade: other combinations. Plain leaf
// sources (cell.Cell, collection.Collection) do not implement it and are
// simply always "included" as far as cascade is concerned (§4.4).
type Enableable interface {
	Enabled() bool
	OnSwitch() *xsignal.View[bool]
}

// Base is embedded by every concrete combinator (variadic combinators,
// the projection engine). It owns the result collection, the local
// enabled flag, and the parent cascade.
type Base[T comparable] struct {
	label string

	result   *collection.Collection[T]
	readonly *collection.ReadOnly[T]

	localEnabled     bool
	effectiveEnabled bool

	parents []Enableable

	onActivated   func()
	onDeactivated func()
}

// New constructs a Base. onActivated is called exactly when the
// combinator transitions into the effectively-enabled state (subclass
// mounts its sources); onDeactivated is called exactly when it leaves it
// (subclass detaches subscriptions and aborts in-flight work). New itself
// runs one transition: onActivated if the Base starts effectively
// enabled, onDeactivated (and a switch(false)) if enabled is false. Both
// may be nil.
func New[T comparable](label string, enabled bool, parents []Enableable, onActivated, onDeactivated func()) *Base[T] {
	b := &Base[T]{
		label:         label,
		result:        collection.New[T](collection.WithLabel[T](label)),
		localEnabled:  enabled,
		parents:       parents,
		onActivated:   onActivated,
		onDeactivated: onDeactivated,
	}
	b.readonly = collection.NewReadOnly(b.result, b.Enabled, nil)

	for _, p := range parents {
		p := p
		p.OnSwitch().Subscribe(xsignal.Func(func(bool) { b.recompute() }))
	}

	b.effectiveEnabled = !enabled // force the first recompute to run a real transition
	b.recompute()

	return b
}

// Result is the read-only facade exposed to consumers of this combinator.
func (b *Base[T]) Result() *collection.ReadOnly[T] { return b.readonly }

// Storage gives the concrete subclass the privileged, mutating handle to
// the result collection — the "internal state updates go through a
// privileged (non-public) path" of spec §3.
func (b *Base[T]) Storage() *collection.Collection[T] { return b.result }

// Label returns the debug label, or "" if none was set.
func (b *Base[T]) Label() string { return b.label }

// Enabled reports the conjunction of the local flag and every parent's
// Enabled() (§4.3).
func (b *Base[T]) Enabled() bool {
	return b.localEnabled && b.parentsEnabled()
}

func (b *Base[T]) parentsEnabled() bool {
	for _, p := range b.parents {
		if !p.Enabled() {
			return false
		}
	}
	return true
}

// OnSwitch reports effective enabled/disabled transitions of this
// combinator (delegates to the result collection's own switch, which
// Base keeps in lockstep with Enabled()).
func (b *Base[T]) OnSwitch() *xsignal.View[bool] { return b.result.OnSwitch() }

// Enable sets the local flag to true. A redundant call is a no-op.
func (b *Base[T]) Enable() {
	if b.localEnabled {
		return
	}
	b.localEnabled = true
	b.recompute()
}

// Disable sets the local flag to false. A redundant call is a no-op.
func (b *Base[T]) Disable() {
	if !b.localEnabled {
		return
	}
	b.localEnabled = false
	b.recompute()
}

func (b *Base[T]) recompute() {
	next := b.Enabled()
	if next == b.effectiveEnabled {
		return
	}
	b.effectiveEnabled = next

	if next {
		b.result.EnableReactivity()
		if b.onActivated != nil {
			b.onActivated()
		}
		return
	}

	b.result.DisableReactivity()
	if b.onDeactivated != nil {
		b.onDeactivated()
	}
}
