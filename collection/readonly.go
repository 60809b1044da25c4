package collection

import (
	"github.com/AnatoleLucet/rset/change"
	"github.com/AnatoleLucet/rset/errs"
	"github.com/AnatoleLucet/rset/internal/xsignal"
)

// ReadOnly is the external facade a combination hands to observers: every
// read passes through to the underlying Collection, and every mutating
// entry point fails with ReadonlyAccess (§4.2 "Readonly variant"). The
// combination that owns the underlying Collection keeps its own
// reference and mutates it directly — that is the "privileged
// (non-public) path" §3 describes; ReadOnly never sees it.
type ReadOnly[T comparable] struct {
	inner      *Collection[T]
	enabledFn  func() bool
	switchView *xsignal.View[bool]
}

// NewReadOnly wraps inner. enabledFn and switchView, when non-nil, let the
// owning combination surface its own lifecycle (not merely the
// collection's disabled flag) through the facade — see combination.Base.
func NewReadOnly[T comparable](inner *Collection[T], enabledFn func() bool, switchView *xsignal.View[bool]) *ReadOnly[T] {
	return &ReadOnly[T]{inner: inner, enabledFn: enabledFn, switchView: switchView}
}

func (r *ReadOnly[T]) Values() change.Set[T] { return r.inner.Values() }
func (r *ReadOnly[T]) Has(v T) bool          { return r.inner.Has(v) }
func (r *ReadOnly[T]) Len() int              { return r.inner.Len() }
func (r *ReadOnly[T]) Label() string         { return r.inner.Label() }

func (r *ReadOnly[T]) OnChange() *xsignal.View[change.Delta[T]] { return r.inner.OnChange() }

// OnSwitch reports lifecycle transitions. If the facade was built with an
// explicit switchView (the usual case, wired to the owning combination's
// cascade-aware Enabled()), that takes precedence over the inner
// collection's own reactivity switch.
func (r *ReadOnly[T]) OnSwitch() *xsignal.View[bool] {
	if r.switchView != nil {
		return r.switchView
	}
	return r.inner.OnSwitch()
}

// Enabled reports the owning combination's effective lifecycle state when
// wired with an enabledFn, else the collection's own reactivity state.
func (r *ReadOnly[T]) Enabled() bool {
	if r.enabledFn != nil {
		return r.enabledFn()
	}
	return !r.inner.Disabled()
}

func (r *ReadOnly[T]) op(name string) string {
	if l := r.Label(); l != "" {
		return "collection(" + l + ")." + name
	}
	return "collection." + name
}

func (r *ReadOnly[T]) Add(T) error              { return errs.New(errs.ReadonlyAccess, r.op("Add")) }
func (r *ReadOnly[T]) Delete(T) error            { return errs.New(errs.ReadonlyAccess, r.op("Delete")) }
func (r *ReadOnly[T]) Clear() error               { return errs.New(errs.ReadonlyAccess, r.op("Clear")) }
func (r *ReadOnly[T]) BatchAdd(change.Set[T]) error {
	return errs.New(errs.ReadonlyAccess, r.op("BatchAdd"))
}
func (r *ReadOnly[T]) BatchDelete(change.Set[T]) error {
	return errs.New(errs.ReadonlyAccess, r.op("BatchDelete"))
}
func (r *ReadOnly[T]) Overwrite(change.Set[T]) error {
	return errs.New(errs.ReadonlyAccess, r.op("Overwrite"))
}
func (r *ReadOnly[T]) ApplyChanges(change.Input[T]) error {
	return errs.New(errs.ReadonlyAccess, r.op("ApplyChanges"))
}
func (r *ReadOnly[T]) OpenTransaction() error {
	return errs.New(errs.ReadonlyAccess, r.op("OpenTransaction"))
}
func (r *ReadOnly[T]) CloseTransaction() error {
	return errs.New(errs.ReadonlyAccess, r.op("CloseTransaction"))
}
func (r *ReadOnly[T]) CancelTransaction() error {
	return errs.New(errs.ReadonlyAccess, r.op("CancelTransaction"))
}
