// Package buffer implements the per-dependency delta staging areas the
// projection engine uses (spec §3/§4.5): CollectionBuffer accumulates a
// collection dependency's uncommitted delta, CellBuffer does the same
// for a single-value dependency. Both expose the state as of the last
// commit: CollectionBuffer computes it on demand from the live source
// (spec §9's "double-commit" note), CellBuffer keeps the committed value
// it moved out of pending at the last commit.
package buffer

import (
	"reflect"

	"github.com/AnatoleLucet/rset/change"
	"github.com/AnatoleLucet/rset/errs"
	"github.com/AnatoleLucet/rset/internal/xsignal"
)

// CollectionSource is anything a CollectionBuffer can watch.
type CollectionSource[T comparable] interface {
	Values() change.Set[T]
	OnChange() *xsignal.View[change.Delta[T]]
}

// CellSource is anything a CellBuffer can watch.
type CellSource[T any] interface {
	Value() T
	OnChange() *xsignal.View[change.CellDelta[T]]
}

// CollectionBuffer stages a collection dependency's changes between
// sync-worker commits.
type CollectionBuffer[T comparable] struct {
	source CollectionSource[T]

	disabled         bool
	hasCommittedOnce bool

	pendingAdded   change.Set[T]
	pendingRemoved change.Set[T]

	cancel  xsignal.CancelFunc
	changed *xsignal.Controller[struct{}]
}

// NewCollectionBuffer wraps source. The buffer starts disabled; call
// Enable to attach it.
func NewCollectionBuffer[T comparable](source CollectionSource[T]) *CollectionBuffer[T] {
	return &CollectionBuffer[T]{
		source:         source,
		disabled:       true,
		pendingAdded:   change.NewSet[T](),
		pendingRemoved: change.NewSet[T](),
		changed:        xsignal.NewController[struct{}](),
	}
}

// OnChange is a bare notification: something changed in the buffer, the
// sync worker should re-scan. It carries no payload.
func (b *CollectionBuffer[T]) OnChange() *xsignal.View[struct{}] { return b.changed.View() }

// Enable subscribes to the source and buffers its entire current
// content as an initial increment (spec §4.5).
func (b *CollectionBuffer[T]) Enable() {
	if !b.disabled {
		return
	}
	b.disabled = false
	b.hasCommittedOnce = false
	b.pendingRemoved = change.NewSet[T]()
	b.pendingAdded = b.source.Values().Clone()
	b.cancel = b.source.OnChange().Subscribe(xsignal.Func(b.onSourceDelta))
	b.changed.Activate(struct{}{})
}

// Disable aborts the subscription and clears both buffers.
func (b *CollectionBuffer[T]) Disable() {
	if b.disabled {
		return
	}
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.disabled = true
	b.hasCommittedOnce = false
	b.pendingAdded = change.NewSet[T]()
	b.pendingRemoved = change.NewSet[T]()
}

func (b *CollectionBuffer[T]) onSourceDelta(d change.Delta[T]) {
	b.pendingAdded = b.pendingAdded.Union(d.Increment).Diff(d.Decrement)
	b.pendingRemoved = b.pendingRemoved.Union(d.Decrement).Diff(d.Increment)
	b.changed.Activate(struct{}{})
}

// GetBufferedChanges returns the staged delta, or nil if nothing is
// pending.
func (b *CollectionBuffer[T]) GetBufferedChanges() (*change.Delta[T], error) {
	if b.disabled {
		return nil, errs.New(errs.BufferDisabled, "buffer.CollectionBuffer.GetBufferedChanges")
	}
	if b.pendingAdded.Len() == 0 && b.pendingRemoved.Len() == 0 {
		return nil, nil
	}
	return &change.Delta[T]{Increment: b.pendingAdded.Clone(), Decrement: b.pendingRemoved.Clone()}, nil
}

// CommitChanges clears both buffers and records that the source's
// current committed-state view is now defined.
func (b *CollectionBuffer[T]) CommitChanges() error {
	if b.disabled {
		return errs.New(errs.BufferDisabled, "buffer.CollectionBuffer.CommitChanges")
	}
	b.pendingAdded = change.NewSet[T]()
	b.pendingRemoved = change.NewSet[T]()
	b.hasCommittedOnce = true
	return nil
}

// GetCommittedState reconstructs the source's content as of the last
// commit: (source - pendingAdded) ∪ pendingRemoved. The ok result is
// false if nothing has ever been committed.
func (b *CollectionBuffer[T]) GetCommittedState() (state change.Set[T], ok bool, err error) {
	if b.disabled {
		return nil, false, errs.New(errs.BufferDisabled, "buffer.CollectionBuffer.GetCommittedState")
	}
	if !b.hasCommittedOnce {
		return nil, false, nil
	}
	return b.source.Values().Diff(b.pendingAdded).Union(b.pendingRemoved), true, nil
}

// CellBuffer stages a cell dependency's changes between sync-worker
// commits.
type CellBuffer[T any] struct {
	source CellSource[T]
	equal  func(a, b T) bool

	disabled         bool
	hasCommittedOnce bool

	pendingValue   *change.Value[T]
	committedValue *change.Value[T]

	cancel  xsignal.CancelFunc
	changed *xsignal.Controller[struct{}]
}

// CellBufferOption configures a CellBuffer at construction.
type CellBufferOption[T any] func(*CellBuffer[T])

// WithCellEqual overrides the default reflect.DeepEqual comparator used
// to detect a no-op change.
func WithCellEqual[T any](equal func(a, b T) bool) CellBufferOption[T] {
	return func(b *CellBuffer[T]) { b.equal = equal }
}

// NewCellBuffer wraps source. The buffer starts disabled.
func NewCellBuffer[T any](source CellSource[T], opts ...CellBufferOption[T]) *CellBuffer[T] {
	b := &CellBuffer[T]{
		source:   source,
		equal:    reflect.DeepEqual,
		disabled: true,
		changed:  xsignal.NewController[struct{}](),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnChange is a bare notification, same contract as CollectionBuffer's.
func (b *CellBuffer[T]) OnChange() *xsignal.View[struct{}] { return b.changed.View() }

// Enable subscribes to the source and buffers its current value as a
// pending change. The committed value starts empty, so no equality
// check is made here.
func (b *CellBuffer[T]) Enable() {
	if !b.disabled {
		return
	}
	b.disabled = false
	b.hasCommittedOnce = false
	b.committedValue = nil
	b.pendingValue = &change.Value[T]{V: b.source.Value()}
	b.cancel = b.source.OnChange().Subscribe(xsignal.Func(b.onSourceDelta))
	b.changed.Activate(struct{}{})
}

// Disable aborts the subscription and clears buffered state.
func (b *CellBuffer[T]) Disable() {
	if b.disabled {
		return
	}
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.disabled = true
	b.hasCommittedOnce = false
	b.pendingValue = nil
	b.committedValue = nil
}

func (b *CellBuffer[T]) onSourceDelta(d change.CellDelta[T]) {
	if d.Increment == nil {
		return
	}
	if b.committedValue != nil && b.equal(d.Increment.V, b.committedValue.V) {
		b.pendingValue = nil
	} else {
		v := d.Increment.V
		b.pendingValue = &change.Value[T]{V: v}
	}
	b.changed.Activate(struct{}{})
}

// GetBufferedChange returns the staged change, or nil if nothing is
// pending.
func (b *CellBuffer[T]) GetBufferedChange() (*change.CellDelta[T], error) {
	if b.disabled {
		return nil, errs.New(errs.BufferDisabled, "buffer.CellBuffer.GetBufferedChange")
	}
	if b.pendingValue == nil {
		return nil, nil
	}
	return &change.CellDelta[T]{Increment: b.pendingValue, Decrement: b.committedValue}, nil
}

// CommitState moves pendingValue into committedValue. Calling it with
// nothing pending is a protocol violation (spec §9).
func (b *CellBuffer[T]) CommitState() error {
	if b.disabled {
		return errs.New(errs.BufferDisabled, "buffer.CellBuffer.CommitState")
	}
	if b.pendingValue == nil {
		return errs.New(errs.CommitWithoutPending, "buffer.CellBuffer.CommitState")
	}
	b.committedValue = b.pendingValue
	b.pendingValue = nil
	b.hasCommittedOnce = true
	return nil
}

// CommittedValue returns the last-committed value, or ok=false if
// nothing has ever been committed.
func (b *CellBuffer[T]) CommittedValue() (v *change.Value[T], ok bool) {
	return b.committedValue, b.hasCommittedOnce
}
