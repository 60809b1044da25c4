package projection

import (
	"github.com/AnatoleLucet/rset/buffer"
	"github.com/AnatoleLucet/rset/change"
	"github.com/AnatoleLucet/rset/internal/xsignal"
)

// CollectionResolver converts a collection dependency's committed delta
// into an input for the projection's result, given a snapshot of every
// dependency's committed state.
type CollectionResolver[T comparable, U comparable] func(ctx Context, delta change.Delta[U]) (change.Input[T], error)

// CellResolver is the cell-dependency equivalent of CollectionResolver.
type CellResolver[T comparable, U any] func(ctx Context, delta change.CellDelta[U]) (change.Input[T], error)

type collectionDependency[T comparable, U comparable] struct {
	nm       string
	buf      *buffer.CollectionBuffer[U]
	resolver CollectionResolver[T, U]
}

// NewCollectionDependency wires a collection source into an engine
// dependency record, named n and resolved by resolver.
func NewCollectionDependency[T comparable, U comparable](n string, source buffer.CollectionSource[U], resolver CollectionResolver[T, U]) dependency[T] {
	return &collectionDependency[T, U]{
		nm:       n,
		buf:      buffer.NewCollectionBuffer(source),
		resolver: resolver,
	}
}

func (d *collectionDependency[T, U]) name() string { return d.nm }
func (d *collectionDependency[T, U]) enable()       { d.buf.Enable() }
func (d *collectionDependency[T, U]) disable()      { d.buf.Disable() }

func (d *collectionDependency[T, U]) onChange() *xsignal.View[struct{}] { return d.buf.OnChange() }

func (d *collectionDependency[T, U]) hasBuffered() (bool, error) {
	delta, err := d.buf.GetBufferedChanges()
	return delta != nil, err
}

func (d *collectionDependency[T, U]) pending() (any, error) {
	return d.buf.GetBufferedChanges()
}

func (d *collectionDependency[T, U]) commit() error { return d.buf.CommitChanges() }

func (d *collectionDependency[T, U]) snapshot() any {
	s, ok, _ := d.buf.GetCommittedState()
	if !ok {
		return change.Set[U](nil)
	}
	return s
}

func (d *collectionDependency[T, U]) resolve(ctx Context, payload any) (change.Input[T], error) {
	delta, _ := payload.(*change.Delta[U])
	if delta == nil {
		return change.Input[T]{}, nil
	}
	return d.resolver(ctx, *delta)
}

type cellDependency[T comparable, U any] struct {
	nm       string
	buf      *buffer.CellBuffer[U]
	resolver CellResolver[T, U]
}

// NewCellDependency wires a cell source into an engine dependency
// record, named n and resolved by resolver.
func NewCellDependency[T comparable, U any](n string, source buffer.CellSource[U], resolver CellResolver[T, U]) dependency[T] {
	return &cellDependency[T, U]{
		nm:       n,
		buf:      buffer.NewCellBuffer(source),
		resolver: resolver,
	}
}

func (d *cellDependency[T, U]) name() string { return d.nm }
func (d *cellDependency[T, U]) enable()       { d.buf.Enable() }
func (d *cellDependency[T, U]) disable()      { d.buf.Disable() }

func (d *cellDependency[T, U]) onChange() *xsignal.View[struct{}] { return d.buf.OnChange() }

func (d *cellDependency[T, U]) hasBuffered() (bool, error) {
	delta, err := d.buf.GetBufferedChange()
	return delta != nil, err
}

func (d *cellDependency[T, U]) pending() (any, error) {
	return d.buf.GetBufferedChange()
}

func (d *cellDependency[T, U]) commit() error { return d.buf.CommitState() }

func (d *cellDependency[T, U]) snapshot() any {
	v, ok := d.buf.CommittedValue()
	if !ok {
		return (*change.Value[U])(nil)
	}
	return v
}

func (d *cellDependency[T, U]) resolve(ctx Context, payload any) (change.Input[T], error) {
	delta, _ := payload.(*change.CellDelta[U])
	if delta == nil {
		return change.Input[T]{}, nil
	}
	return d.resolver(ctx, *delta)
}
