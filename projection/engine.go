// Package projection implements the ProjectionEngine described in spec
// §3/§4.5: a Combination whose result is derived from an ordered set of
// named, heterogeneously-typed dependencies (cells and collections) via
// user-supplied resolvers, drained one at a time by a re-entrancy-safe
// sync worker. The worker's drain-until-dry loop is a generalization of
// the teacher's internal/scheduler.go Scheduler.Run latch from "replay
// a dirty flag" to "replay one buffered dependency delta at a time."
package projection

import (
	"github.com/AnatoleLucet/rset/change"
	"github.com/AnatoleLucet/rset/combination"
	"github.com/AnatoleLucet/rset/internal/xsignal"
	"github.com/sirupsen/logrus"
)

// Context is the snapshot of every dependency's committed state handed
// to a resolver (spec §4.5). Values are type-erased the same way the
// teacher's internal/owner.go context map keys Provider/Consumer values
// by an opaque identity: a collection dependency's entry is a
// change.Set[U], nil if never committed; a cell dependency's entry is a
// *change.Value[U], nil if never committed. Resolvers know their own
// dependencies' concrete types and type-assert accordingly.
type Context struct {
	values map[string]any
}

// Value returns the named dependency's committed-state snapshot. For a
// dependency that has never committed this is a typed nil (a nil
// change.Set[U] or a nil *change.Value[U]) held in a non-nil interface;
// only an unknown name yields an untyped nil.
func (c Context) Value(name string) any { return c.values[name] }

// dependency is the internal, type-erased record every concrete
// dependency constructor (NewCollectionDependency, NewCellDependency)
// produces. Dispatch is a direct lookup by position, per spec §9's
// "tagged variant keyed by name... resolvers stored alongside the
// source in a per-name record."
type dependency[T comparable] interface {
	name() string
	enable()
	disable()
	hasBuffered() (bool, error)
	pending() (any, error)
	commit() error
	snapshot() any
	resolve(ctx Context, payload any) (change.Input[T], error)
	onChange() *xsignal.View[struct{}]
}

// Engine is the generalized projection engine. Concrete projections
// (subset-via-cell, mapped-set, ...) are thin configuration layers over
// this type (spec §4.6).
type Engine[T comparable] struct {
	*combination.Base[T]

	deps []dependency[T]

	running    bool
	generation int
	log        logrus.FieldLogger
}

// Option configures an Engine at construction.
type Option func(*config)

type config struct {
	label   string
	enabled bool
}

// WithLabel attaches a debug label.
func WithLabel(label string) Option { return func(c *config) { c.label = label } }

// WithEnabled sets the initial local enabled flag (default true).
func WithEnabled(enabled bool) Option { return func(c *config) { c.enabled = enabled } }

func newConfig(opts []Option) config {
	c := config{enabled: true}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// newEngine builds an Engine over deps, in declaration order — the order the
// sync worker scans them in (spec §4.5 step 3a). parents are the subset
// of deps that are themselves combinations (cascade sources, per
// spec §4.5's "effectively enabled iff every parent combination is
// enabled").
func newEngine[T comparable](deps []dependency[T], parents []combination.Enableable, opts []Option) *Engine[T] {
	cfg := newConfig(opts)
	e := &Engine[T]{
		deps: deps,
		log:  logrus.WithField("component", "projection.Engine"),
	}
	if cfg.label != "" {
		e.log = logrus.WithField("component", "projection.Engine("+cfg.label+")")
	}
	// The Base starts disabled and is enabled only after e.Base is
	// assigned, so mountAll never schedules against a nil Base.
	e.Base = combination.New[T](cfg.label, false, parents, e.mountAll, e.unmountAll)

	for _, d := range deps {
		d.onChange().Subscribe(xsignal.Func(func(struct{}) { e.onDependencyChange() }))
	}

	if cfg.enabled {
		e.Enable()
	}
	return e
}

func (e *Engine[T]) mountAll() {
	e.generation++
	for _, d := range e.deps {
		d.enable()
	}
	e.schedule()
}

func (e *Engine[T]) unmountAll() {
	e.generation++ // invalidates any in-flight resolver call
	e.running = false
	for _, d := range e.deps {
		d.disable()
	}
}

// schedule starts the sync worker if it is not already running. Since
// every dependency's change notification and the worker's own drain
// loop run on the same cooperative goroutine, this is a plain re-entrancy
// guard, not a concurrency one — mirroring the teacher's
// Scheduler.running latch.
func (e *Engine[T]) schedule() {
	if e.running {
		return
	}
	e.running = true
	defer func() { e.running = false }()

	gen := e.generation
	for {
		idx := -1
		for i, d := range e.deps {
			ok, err := d.hasBuffered()
			if err != nil {
				continue // disabled mid-scan; skip rather than abort the whole drain
			}
			if ok {
				idx = i
				break
			}
		}
		if idx == -1 {
			return
		}

		d := e.deps[idx]
		payload, err := d.pending()
		if err != nil {
			return
		}
		if err := d.commit(); err != nil {
			return
		}

		ctx := e.buildContext()

		resolved, err := d.resolve(ctx, payload)
		if gen != e.generation {
			return // disabled (or re-initialized) during the resolver call
		}
		if err != nil {
			e.log.WithError(err).Error("resolver failed, disabling projection")
			e.Disable()
			return
		}

		if err := e.Storage().ApplyChanges(resolved); err != nil {
			e.log.WithError(err).Error("failed to apply resolved delta, disabling projection")
			e.Disable()
			return
		}
	}
}

func (e *Engine[T]) buildContext() Context {
	ctx := Context{values: make(map[string]any, len(e.deps))}
	for _, d := range e.deps {
		ctx.values[d.name()] = d.snapshot()
	}
	return ctx
}

// onDependencyChange is the bare-notification handler every concrete
// dependency wires its buffer's OnChange to.
func (e *Engine[T]) onDependencyChange() {
	if !e.Enabled() {
		return
	}
	e.schedule()
}
