// Package xsignal is the signal transport collaborator described in spec
// §6: a typed broadcast with cancellable subscriptions. It generalizes the
// teacher's internal/signal.go + internal/link.go doubly-linked
// subscriber list (there specialized to the reactive-graph's Signal/
// Computed pair) into a standalone pub/sub usable by any container in
// this module, and the teacher's sig/tracker.go reactionTracker (a plain
// slice of subscribers with track/untrack/clear) for the simpler
// non-graph case this package actually needs.
package xsignal

import "slices"

// Handler receives a value each time a Signal is activated. Function-like
// and object-like consumers (spec §6: "handlers may be function-like or
// object-like") are both supported: wrap a plain func with Func. Handler
// values must be comparable by identity for Unsubscribe to find them
// again, which is why Func returns a pointer rather than a bare func
// value — Go, unlike the reference language, cannot compare two function
// values for equality.
type Handler[T any] interface {
	Handle(T)
}

// funcHandler adapts a plain function to Handler via a pointer, giving it
// a stable, comparable identity.
type funcHandler[T any] struct {
	fn func(T)
}

func (h *funcHandler[T]) Handle(v T) { h.fn(v) }

// Func wraps fn as a Handler. The returned value's identity (not its
// contents) is what Unsubscribe matches against.
func Func[T any](fn func(T)) Handler[T] {
	return &funcHandler[T]{fn: fn}
}

// CancelFunc revokes a subscription. Calling it more than once is a no-op.
type CancelFunc func()

type subscription[T any] struct {
	handler   Handler[T]
	cancelled bool
}

// Signal is a typed broadcast channel with cancellable subscriptions.
type Signal[T any] struct {
	subs []*subscription[T]
}

// New creates an empty Signal.
func New[T any]() *Signal[T] {
	return &Signal[T]{}
}

// Subscribe registers h and returns a CancelFunc that unregisters it.
// Cancelling after dispatch has started but before a given handler has
// been invoked removes it from that very dispatch (§5 "Subscriptions are
// cancellable... cancellation after dispatch but before delivery removes
// the listener").
func (s *Signal[T]) Subscribe(h Handler[T]) CancelFunc {
	sub := &subscription[T]{handler: h}
	s.subs = append(s.subs, sub)

	return func() {
		if sub.cancelled {
			return
		}
		sub.cancelled = true
		s.remove(sub)
	}
}

// Unsubscribe removes every subscription currently registered for h. It
// actually removes the entry — unlike the buggy reference implementation
// spec §9 calls out, which re-added the wrapper instead of removing it.
func (s *Signal[T]) Unsubscribe(h Handler[T]) {
	kept := s.subs[:0]
	for _, sub := range s.subs {
		if !sub.cancelled && sub.handler == h {
			sub.cancelled = true
			continue
		}
		kept = append(kept, sub)
	}
	s.subs = kept
}

// Activate emits v synchronously to every handler subscribed at the start
// of this call. The subscriber list is snapshotted first, so a handler
// subscribed during dispatch is not called by this activation; a
// subscription cancelled during dispatch before its turn is skipped.
func (s *Signal[T]) Activate(v T) {
	subs := slices.Clone(s.subs)
	for _, sub := range subs {
		if !sub.cancelled {
			sub.handler.Handle(v)
		}
	}
}

func (s *Signal[T]) remove(target *subscription[T]) {
	idx := slices.Index(s.subs, target)
	if idx == -1 {
		return
	}
	s.subs = slices.Delete(s.subs, idx, idx+1)
}

// Controller separates emission from observation (§6): it owns Activate
// privately and exposes only a read-only View to outside observers.
type Controller[T any] struct {
	signal *Signal[T]
}

// NewController creates a Controller with a fresh underlying Signal.
func NewController[T any]() *Controller[T] {
	return &Controller[T]{signal: New[T]()}
}

// Activate emits v to every current subscriber.
func (c *Controller[T]) Activate(v T) { c.signal.Activate(v) }

// View returns the externally-visible subscribe/unsubscribe surface.
func (c *Controller[T]) View() *View[T] { return &View[T]{signal: c.signal} }

// View exposes subscribe/unsubscribe without Activate.
type View[T any] struct {
	signal *Signal[T]
}

func (v *View[T]) Subscribe(h Handler[T]) CancelFunc { return v.signal.Subscribe(h) }
func (v *View[T]) Unsubscribe(h Handler[T])          { v.signal.Unsubscribe(h) }
