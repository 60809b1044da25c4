// Package gid backs the "single-threaded cooperative, no lock needed"
// claim of spec §5 and §9 the same way the teacher library backs its own
// single-goroutine reactive graph: by comparing goroutine ids instead of
// taking a mutex (see AnatoleLucet/sig's internal/tracker.go, whose
// Tracker.shouldTrack refuses to link a dependency unless callerGID ==
// executingGID, and sig/sig.go's goid.Get()-keyed owner map).
package gid

import "github.com/petermattis/goid"

// Affinity records which goroutine first bound it and complains, via
// Check, about any other goroutine touching the same value afterwards.
// It is intentionally not a lock: per §5, mutation is never meant to be
// concurrent, so this exists to surface a contract violation immediately
// rather than to serialize access.
type Affinity struct {
	owner int64
	bound bool
}

// Bind records the calling goroutine as the owner. Re-binding from the
// same goroutine is a no-op; re-binding from a different one while still
// bound is itself a contract violation, surfaced by the caller checking
// Check first.
func (a *Affinity) Bind() {
	a.owner = goid.Get()
	a.bound = true
}

// Release clears the binding, e.g. when a combination disables and its
// result may legitimately be re-enabled from a different goroutine later.
func (a *Affinity) Release() {
	a.bound = false
}

// Check reports whether the calling goroutine is allowed to touch the
// bound value: true if unbound, or if the caller is the binding
// goroutine.
func (a *Affinity) Check() bool {
	return !a.bound || goid.Get() == a.owner
}
