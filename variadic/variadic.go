// Package variadic implements the VariadicCombinator described in spec
// §3/§4.4: a shared occurrence-count engine over an arbitrary number of
// sources, specialized into Union, Intersection, and Difference. There is
// no direct teacher analogue for the occurrence map itself — it is novel
// to this domain — but the surrounding scaffolding (dependency
// bookkeeping, cascade subscriptions) generalizes the teacher's
// internal/computed.go dependency-link tracking from a single
// recomputed value to a per-element count.
package variadic

import (
	"github.com/AnatoleLucet/rset/change"
	"github.com/AnatoleLucet/rset/internal/xsignal"
)

// Source is anything a variadic combinator can take as input: a leaf
// collection.Collection or another combinator's collection.ReadOnly
// result.
type Source[T comparable] interface {
	Values() change.Set[T]
	OnChange() *xsignal.View[change.Delta[T]]
}

// occMap tracks how many included sources currently contain each value
// (spec §4.4's "occurrence map"). Counts are bounded by the number of
// included sources; per §9, underflow is a contract violation, not
// something to clamp silently.
type occMap[T comparable] map[T]uint32

func (m occMap[T]) inc(v T) uint32 {
	m[v]++
	return m[v]
}

func (m occMap[T]) dec(v T) uint32 {
	n, ok := m[v]
	if !ok || n == 0 {
		panic("rset/variadic: occurrence count underflow for value " + anyToString(v))
	}
	n--
	if n == 0 {
		delete(m, v)
	} else {
		m[v] = n
	}
	return n
}

func (m occMap[T]) get(v T) uint32 { return m[v] }

func anyToString[T any](v T) string {
	if s, ok := any(v).(interface{ String() string }); ok {
		return s.String()
	}
	return "<value>"
}

// sourceEntry is the per-dependency bookkeeping a variadic combinator
// keeps: the source itself, whether it is currently included in the
// occurrence map, the last set of values it contributed (so a source
// that clears itself on disable can still be correctly un-contributed),
// and the subscriptions mounting wired up.
type sourceEntry[T comparable] struct {
	src          Source[T]
	included     bool
	lastValues   change.Set[T]
	cancelChange xsignal.CancelFunc
	cancelSwitch xsignal.CancelFunc
}

// isRegistered reports whether src is already one of entries — used to
// reject both outright duplicate registration and self-referential
// registration (spec §4.4 tie-break: "self-referential registration...
// is a hard error").
func isRegistered[T comparable](entries []*sourceEntry[T], src Source[T]) bool {
	for _, e := range entries {
		if e.src == src {
			return true
		}
	}
	return false
}

// config holds the shared constructor options every variadic combinator
// accepts (spec §6: "{ subsets, label?, enabled? }").
type config struct {
	label   string
	enabled bool
}

// Option configures a variadic combinator at construction.
type Option func(*config)

// WithLabel attaches a debug label.
func WithLabel(label string) Option {
	return func(c *config) { c.label = label }
}

// WithEnabled sets the initial local enabled flag (default true).
func WithEnabled(enabled bool) Option {
	return func(c *config) { c.enabled = enabled }
}

func newConfig(opts []Option) config {
	c := config{enabled: true}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
