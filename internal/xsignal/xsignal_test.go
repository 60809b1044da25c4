package xsignal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignal(t *testing.T) {
	t.Run("activate notifies all subscribers", func(t *testing.T) {
		sig := New[int]()
		var got []int

		sig.Subscribe(Func(func(v int) { got = append(got, v*2) }))
		sig.Subscribe(Func(func(v int) { got = append(got, v*3) }))

		sig.Activate(5)

		assert.ElementsMatch(t, []int{10, 15}, got)
	})

	t.Run("cancel removes the subscription", func(t *testing.T) {
		sig := New[int]()
		calls := 0

		cancel := sig.Subscribe(Func(func(int) { calls++ }))
		sig.Activate(1)
		cancel()
		sig.Activate(2)

		assert.Equal(t, 1, calls)
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		sig := New[int]()
		cancel := sig.Subscribe(Func(func(int) {}))

		assert.NotPanics(t, func() {
			cancel()
			cancel()
		})
	})

	t.Run("unsubscribe by handler identity", func(t *testing.T) {
		sig := New[int]()
		calls := 0
		h := Func(func(int) { calls++ })

		sig.Subscribe(h)
		sig.Unsubscribe(h)
		sig.Activate(1)

		assert.Equal(t, 0, calls)
	})

	t.Run("cancelling during dispatch skips a handler not yet delivered to", func(t *testing.T) {
		sig := New[int]()
		var order []string
		var cancelSecond CancelFunc

		sig.Subscribe(Func(func(int) {
			order = append(order, "first")
			cancelSecond()
		}))
		cancelSecond = sig.Subscribe(Func(func(int) {
			order = append(order, "second")
		}))

		sig.Activate(1)

		assert.Equal(t, []string{"first"}, order)

		order = nil
		sig.Activate(2)
		assert.Equal(t, []string{"first"}, order)
	})
}

func TestController(t *testing.T) {
	t.Run("view exposes subscribe but not activate", func(t *testing.T) {
		ctrl := NewController[string]()
		view := ctrl.View()

		var got string
		view.Subscribe(Func(func(v string) { got = v }))

		ctrl.Activate("hello")

		assert.Equal(t, "hello", got)
	})
}
