package twine_test

import (
	"slices"
	"testing"

	"github.com/b97tsk/twine"
)

func TestSignal(t *testing.T) {
	t.Run("FIFO", func(t *testing.T) {
		h, _ := newHub()

		var (
			sig   twine.Signal
			order []int
		)

		for i := range 3 {
			h.Run(func() error {
				if err := sig.Wait(h); err != nil {
					return err
				}
				order = append(order, i)
				return nil
			})
		}

		if sig.Len() != 3 {
			t.Fatalf("want 3 waiters, got %d", sig.Len())
		}

		sig.Notify()

		if want := []int{0, 1, 2}; !slices.Equal(order, want) {
			t.Fatalf("want %v, got %v", want, order)
		}
		if sig.Len() != 0 {
			t.Fatalf("want no waiters, got %d", sig.Len())
		}
	})
	t.Run("WaitAgain", func(t *testing.T) {
		h, _ := newHub()

		var (
			sig   twine.Signal
			woken int
		)

		h.Run(func() error {
			for {
				if err := sig.Wait(h); err != nil {
					return err
				}
				woken++
			}
		})

		sig.Notify()

		if woken != 1 || sig.Len() != 1 {
			t.Fatal("a fiber that waits again during Notify should be left for the next one")
		}

		sig.Notify()

		if woken != 2 {
			t.Fatalf("want 2 wakeups, got %d", woken)
		}
	})
	t.Run("Interrupted", func(t *testing.T) {
		h, _ := newHub()

		var sig twine.Signal

		fb := h.Run(func() error { return sig.Wait(h) })

		fb.Interrupt(errBoom)

		if sig.Len() != 0 {
			t.Fatal("an interrupted waiter should remove itself")
		}
		if _, err := fb.Result(); err != errBoom {
			t.Fatalf("want %v, got %v", errBoom, err)
		}
	})
}
