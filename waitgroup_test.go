package twine_test

import (
	"testing"
	"time"

	"github.com/b97tsk/twine"
)

func TestWaitGroup(t *testing.T) {
	t.Run("Wait", func(t *testing.T) {
		h, c := newHub()

		var wg twine.WaitGroup

		for i := 1; i <= 3; i++ {
			wg.Add(1)
			h.Run(func() error {
				defer wg.Done()
				return h.Sleep(time.Duration(i) * time.Second)
			})
		}

		waiter := h.Run(func() error { return wg.Wait(h) })

		c.Advance(2 * time.Second)

		if waiter.Done() || wg.Count() != 1 {
			t.Fatalf("want 1 left, got %d", wg.Count())
		}

		c.Advance(time.Second)

		if !waiter.Done() || wg.Count() != 0 {
			t.Fatal("the waiter should be done")
		}
	})
	t.Run("Zero", func(t *testing.T) {
		h, _ := newHub()

		var wg twine.WaitGroup

		if fb := h.Run(func() error { return wg.Wait(h) }); !fb.Done() {
			t.Fatal("waiting on a zero counter should not suspend")
		}
	})
	t.Run("Negative", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("a negative counter should panic")
			}
		}()

		var wg twine.WaitGroup

		wg.Done()
	})
}
