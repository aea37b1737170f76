package twine_test

import (
	"errors"
	"fmt"
	"time"

	"github.com/b97tsk/twine"
	"github.com/b97tsk/twine/reactortest"
)

func Example() {
	clock := reactortest.NewClock()
	h := twine.NewHub(clock)

	h.Run(func() error {
		for i := 1; i <= 3; i++ {
			if err := h.Sleep(time.Second); err != nil {
				return err
			}
			fmt.Println("tick", i, clock.Now().Sub(reactortest.Epoch))
		}
		return nil
	})

	for clock.Pending() != 0 {
		clock.Advance(time.Second)
	}

	// Output:
	// tick 1 1s
	// tick 2 2s
	// tick 3 3s
}

func ExampleHub_ListenTCP() {
	n := reactortest.NewNetwork(reactortest.NewClock())
	h := twine.NewHub(n)

	h.ListenTCP("echo:7", func(c *twine.Conn) error {
		for line, err := range c.Lines() {
			if err != nil {
				return err
			}
			if err := c.WriteLine(line); err != nil {
				return err
			}
		}
		return nil
	})

	h.Run(func() error {
		c, err := h.ConnectTCP("echo:7")
		if err != nil {
			return err
		}
		defer c.Close()

		for _, s := range []string{"hello", "world"} {
			if err := c.WriteLine([]byte(s)); err != nil {
				return err
			}
			line, err := c.ReadLine()
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", line)
		}
		return nil
	})

	n.Flush()

	// Output:
	// hello
	// world
}

func ExampleWithDeadline() {
	clock := reactortest.NewClock()
	h := twine.NewHub(clock)

	slow := new(twine.Deferred[string])
	clock.CallLater(2*time.Second, func() { slow.Callback("too late") })

	h.Run(func() error {
		_, err := twine.WithDeadline[string](h, time.Second, slow)
		fmt.Println(errors.Is(err, twine.ErrTimeout), err)
		return nil
	})

	clock.Advance(2 * time.Second)

	// Output:
	// true twine: deadline exceeded after 1s
}

func ExampleSpawn() {
	clock := reactortest.NewClock()
	h := twine.NewHub(clock)

	d := twine.Spawn(h, func() (int, error) {
		if err := h.Sleep(time.Second); err != nil {
			return 0, err
		}
		return 42, nil
	})

	d.AddCallbacks(
		func(v int) { fmt.Println("result:", v) },
		func(err error) { fmt.Println("failure:", err) },
	)

	clock.Advance(time.Second)

	// Output:
	// result: 42
}

func ExampleSemaphore() {
	clock := reactortest.NewClock()
	h := twine.NewHub(clock)

	sema := twine.NewSemaphore(2)

	for i := 1; i <= 4; i++ {
		h.Run(func() error {
			if err := sema.Acquire(h, 1); err != nil {
				return err
			}
			defer sema.Release(1)
			fmt.Println("worker", i, "starts at", clock.Now().Sub(reactortest.Epoch))
			return h.Sleep(time.Second)
		})
	}

	clock.Advance(time.Second)
	clock.Advance(time.Second)

	// Output:
	// worker 1 starts at 0s
	// worker 2 starts at 0s
	// worker 3 starts at 1s
	// worker 4 starts at 1s
}
