// Package twine lets network and timer code be written in sequential,
// blocking style on top of a single-threaded, callback-driven event loop.
//
// A reactor only knows how to call functions: when a timer is due, when
// bytes arrive, when a connection is lost. Code built directly on it is
// a maze of callbacks. Twine runs such code in fibers instead, so that
// "read a line, write a reply, sleep, await a result" reads top to
// bottom, while the loop stays single-threaded.
//
// # Fibers
//
// A [Fiber] is started by [Hub.Run] or [Spawn] and runs on the calling
// context until it first suspends. It suspends by calling [Hub.Suspend],
// usually through one of the operations below, and resumes when some
// callback of the reactor settles its [Pending].
//
// Each fiber has a goroutine of its own, but control is handed back and
// forth over unbuffered channels, so exactly one of {the loop, one fiber}
// executes at any instant. Hub state, connections and deferreds therefore
// need no locks. A fiber that blocks on anything but the hub blocks the
// whole loop.
//
// A Pending settles exactly once. Event sources may race for it (a timer
// against a result, a read against a lost connection); the first
// [Pending.Resume] wins and the others do nothing. Resuming a fiber
// twice through [Hub.Resume] panics with a *[SchedulingError].
//
// # Async Results
//
// [Await] suspends until an [AsyncResult] fires. [Spawn] turns a fiber
// back into one. [Deferred] is the bundled implementation. Failures of
// awaited results come back wrapped in a *[PropagatedError]; Spawn
// strips that wrapper, so awaiting inside a spawned fiber passes failures
// through unchanged.
//
// # Connections
//
// [Hub.Serve] adapts a [Handler] to the [Protocol] interface reactors
// drive, starting one fiber per connection. Inside it, a [Conn] offers
// blocking reads ([Conn.ReadLine], [Conn.ReadExact], [Conn.Read]) and
// writes that suspend while the transport is above its high-water mark.
// [Hub.ConnectTCP] dials out from within a fiber.
//
// # Timers
//
// [Hub.Sleep] suspends for a while. [WithDeadline] and [WithTimeout] race
// a result against a timer. Whenever a wait ends some other way, the
// timer is canceled.
//
// # Reactors
//
// Package reactor provides a real [TCPReactor] built on the net package.
// Package reactortest provides a simulated clock and network for tests.
package twine
