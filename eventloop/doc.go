// Package eventloop provides a minimal, single goroutine event loop, for
// hosting cooperative schedulers natively in Go.
//
// # Architecture
//
// A [Loop] runs two kinds of work, on the goroutine that called [Loop.Run]:
// tasks ([Loop.Submit]), and timer callbacks ([Loop.ScheduleTimer]). Timer
// callbacks are ordered by deadline, using a min-heap. A [Loop] implements
// the host interface of the scheduler package, so a scheduler constructed
// with a loop runs every command on the loop goroutine.
//
// By default a loop runs until shut down. With [WithExitWhenIdle], it
// terminates once it has no queued tasks and no pending timers, which is
// how the legacyrun command uses it (--host=go).
//
// # Thread Safety
//
// [Loop.Submit] and [Loop.ScheduleTimer] are safe to call from any
// goroutine. Everything else a task touches is confined to the loop
// goroutine, and requires no further locking.
//
// # Failures
//
// A panicking task is recovered, logged, and reported to the configured
// uncaught handler as a [PanicError]. The loop continues.
//
// # Usage
//
//	loop, err := eventloop.New(eventloop.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sched, err := scheduler.New(loop)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	loop.Submit(func() {
//	    _ = sched.ScheduleDeferred(scheduler.ScheduledFunc(func() {
//	        fmt.Println("Hello from a deferred command")
//	        loop.Shutdown(context.Background())
//	    }))
//	})
//
//	if err := loop.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
package eventloop
