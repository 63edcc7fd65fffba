// Package scheduler implements a single-threaded, cooperative command
// scheduler, for code written against the legacy deferred-command API.
//
// # Command categories
//
//   - Deferred ([Scheduler.ScheduleDeferred]): one-shot, runs the next time
//     the host yields. Deferred commands scheduled while a drain is in
//     progress run in the following cycle.
//   - Entry ([Scheduler.ScheduleEntry]): one-shot, runs at the start of the
//     next cycle, ahead of every deferred command.
//   - Finally ([Scheduler.ScheduleFinally]): one-shot, runs after all other
//     work in the current cycle has settled. Finally commands scheduled by
//     finally commands run in the same episode.
//   - Repeating ([Scheduler.ScheduleFixedDelay],
//     [Scheduler.ScheduleFixedPeriod]): runs on a timer until the command
//     returns false, or panics.
//
// # Execution model
//
// A [Scheduler] never runs two commands concurrently. All commands run on
// the logical thread of its [Host], e.g. an [eventloop.Loop], and the
// Schedule* methods must only be called from that thread. A drain cycle runs
// entry commands, then deferred commands (each in insertion order), then
// drains the finally queue, re-checking the tail after every command.
// Repeating commands run on a separate host timer, armed for the earliest
// due command.
//
// # Failures
//
// A panicking command is recovered, removed, and reported exactly once via
// the configured [uncaught.Handler], as a [*CommandError]. Failures are never
// propagated back to the caller of a Schedule* method. The only errors
// returned by Schedule* methods are caller contract violations, e.g.
// [ErrNilCommand].
//
// [eventloop.Loop]: https://pkg.go.dev/github.com/joeycumines/go-legacyjs/eventloop#Loop
package scheduler
