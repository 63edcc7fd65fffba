package scheduler

import (
	"time"
)

type (
	// ScheduledCommand is a parameterless unit of work, run at most once per
	// schedule call.
	ScheduledCommand interface {
		Execute()
	}

	// ScheduledFunc implements ScheduledCommand.
	ScheduledFunc func()

	// RepeatingCommand is a unit of work that may run many times. Returning
	// true requests another run, false removes the command.
	RepeatingCommand interface {
		Execute() bool
	}

	// RepeatingFunc implements RepeatingCommand.
	RepeatingFunc func() bool

	// Kind identifies the category of a queued command.
	Kind int

	// task is the single queued-task type, tagged by kind.
	task struct {
		due      time.Time
		once     ScheduledCommand
		repeat   RepeatingCommand
		interval time.Duration
		kind     Kind
		done     bool
	}
)

const (
	// KindDeferred is a command queued by [Scheduler.ScheduleDeferred].
	KindDeferred Kind = iota + 1
	// KindEntry is a command queued by [Scheduler.ScheduleEntry].
	KindEntry
	// KindFinally is a command queued by [Scheduler.ScheduleFinally].
	KindFinally
	// KindFixedDelay is a command queued by [Scheduler.ScheduleFixedDelay].
	KindFixedDelay
	// KindFixedPeriod is a command queued by [Scheduler.ScheduleFixedPeriod].
	KindFixedPeriod
)

var (
	// compile time assertions

	_ ScheduledCommand = ScheduledFunc(nil)
	_ RepeatingCommand = RepeatingFunc(nil)
)

// Execute calls the receiver.
func (x ScheduledFunc) Execute() { x() }

// Execute calls the receiver.
func (x RepeatingFunc) Execute() bool { return x() }

// String returns the name of the kind, e.g. "deferred".
func (k Kind) String() string {
	switch k {
	case KindDeferred:
		return `deferred`
	case KindEntry:
		return `entry`
	case KindFinally:
		return `finally`
	case KindFixedDelay:
		return `fixed-delay`
	case KindFixedPeriod:
		return `fixed-period`
	default:
		return `unknown`
	}
}

// Repeating returns true for the fixed-delay and fixed-period kinds.
func (k Kind) Repeating() bool {
	return k == KindFixedDelay || k == KindFixedPeriod
}

func isNilScheduled(cmd ScheduledCommand) bool {
	if cmd == nil {
		return true
	}
	f, ok := cmd.(ScheduledFunc)
	return ok && f == nil
}

func isNilRepeating(cmd RepeatingCommand) bool {
	if cmd == nil {
		return true
	}
	f, ok := cmd.(RepeatingFunc)
	return ok && f == nil
}

// nextPeriod returns the first slot of the period chain, after the slot that
// just ran, that is not before now. Missed slots are skipped.
func (t *task) nextPeriod(now time.Time) time.Time {
	if t.interval <= 0 {
		return now
	}
	next := t.due.Add(t.interval)
	if next.Before(now) {
		missed := (now.Sub(next) + t.interval - 1) / t.interval
		next = next.Add(missed * t.interval)
	}
	return next
}
