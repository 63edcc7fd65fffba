package scheduler

import (
	"time"
)

type (
	// Clock provides the current time.
	Clock interface {
		Now() time.Time
	}

	// ClockFunc implements Clock.
	ClockFunc func() time.Time

	// Host is the environment a Scheduler runs within, e.g. an event loop.
	//
	// ScheduleTimer must arrange for fn to be called once, on the host's
	// thread, no sooner than delay from now, and never synchronously from
	// within ScheduleTimer. A delay of zero means "after the current task
	// yields". The scheduler never cancels timers, stale callbacks are
	// ignored.
	Host interface {
		Clock
		ScheduleTimer(delay time.Duration, fn func()) error
	}
)

var _ Clock = ClockFunc(nil)

// Now calls the receiver, or [time.Now] if nil.
func (x ClockFunc) Now() time.Time {
	if x == nil {
		return time.Now()
	}
	return x()
}
