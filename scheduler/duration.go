package scheduler

import (
	"time"
)

// Duration measures elapsed time from the point it was created, using a
// [Clock], typically the [Host] of a Scheduler.
type Duration struct {
	clock Clock
	start time.Time
}

// NewDuration starts a Duration. A nil clock uses [time.Now].
func NewDuration(clock Clock) *Duration {
	if clock == nil {
		clock = ClockFunc(nil)
	}
	return &Duration{clock: clock, start: clock.Now()}
}

// Start returns the time the Duration was created.
func (x *Duration) Start() time.Time { return x.start }

// StartMillis returns the start time in milliseconds since the unix epoch.
func (x *Duration) StartMillis() float64 { return UnixMillis(x.start) }

// Elapsed returns the time since the Duration was created.
func (x *Duration) Elapsed() time.Duration {
	return x.clock.Now().Sub(x.start)
}

// ElapsedMillis returns [Duration.Elapsed] in whole milliseconds.
func (x *Duration) ElapsedMillis() int {
	return int(x.Elapsed().Milliseconds())
}

// UnixMillis converts t to fractional milliseconds since the unix epoch, the
// representation used for timestamps by legacy scripts.
func UnixMillis(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Millisecond)
}
