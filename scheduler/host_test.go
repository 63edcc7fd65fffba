package scheduler

import (
	"errors"
	"sort"
	"time"
)

// fakeHost is a deterministic Host, with a manual clock.
type fakeHost struct {
	now    time.Time
	timers []*fakeTimer
	seq    int
	// err, if set, is returned by ScheduleTimer
	err error
	// scheduled counts successful ScheduleTimer calls
	scheduled int
}

type fakeTimer struct {
	when time.Time
	fn   func()
	seq  int
}

var errFakeHostClosed = errors.New("fake host closed")

func newFakeHost() *fakeHost {
	return &fakeHost{now: time.Unix(1_700_000_000, 0)}
}

func (h *fakeHost) Now() time.Time { return h.now }

func (h *fakeHost) ScheduleTimer(delay time.Duration, fn func()) error {
	if h.err != nil {
		return h.err
	}
	h.seq++
	h.scheduled++
	h.timers = append(h.timers, &fakeTimer{when: h.now.Add(delay), fn: fn, seq: h.seq})
	return nil
}

// next pops the earliest timer due at or before deadline.
func (h *fakeHost) next(deadline time.Time) *fakeTimer {
	if len(h.timers) == 0 {
		return nil
	}
	sort.SliceStable(h.timers, func(i, j int) bool {
		if h.timers[i].when.Equal(h.timers[j].when) {
			return h.timers[i].seq < h.timers[j].seq
		}
		return h.timers[i].when.Before(h.timers[j].when)
	})
	t := h.timers[0]
	if t.when.After(deadline) {
		return nil
	}
	h.timers = h.timers[1:]
	return t
}

// yield runs every timer that is due now, including those scheduled by the
// callbacks it runs.
func (h *fakeHost) yield() {
	for t := h.next(h.now); t != nil; t = h.next(h.now) {
		t.fn()
	}
}

// advance moves the clock forward, running timers at their due times.
func (h *fakeHost) advance(d time.Duration) {
	deadline := h.now.Add(d)
	for t := h.next(deadline); t != nil; t = h.next(deadline) {
		if t.when.After(h.now) {
			h.now = t.when
		}
		t.fn()
	}
	h.now = deadline
}

func (h *fakeHost) pending() int { return len(h.timers) }
