package scheduler

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-legacyjs/uncaught"
	"github.com/joeycumines/logiface"
)

// Scheduler queues commands, and runs them on the thread of a [Host],
// according to the rules of each command category. See the package docs.
//
// A Scheduler is NOT safe for concurrent use. Every method must be called
// from the host's thread, e.g. from a task submitted to the host's loop.
//
// Instances must be initialized using [New].
type Scheduler struct {
	// Prevent copying
	_ [0]func()

	host     Host
	uncaught uncaught.Handler
	logger   *logiface.Logger[logiface.Event]

	// queues
	entry     []*task
	deferred  []*task
	finally   []*task
	repeating []*task

	// armedAt is the due time of the current repeating timer, valid only if
	// armed is true. Timer callbacks that don't match armedGen are stale.
	armedAt  time.Time
	armedGen uint64

	// flushPending indicates a drain cycle has been requested from the host.
	flushPending bool

	// draining indicates a drain episode (cycle, tick, or synchronous
	// finally drain) is in progress.
	draining bool

	// ticking suppresses re-arming while repeating commands are running.
	ticking bool

	armed bool
}

// Stats reports queue depths, see [Scheduler.Pending].
type Stats struct {
	Entry        int
	Deferred     int
	Finally      int
	Repeating    int
	FlushPending bool
}

// New initializes a Scheduler, which will run commands via host.
func New(host Host, opts ...Option) (*Scheduler, error) {
	if host == nil {
		return nil, ErrNilHost
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		host:     host,
		uncaught: cfg.uncaught,
		logger:   cfg.logger,
	}, nil
}

// ScheduleDeferred queues cmd to run once, after the host next yields, in the
// order scheduled. Commands scheduled while a drain cycle is running are
// run by the following cycle.
func (x *Scheduler) ScheduleDeferred(cmd ScheduledCommand) error {
	if isNilScheduled(cmd) {
		return ErrNilCommand
	}
	x.deferred = append(x.deferred, &task{kind: KindDeferred, once: cmd})
	x.requestFlush()
	return nil
}

// ScheduleEntry queues cmd to run once, at the start of the next drain
// cycle, before any deferred command. It is intended to wrap the handling of
// top-level events.
func (x *Scheduler) ScheduleEntry(cmd ScheduledCommand) error {
	if isNilScheduled(cmd) {
		return ErrNilCommand
	}
	x.entry = append(x.entry, &task{kind: KindEntry, once: cmd})
	x.requestFlush()
	return nil
}

// ScheduleFinally queues cmd to run once, after all other commands of the
// current episode have run. If called outside of any drain, the finally
// queue is drained before ScheduleFinally returns.
func (x *Scheduler) ScheduleFinally(cmd ScheduledCommand) error {
	if isNilScheduled(cmd) {
		return ErrNilCommand
	}
	x.finally = append(x.finally, &task{kind: KindFinally, once: cmd})
	if !x.draining {
		x.episode(nil)
	}
	return nil
}

// ScheduleFixedDelay runs cmd after delay, then again delay after each run
// completes, until it returns false or panics.
func (x *Scheduler) ScheduleFixedDelay(cmd RepeatingCommand, delay time.Duration) error {
	return x.scheduleRepeating(KindFixedDelay, cmd, delay)
}

// ScheduleFixedPeriod runs cmd every period, measured from the time it was
// scheduled, until it returns false or panics. Runs that would have started
// while a previous run was still in progress are skipped.
func (x *Scheduler) ScheduleFixedPeriod(cmd RepeatingCommand, period time.Duration) error {
	return x.scheduleRepeating(KindFixedPeriod, cmd, period)
}

// Pending returns the number of commands waiting in each queue.
func (x *Scheduler) Pending() (s Stats) {
	s.Entry = len(x.entry)
	s.Deferred = len(x.deferred)
	s.Finally = len(x.finally)
	for _, t := range x.repeating {
		if !t.done {
			s.Repeating++
		}
	}
	s.FlushPending = x.flushPending
	return
}

func (x *Scheduler) scheduleRepeating(kind Kind, cmd RepeatingCommand, interval time.Duration) error {
	if isNilRepeating(cmd) {
		return ErrNilCommand
	}
	if interval < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}
	x.repeating = append(x.repeating, &task{
		kind:     kind,
		repeat:   cmd,
		interval: interval,
		due:      x.host.Now().Add(interval),
	})
	x.arm()
	return nil
}

// requestFlush asks the host for a drain cycle, unless one is already
// pending, or a drain is in progress (the episode requests it on exit).
func (x *Scheduler) requestFlush() {
	if x.flushPending || x.draining {
		return
	}
	x.flushPending = true
	if err := x.host.ScheduleTimer(0, x.flush); err != nil {
		x.flushPending = false
		x.report(fmt.Errorf("%w: %w", ErrHostUnavailable, err))
	}
}

// flush is the drain cycle, called by the host.
func (x *Scheduler) flush() {
	x.flushPending = false
	x.episode(func() {
		entry, deferred := x.entry, x.deferred
		x.entry, x.deferred = nil, nil
		for i, t := range entry {
			entry[i] = nil
			x.runOnce(t)
		}
		for i, t := range deferred {
			deferred[i] = nil
			x.runOnce(t)
		}
	})
}

// episode runs fn, then drains the finally queue, with the draining flag
// set. Work queued in the meantime is requested from the host on exit.
func (x *Scheduler) episode(fn func()) {
	x.draining = true
	defer func() {
		x.draining = false
		if len(x.entry) != 0 || len(x.deferred) != 0 {
			x.requestFlush()
		}
	}()
	if fn != nil {
		fn()
	}
	for len(x.finally) != 0 {
		t := x.finally[0]
		x.finally[0] = nil
		x.finally = x.finally[1:]
		x.runOnce(t)
	}
	x.finally = nil
}

func (x *Scheduler) runOnce(t *task) {
	if err := invoke(t.kind, t.once.Execute); err != nil {
		x.report(err)
	}
}

// arm ensures a host timer is pending for the earliest due repeating command.
func (x *Scheduler) arm() {
	if x.ticking {
		return
	}

	var (
		due   time.Time
		found bool
	)
	for _, t := range x.repeating {
		if !t.done && (!found || t.due.Before(due)) {
			due, found = t.due, true
		}
	}
	if !found || (x.armed && !due.Before(x.armedAt)) {
		return
	}

	delay := due.Sub(x.host.Now())
	if delay < 0 {
		delay = 0
	}

	x.armedGen++
	x.armedAt = due
	x.armed = true
	gen := x.armedGen

	if err := x.host.ScheduleTimer(delay, func() { x.tick(gen) }); err != nil {
		x.armed = false
		x.report(fmt.Errorf("%w: %w", ErrHostUnavailable, err))
	}
}

// tick runs every due repeating command, registered prior to the tick, in
// registration order.
func (x *Scheduler) tick(gen uint64) {
	if !x.armed || gen != x.armedGen {
		return
	}
	x.armed = false

	x.ticking = true
	x.episode(x.runRepeating)
	x.ticking = false

	x.arm()
}

func (x *Scheduler) runRepeating() {
	now := x.host.Now()

	for i, n := 0, len(x.repeating); i < n; i++ {
		t := x.repeating[i]
		if t.done || t.due.After(now) {
			continue
		}

		var again bool
		if err := invoke(t.kind, func() { again = t.repeat.Execute() }); err != nil {
			t.done = true
			x.report(err)
			continue
		}
		if !again {
			t.done = true
			continue
		}

		switch t.kind {
		case KindFixedDelay:
			t.due = x.host.Now().Add(t.interval)
		default:
			t.due = t.nextPeriod(x.host.Now())
		}
	}

	// compact, preserving registration order
	live := x.repeating[:0]
	for _, t := range x.repeating {
		if !t.done {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(x.repeating); i++ {
		x.repeating[i] = nil
	}
	x.repeating = live
}

// report passes err to the uncaught handler, recovering from any panic.
func (x *Scheduler) report(err error) {
	defer func() {
		if r := recover(); r != nil {
			x.logger.Err().
				Interface(`panic`, r).
				Err(err).
				Log(`scheduler: uncaught handler panicked`)
		}
	}()
	x.uncaught.OnUncaughtException(err)
}

func invoke(kind Kind, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CommandError{Kind: kind, Err: PanicError{Value: r}}
		}
	}()
	fn()
	return nil
}
