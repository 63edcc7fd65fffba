package eventloop

import (
	"container/heap"
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-legacyjs/uncaught"
	"github.com/joeycumines/logiface"
)

// Loop is a single goroutine event loop, running submitted tasks and timer
// callbacks one at a time, in order.
//
// Task ordering within each tick:
//  1. Timer callbacks that were due at the start of the tick (earliest
//     deadline first, FIFO for equal deadlines)
//  2. Tasks submitted prior to the tick ([Loop.Submit]), in FIFO order
//
// Work queued during a tick runs in a later tick. [Loop.Submit] and
// [Loop.ScheduleTimer] are safe to call from any goroutine.
//
// Instances must be initialized using [New].
type Loop struct { // betteralign:ignore
	// Prevent copying
	_ [0]func()

	logger   *logiface.Logger[logiface.Event]
	uncaught uncaught.Handler

	// Loop termination signaling
	loopDone chan struct{}

	// Wake-up mechanism, buffered (deduplicated)
	wake chan struct{}

	// queue and timers are guarded by mu
	queue  []func()
	timers timerHeap

	// Synchronization
	stopOnce sync.Once
	mu       sync.Mutex

	// State machine
	state fastState

	// Goroutine tracking
	loopGoroutineID atomic.Uint64

	maxWait  time.Duration
	timerSeq uint64
	exitIdle bool

	// Loop ID
	id uint64
}

// timer represents a scheduled task
type timer struct {
	when time.Time
	fn   func()
	seq  uint64
}

// timerHeap is a min-heap of timers
type timerHeap []timer

var loopIDCounter atomic.Uint64

// Implement heap.Interface for timerHeap
func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}
func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	*h = append(*h, x.(timer))
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = timer{}
	*h = old[:n-1]
	return x
}

// New creates a new event loop. It must be started using [Loop.Run].
func New(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Loop{
		id:       loopIDCounter.Add(1),
		logger:   cfg.logger,
		uncaught: cfg.uncaught,
		maxWait:  cfg.maxWait,
		exitIdle: cfg.exitIdle,
		wake:     make(chan struct{}, 1),
		loopDone: make(chan struct{}),
	}, nil
}

// Run runs the event loop and blocks until fully stopped.
//
// Run blocks until the loop terminates (via Shutdown(), Close(), ctx
// cancellation, or idling, see [WithExitWhenIdle]). Tasks queued at that
// point are drained, pending timers are discarded. To run in a separate
// goroutine, use: `go loop.Run(ctx)`.
func (l *Loop) Run(ctx context.Context) error {
	if l.isLoopThread() {
		return ErrReentrantRun
	}

	if !l.state.TryTransition(StateAwake, StateRunning) {
		if l.state.Load() == StateTerminated {
			return ErrLoopTerminated
		}
		return ErrLoopAlreadyRunning
	}

	// Close loopDone when run exits to signal completion to Shutdown waiters
	defer close(l.loopDone)

	return l.run(ctx)
}

// Shutdown gracefully shuts down the event loop.
//
// Shutdown waits for queued tasks to complete, blocking until termination
// completes or ctx expires. If called from the loop goroutine, it requests
// termination without waiting. Only the first call has any effect, later
// calls return [ErrLoopTerminated].
func (l *Loop) Shutdown(ctx context.Context) error {
	err := ErrLoopTerminated
	l.stopOnce.Do(func() {
		err = l.shutdownImpl(ctx)
	})
	return err
}

// shutdownImpl contains the actual Shutdown implementation.
func (l *Loop) shutdownImpl(ctx context.Context) error {
	prev, ok := l.state.terminate()
	if !ok {
		return ErrLoopTerminated
	}

	if prev == StateAwake {
		l.markTerminated()
		return nil
	}

	l.wakeup()

	if l.isLoopThread() {
		return nil
	}

	// Wait for termination via channel, NOT polling
	select {
	case <-l.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close immediately terminates the event loop without waiting for graceful
// shutdown.
func (l *Loop) Close() error {
	prev, ok := l.state.terminate()
	if !ok {
		return ErrLoopTerminated
	}
	if prev == StateAwake {
		l.markTerminated()
		return nil
	}
	l.wakeup()
	return nil
}

// Submit queues a task to run on the loop goroutine. Tasks may be submitted
// while the loop is terminating, and will be drained.
func (l *Loop) Submit(fn func()) error {
	l.mu.Lock()
	if l.state.Load() == StateTerminated {
		l.mu.Unlock()
		return ErrLoopTerminated
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	l.wakeup()
	return nil
}

// ScheduleTimer schedules fn to run on the loop goroutine, no sooner than
// delay from now. A delay of zero (or less) runs fn in the next tick. It is
// never run synchronously.
func (l *Loop) ScheduleTimer(delay time.Duration, fn func()) error {
	if delay < 0 {
		delay = 0
	}
	when := l.Now().Add(delay)

	l.mu.Lock()
	if l.state.Load() == StateTerminated {
		l.mu.Unlock()
		return ErrLoopTerminated
	}
	l.timerSeq++
	heap.Push(&l.timers, timer{when: when, fn: fn, seq: l.timerSeq})
	l.mu.Unlock()

	l.wakeup()
	return nil
}

// Now returns the current time.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// State returns the current loop state.
func (l *Loop) State() LoopState {
	return l.state.Load()
}

// Done returns a channel that is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.loopDone
}

// run is the main loop goroutine.
func (l *Loop) run(ctx context.Context) error {
	l.loopGoroutineID.Store(getGoroutineID())
	defer l.loopGoroutineID.Store(0)

	l.logger.Debug().
		Uint64(`loop`, l.id).
		Log(`eventloop: running`)

	for {
		// Check context for external cancellation
		select {
		case <-ctx.Done():
			l.state.terminate()
			l.shutdown()
			return ctx.Err()
		default:
		}

		// Check termination
		if l.state.Load() == StateTerminating {
			l.shutdown()
			return nil
		}

		if !l.tick() {
			if l.exitIdle && l.idle() {
				l.state.terminate()
				l.shutdown()
				return nil
			}
			l.sleep(ctx)
		}
	}
}

// tick is a single iteration of the event loop, returning true if anything
// ran.
func (l *Loop) tick() bool {
	ranTimers := l.runTimers()
	ranTasks := l.runQueue()
	return ranTimers || ranTasks
}

// runTimers executes all timers that were due at the start of the call.
func (l *Loop) runTimers() (ran bool) {
	now := l.Now()
	for {
		l.mu.Lock()
		if len(l.timers) == 0 || l.timers[0].when.After(now) {
			l.mu.Unlock()
			return
		}
		t := heap.Pop(&l.timers).(timer)
		l.mu.Unlock()

		l.safeExecute(t.fn)
		ran = true
	}
}

// runQueue executes the tasks queued prior to the call.
func (l *Loop) runQueue() bool {
	l.mu.Lock()
	tasks := l.queue
	l.queue = nil
	l.mu.Unlock()

	for i, fn := range tasks {
		tasks[i] = nil
		l.safeExecute(fn)
	}

	return len(tasks) != 0
}

// sleep blocks until woken, the next timer is due, or ctx is done.
func (l *Loop) sleep(ctx context.Context) {
	if !l.state.TryTransition(StateRunning, StateSleeping) {
		return
	}
	defer l.state.TryTransition(StateSleeping, StateRunning)

	wait := l.maxWait
	l.mu.Lock()
	pending := len(l.queue) != 0
	if len(l.timers) != 0 {
		if d := l.timers[0].when.Sub(l.Now()); d < wait {
			wait = d
		}
	}
	l.mu.Unlock()

	if pending || wait <= 0 {
		return
	}

	t := time.NewTimer(wait)
	defer t.Stop()

	select {
	case <-l.wake:
	case <-t.C:
	case <-ctx.Done():
	}
}

// idle returns true if there are no queued tasks or pending timers.
func (l *Loop) idle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue) == 0 && len(l.timers) == 0
}

// wakeup signals the loop goroutine, if it is sleeping.
func (l *Loop) wakeup() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// shutdown performs the shutdown sequence.
func (l *Loop) shutdown() {
	for l.runQueue() {
	}

	dropped := l.markTerminated()

	// catch anything submitted before the state was stored
	for l.runQueue() {
	}

	l.logger.Debug().
		Uint64(`loop`, l.id).
		Int(`dropped_timers`, dropped).
		Log(`eventloop: terminated`)
}

// markTerminated stores StateTerminated, discarding pending timers.
func (l *Loop) markTerminated() (dropped int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	dropped = len(l.timers)
	l.timers = nil
	l.state.Store(StateTerminated)
	return
}

// safeExecute executes a task with panic recovery.
func (l *Loop) safeExecute(fn func()) {
	if fn == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			l.report(PanicError{Value: r})
		}
	}()

	fn()
}

func (l *Loop) report(err PanicError) {
	l.logger.Err().
		Uint64(`loop`, l.id).
		Err(err).
		Log(`eventloop: task panicked`)

	if l.uncaught == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			l.logger.Err().
				Interface(`panic`, r).
				Log(`eventloop: uncaught handler panicked`)
		}
	}()

	l.uncaught.OnUncaughtException(err)
}

// isLoopThread checks if we're on the loop goroutine.
func (l *Loop) isLoopThread() bool {
	loopID := l.loopGoroutineID.Load()
	if loopID == 0 {
		return false
	}
	return getGoroutineID() == loopID
}

// getGoroutineID returns the current goroutine's ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
