package scheduler

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/joeycumines/go-legacyjs/uncaught"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errRecorder struct {
	errs []error
}

func (x *errRecorder) OnUncaughtException(err error) {
	x.errs = append(x.errs, err)
}

func newTestScheduler(t *testing.T) (*Scheduler, *fakeHost, *errRecorder) {
	t.Helper()
	h := newFakeHost()
	r := new(errRecorder)
	s, err := New(h, WithUncaughtHandler(r))
	require.NoError(t, err)
	return s, h, r
}

func TestNew_nilHost(t *testing.T) {
	s, err := New(nil)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrNilHost)
}

func TestNew_nilOptionsSkipped(t *testing.T) {
	s, err := New(newFakeHost(), nil, WithLogger(nil), nil)
	require.NoError(t, err)
	require.NotNil(t, s)
	require.NotNil(t, s.uncaught)
}

func TestScheduler_ScheduleDeferred_fifo(t *testing.T) {
	s, h, r := newTestScheduler(t)

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		require.NoError(t, s.ScheduleDeferred(ScheduledFunc(func() { order = append(order, i) })))
	}

	assert.Empty(t, order, `deferred commands must not run synchronously`)
	assert.Equal(t, Stats{Deferred: 5, FlushPending: true}, s.Pending())
	assert.Equal(t, 1, h.scheduled, `expected a single drain request`)

	h.yield()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Equal(t, Stats{}, s.Pending())
	assert.Empty(t, r.errs)
}

func TestScheduler_ScheduleDeferred_sameCommandTwice(t *testing.T) {
	s, h, _ := newTestScheduler(t)

	var count int
	cmd := ScheduledFunc(func() { count++ })
	require.NoError(t, s.ScheduleDeferred(cmd))
	require.NoError(t, s.ScheduleDeferred(cmd))

	h.yield()
	assert.Equal(t, 2, count)

	h.yield()
	assert.Equal(t, 2, count)
}

func TestScheduler_ScheduleDeferred_reentrantRunsNextCycle(t *testing.T) {
	s, h, _ := newTestScheduler(t)

	var order []string
	require.NoError(t, s.ScheduleDeferred(ScheduledFunc(func() {
		order = append(order, `D1`)
		require.NoError(t, s.ScheduleDeferred(ScheduledFunc(func() {
			order = append(order, `D2`)
		})))
	})))

	// run exactly one host task
	next := h.next(h.now)
	require.NotNil(t, next)
	next.fn()

	assert.Equal(t, []string{`D1`}, order)
	assert.Equal(t, 1, h.pending())
	assert.Equal(t, Stats{Deferred: 1, FlushPending: true}, s.Pending())

	h.yield()
	assert.Equal(t, []string{`D1`, `D2`}, order)
}

func TestScheduler_ScheduleDeferred_nilCommand(t *testing.T) {
	s, h, r := newTestScheduler(t)

	assert.ErrorIs(t, s.ScheduleDeferred(nil), ErrNilCommand)
	assert.ErrorIs(t, s.ScheduleDeferred(ScheduledFunc(nil)), ErrNilCommand)
	assert.ErrorIs(t, s.ScheduleEntry(nil), ErrNilCommand)
	assert.ErrorIs(t, s.ScheduleFinally(nil), ErrNilCommand)
	assert.ErrorIs(t, s.ScheduleFixedDelay(nil, time.Second), ErrNilCommand)
	assert.ErrorIs(t, s.ScheduleFixedPeriod(RepeatingFunc(nil), time.Second), ErrNilCommand)

	assert.Equal(t, Stats{}, s.Pending())
	assert.Zero(t, h.scheduled)
	assert.Empty(t, r.errs)
}

func TestScheduler_scheduleRepeating_negativeInterval(t *testing.T) {
	s, h, _ := newTestScheduler(t)
	cmd := RepeatingFunc(func() bool { return false })

	assert.ErrorIs(t, s.ScheduleFixedDelay(cmd, -time.Millisecond), ErrInvalidInterval)
	assert.ErrorIs(t, s.ScheduleFixedPeriod(cmd, -time.Millisecond), ErrInvalidInterval)
	assert.Equal(t, Stats{}, s.Pending())
	assert.Zero(t, h.scheduled)
}

func TestScheduler_ScheduleEntry_runsBeforeDeferred(t *testing.T) {
	s, h, _ := newTestScheduler(t)

	var order []string
	require.NoError(t, s.ScheduleDeferred(ScheduledFunc(func() {
		order = append(order, `D1`)
		require.NoError(t, s.ScheduleDeferred(ScheduledFunc(func() { order = append(order, `D2`) })))
		require.NoError(t, s.ScheduleEntry(ScheduledFunc(func() { order = append(order, `E2`) })))
	})))
	require.NoError(t, s.ScheduleEntry(ScheduledFunc(func() { order = append(order, `E1`) })))

	h.yield()

	assert.Equal(t, []string{`E1`, `D1`, `E2`, `D2`}, order)
}

func TestScheduler_ScheduleFinally_afterDeferred(t *testing.T) {
	s, h, _ := newTestScheduler(t)

	var order []string
	require.NoError(t, s.ScheduleDeferred(ScheduledFunc(func() {
		order = append(order, `D1`)
		require.NoError(t, s.ScheduleFinally(ScheduledFunc(func() { order = append(order, `F1`) })))
		assert.Equal(t, []string{`D1`}, order, `finally must not run synchronously within a drain`)
	})))
	require.NoError(t, s.ScheduleDeferred(ScheduledFunc(func() { order = append(order, `D2`) })))

	h.yield()

	assert.Equal(t, []string{`D1`, `D2`, `F1`}, order)
}

func TestScheduler_ScheduleFinally_nestedSameEpisode(t *testing.T) {
	s, h, _ := newTestScheduler(t)

	var order []string
	require.NoError(t, s.ScheduleDeferred(ScheduledFunc(func() {
		order = append(order, `D1`)
		require.NoError(t, s.ScheduleFinally(ScheduledFunc(func() {
			order = append(order, `F1`)
			require.NoError(t, s.ScheduleDeferred(ScheduledFunc(func() { order = append(order, `D2`) })))
			require.NoError(t, s.ScheduleFinally(ScheduledFunc(func() { order = append(order, `F2`) })))
		})))
	})))

	// a single host task must cover D1, F1 and F2
	next := h.next(h.now)
	require.NotNil(t, next)
	next.fn()
	assert.Equal(t, []string{`D1`, `F1`, `F2`}, order)

	h.yield()
	assert.Equal(t, []string{`D1`, `F1`, `F2`, `D2`}, order)
}

func TestScheduler_deferredFinallyScenario(t *testing.T) {
	s, h, r := newTestScheduler(t)

	var (
		flag    bool
		f1Ran   bool
		f2Ran   bool
		f1Saw   bool
		f2Saw   bool
		ordered []string
	)
	d1 := ScheduledFunc(func() {
		ordered = append(ordered, `D1`)
		flag = true
		require.NoError(t, s.ScheduleFinally(ScheduledFunc(func() {
			ordered = append(ordered, `F1`)
			f1Saw = flag
			f1Ran = true
			require.NoError(t, s.ScheduleFinally(ScheduledFunc(func() {
				ordered = append(ordered, `F2`)
				f2Saw = f1Ran
				f2Ran = true
			})))
		})))
	})
	require.NoError(t, s.ScheduleDeferred(d1))

	next := h.next(h.now)
	require.NotNil(t, next)
	next.fn()

	assert.Equal(t, []string{`D1`, `F1`, `F2`}, ordered)
	assert.True(t, f1Saw)
	assert.True(t, f2Saw)
	assert.True(t, f2Ran)
	assert.Zero(t, h.pending())
	assert.Empty(t, r.errs)
}

func TestScheduler_ScheduleFinally_outsideDrain(t *testing.T) {
	s, h, _ := newTestScheduler(t)

	var order []string
	require.NoError(t, s.ScheduleFinally(ScheduledFunc(func() {
		order = append(order, `F1`)
		require.NoError(t, s.ScheduleFinally(ScheduledFunc(func() { order = append(order, `F2`) })))
		require.NoError(t, s.ScheduleDeferred(ScheduledFunc(func() { order = append(order, `D1`) })))
	})))

	assert.Equal(t, []string{`F1`, `F2`}, order)
	assert.Equal(t, Stats{Deferred: 1, FlushPending: true}, s.Pending())
	assert.Equal(t, 1, h.scheduled)

	h.yield()
	assert.Equal(t, []string{`F1`, `F2`, `D1`}, order)
}

func TestScheduler_commandPanic_isolatedAndReportedOnce(t *testing.T) {
	s, h, r := newTestScheduler(t)

	sentinel := errors.New(`some error`)
	var order []string
	require.NoError(t, s.ScheduleDeferred(ScheduledFunc(func() {
		order = append(order, `D1`)
		require.NoError(t, s.ScheduleFinally(ScheduledFunc(func() {
			order = append(order, `F1`)
			panic(`boom`)
		})))
		require.NoError(t, s.ScheduleFinally(ScheduledFunc(func() { order = append(order, `F2`) })))
		panic(sentinel)
	})))
	require.NoError(t, s.ScheduleDeferred(ScheduledFunc(func() { order = append(order, `D2`) })))

	h.yield()
	h.yield()

	assert.Equal(t, []string{`D1`, `D2`, `F1`, `F2`}, order)
	require.Len(t, r.errs, 2)

	var cmdErr *CommandError
	require.ErrorAs(t, r.errs[0], &cmdErr)
	assert.Equal(t, KindDeferred, cmdErr.Kind)
	assert.ErrorIs(t, r.errs[0], sentinel)
	assert.Equal(t, `deferred`, uncaught.Category(r.errs[0]))

	require.ErrorAs(t, r.errs[1], &cmdErr)
	assert.Equal(t, KindFinally, cmdErr.Kind)
	var panicErr PanicError
	require.ErrorAs(t, r.errs[1], &panicErr)
	assert.Equal(t, `boom`, panicErr.Value)
	assert.Equal(t, `scheduler: finally command failed: scheduler: command panicked: boom`, r.errs[1].Error())
}

func TestScheduler_uncaughtHandlerPanic(t *testing.T) {
	h := newFakeHost()
	var buf bytes.Buffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&buf), stumpy.WithTimeField(``)),
	).Logger()

	var calls int
	s, err := New(h,
		WithLogger(logger),
		WithUncaughtHandler(uncaught.HandlerFunc(func(error) {
			calls++
			panic(`handler failure`)
		})),
	)
	require.NoError(t, err)

	var ran bool
	require.NoError(t, s.ScheduleDeferred(ScheduledFunc(func() { panic(`first`) })))
	require.NoError(t, s.ScheduleDeferred(ScheduledFunc(func() { ran = true })))

	h.yield()

	assert.True(t, ran)
	assert.Equal(t, 1, calls)
	assert.Contains(t, buf.String(), `uncaught handler panicked`)
	assert.Contains(t, buf.String(), `handler failure`)
}

func TestScheduler_defaultUncaughtHandler(t *testing.T) {
	h := newFakeHost()
	var buf bytes.Buffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&buf), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelInformational),
	).Logger()

	s, err := New(h, WithLogger(logger))
	require.NoError(t, err)

	require.NoError(t, s.ScheduleDeferred(ScheduledFunc(func() { panic(`boom`) })))
	h.yield()

	assert.Contains(t, buf.String(), `uncaught exception`)
	assert.Contains(t, buf.String(), `"category":"deferred"`)
	assert.Contains(t, buf.String(), `boom`)
}

func TestScheduler_hostUnavailable(t *testing.T) {
	s, h, r := newTestScheduler(t)
	h.err = errFakeHostClosed

	var order []string
	require.NoError(t, s.ScheduleDeferred(ScheduledFunc(func() { order = append(order, `D1`) })))

	require.Len(t, r.errs, 1)
	assert.ErrorIs(t, r.errs[0], ErrHostUnavailable)
	assert.ErrorIs(t, r.errs[0], errFakeHostClosed)
	assert.Equal(t, Stats{Deferred: 1}, s.Pending())

	require.NoError(t, s.ScheduleFixedDelay(RepeatingFunc(func() bool { return false }), time.Second))
	require.Len(t, r.errs, 2)
	assert.ErrorIs(t, r.errs[1], ErrHostUnavailable)

	h.err = nil
	require.NoError(t, s.ScheduleDeferred(ScheduledFunc(func() { order = append(order, `D2`) })))
	h.yield()

	assert.Equal(t, []string{`D1`, `D2`}, order)
}

func TestScheduler_ScheduleFixedDelay_spacing(t *testing.T) {
	s, h, _ := newTestScheduler(t)
	start := h.Now()

	var starts []time.Duration
	require.NoError(t, s.ScheduleFixedDelay(RepeatingFunc(func() bool {
		starts = append(starts, h.Now().Sub(start))
		h.now = h.now.Add(30 * time.Millisecond)
		return true
	}), 100*time.Millisecond))

	h.advance(400 * time.Millisecond)

	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		230 * time.Millisecond,
		360 * time.Millisecond,
	}, starts)
	assert.Equal(t, 1, s.Pending().Repeating)
}

func TestScheduler_ScheduleFixedPeriod_cadence(t *testing.T) {
	s, h, _ := newTestScheduler(t)
	start := h.Now()

	var starts []time.Duration
	require.NoError(t, s.ScheduleFixedPeriod(RepeatingFunc(func() bool {
		starts = append(starts, h.Now().Sub(start))
		h.now = h.now.Add(30 * time.Millisecond)
		return true
	}), 100*time.Millisecond))

	h.advance(400 * time.Millisecond)

	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
		400 * time.Millisecond,
	}, starts)
}

func TestScheduler_ScheduleFixedPeriod_skipsMissedSlots(t *testing.T) {
	s, h, _ := newTestScheduler(t)
	start := h.Now()

	var starts []time.Duration
	require.NoError(t, s.ScheduleFixedPeriod(RepeatingFunc(func() bool {
		starts = append(starts, h.Now().Sub(start))
		if len(starts) == 1 {
			h.now = h.now.Add(250 * time.Millisecond)
		}
		return true
	}), 100*time.Millisecond))

	h.advance(500 * time.Millisecond)

	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		400 * time.Millisecond,
		500 * time.Millisecond,
	}, starts)
}

func TestScheduler_repeating_stopsAfterFalse(t *testing.T) {
	for _, kind := range []Kind{KindFixedDelay, KindFixedPeriod} {
		t.Run(kind.String(), func(t *testing.T) {
			s, h, _ := newTestScheduler(t)

			var count int
			cmd := RepeatingFunc(func() bool {
				count++
				return count < 3
			})
			require.NoError(t, s.scheduleRepeating(kind, cmd, 10*time.Millisecond))

			h.advance(time.Second)

			assert.Equal(t, 3, count)
			assert.Equal(t, Stats{}, s.Pending())
			assert.Zero(t, h.pending())
		})
	}
}

func TestScheduler_repeating_panicRemovesOnlyFailingCommand(t *testing.T) {
	s, h, r := newTestScheduler(t)

	var failing, healthy int
	require.NoError(t, s.ScheduleFixedPeriod(RepeatingFunc(func() bool {
		failing++
		panic(`repeating failure`)
	}), 10*time.Millisecond))
	require.NoError(t, s.ScheduleFixedDelay(RepeatingFunc(func() bool {
		healthy++
		return true
	}), 10*time.Millisecond))

	h.advance(50 * time.Millisecond)

	assert.Equal(t, 1, failing)
	assert.Equal(t, 5, healthy)
	require.Len(t, r.errs, 1)
	var cmdErr *CommandError
	require.ErrorAs(t, r.errs[0], &cmdErr)
	assert.Equal(t, KindFixedPeriod, cmdErr.Kind)
	assert.Equal(t, 1, s.Pending().Repeating)
}

func TestScheduler_repeating_registrationOrder(t *testing.T) {
	s, h, _ := newTestScheduler(t)

	var order []string
	for _, name := range []string{`A`, `B`, `C`} {
		name := name
		require.NoError(t, s.ScheduleFixedDelay(RepeatingFunc(func() bool {
			order = append(order, name)
			return false
		}), 50*time.Millisecond))
	}
	assert.Equal(t, 1, h.scheduled, `same due time must share a timer`)

	h.advance(50 * time.Millisecond)
	assert.Equal(t, []string{`A`, `B`, `C`}, order)
}

func TestScheduler_repeating_rearmsEarlier(t *testing.T) {
	s, h, _ := newTestScheduler(t)

	var order []string
	require.NoError(t, s.ScheduleFixedDelay(RepeatingFunc(func() bool {
		order = append(order, `slow`)
		return false
	}), 100*time.Millisecond))
	require.NoError(t, s.ScheduleFixedDelay(RepeatingFunc(func() bool {
		order = append(order, `fast`)
		return false
	}), 10*time.Millisecond))

	h.advance(10 * time.Millisecond)
	assert.Equal(t, []string{`fast`}, order)

	h.advance(90 * time.Millisecond)
	assert.Equal(t, []string{`fast`, `slow`}, order)

	h.advance(time.Second)
	assert.Equal(t, []string{`fast`, `slow`}, order)
}

func TestScheduler_repeating_schedulesOtherCategories(t *testing.T) {
	s, h, _ := newTestScheduler(t)

	var order []string
	require.NoError(t, s.ScheduleFixedDelay(RepeatingFunc(func() bool {
		order = append(order, `R`)
		require.NoError(t, s.ScheduleDeferred(ScheduledFunc(func() { order = append(order, `D`) })))
		require.NoError(t, s.ScheduleFinally(ScheduledFunc(func() { order = append(order, `F`) })))
		return false
	}), 10*time.Millisecond))

	h.advance(10 * time.Millisecond)

	assert.Equal(t, []string{`R`, `F`, `D`}, order)
}

func TestScheduler_repeating_registeredDuringTick(t *testing.T) {
	s, h, _ := newTestScheduler(t)

	var order []string
	require.NoError(t, s.ScheduleFixedDelay(RepeatingFunc(func() bool {
		order = append(order, `outer`)
		require.NoError(t, s.ScheduleFixedDelay(RepeatingFunc(func() bool {
			order = append(order, `inner`)
			return false
		}), 0))
		return false
	}), 10*time.Millisecond))

	h.advance(10 * time.Millisecond)

	assert.Equal(t, []string{`outer`, `inner`}, order)
	assert.Equal(t, Stats{}, s.Pending())
}

func TestKind_String(t *testing.T) {
	for k, want := range map[Kind]string{
		KindDeferred:    `deferred`,
		KindEntry:       `entry`,
		KindFinally:     `finally`,
		KindFixedDelay:  `fixed-delay`,
		KindFixedPeriod: `fixed-period`,
		0:               `unknown`,
	} {
		assert.Equal(t, want, k.String())
		assert.Equal(t, k == KindFixedDelay || k == KindFixedPeriod, k.Repeating())
	}
}
