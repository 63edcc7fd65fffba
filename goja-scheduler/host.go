package gojascheduler

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/go-legacyjs/scheduler"
	"github.com/joeycumines/go-legacyjs/uncaught"
	"github.com/joeycumines/logiface"
	"github.com/spf13/afero"
)

// Host implements [scheduler.Host] using a goja_nodejs event loop, which
// owns the [goja.Runtime]. Every job, including scheduler timers, runs on
// the loop goroutine.
//
// Host counts its own outstanding jobs (timers and [Host.RunOnLoop]
// functions), which is what [Host.Run] waits on.
//
// Instances must be initialized using [NewHost].
type Host struct {
	loop       *eventloop.EventLoop
	logger     *logiface.Logger[logiface.Event]
	uncaught   uncaught.Handler
	pending    atomic.Int64
	foreground atomic.Bool
	stopped    atomic.Bool
}

var (
	// compile time assertions

	_ scheduler.Host = (*Host)(nil)
)

// NewHost initializes a Host. The loop's require registry loads modules
// from the configured filesystem, see [WithFs].
func NewHost(opts ...Option) (*Host, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	registry := require.NewRegistry(require.WithLoader(sourceLoader(cfg.fs)))
	return &Host{
		loop: eventloop.NewEventLoop(
			eventloop.WithRegistry(registry),
			eventloop.EnableConsole(cfg.console),
		),
		logger:   cfg.logger,
		uncaught: cfg.uncaught,
	}, nil
}

// NewRuntime initializes a standalone runtime, with require and console
// configured as per [NewHost], for use with some other [scheduler.Host],
// e.g. a Go-native loop. The caller must confine the runtime to the host's
// goroutine.
func NewRuntime(opts ...Option) (*goja.Runtime, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	vm := goja.New()
	require.NewRegistry(require.WithLoader(sourceLoader(cfg.fs))).Enable(vm)
	if cfg.console {
		console.Enable(vm)
	}
	return vm, nil
}

// Loop returns the underlying event loop.
func (h *Host) Loop() *eventloop.EventLoop {
	return h.loop
}

// Now returns the current time.
func (h *Host) Now() time.Time {
	return time.Now()
}

// Pending returns the number of outstanding jobs.
func (h *Host) Pending() int64 {
	return h.pending.Load()
}

// ScheduleTimer implements [scheduler.Host].
func (h *Host) ScheduleTimer(delay time.Duration, fn func()) error {
	if h.stopped.Load() {
		return ErrHostTerminated
	}
	if delay < 0 {
		delay = 0
	}
	h.pending.Add(1)
	if h.loop.SetTimeout(func(*goja.Runtime) { h.runJob(fn) }, delay) == nil {
		h.pending.Add(-1)
		return ErrHostTerminated
	}
	return nil
}

// RunOnLoop schedules fn to run on the loop goroutine, with access to the
// runtime. Safe to call from any goroutine.
func (h *Host) RunOnLoop(fn func(*goja.Runtime)) error {
	if h.stopped.Load() {
		return ErrHostTerminated
	}
	h.pending.Add(1)
	if !h.loop.RunOnLoop(func(vm *goja.Runtime) { h.runJob(func() { fn(vm) }) }) {
		h.pending.Add(-1)
		return ErrHostTerminated
	}
	return nil
}

// Run calls fn on the loop goroutine, then runs the loop, on the calling
// goroutine, until there are no more outstanding jobs, or ctx is done.
// Repeating scheduler commands keep the loop alive until they stop. Timers
// set directly by scripts (setTimeout) are not counted.
//
// If ctx is done the loop is terminated, discarding pending timers, and
// the host is stopped.
func (h *Host) Run(ctx context.Context, fn func(*goja.Runtime)) error {
	if h.stopped.Load() {
		return ErrHostTerminated
	}
	if !h.foreground.CompareAndSwap(false, true) {
		return ErrHostRunning
	}
	defer h.foreground.Store(false)

	if err := h.RunOnLoop(fn); err != nil {
		return err
	}

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			// stops from the loop, so it also applies if the loop hasn't started yet
			h.loop.RunOnLoop(func(*goja.Runtime) { h.loop.StopNoWait() })
		case <-done:
		}
	}()

	h.loop.StartInForeground()

	close(done)
	<-exited

	if err := ctx.Err(); err != nil {
		h.stopped.Store(true)
		h.loop.Terminate()
		h.pending.Store(0)
		return err
	}
	return nil
}

// Start starts the loop in the background. See also [Host.Stop].
func (h *Host) Start() {
	h.stopped.Store(false)
	h.loop.Start()
}

// Stop stops a loop started by [Host.Start], waiting for the current job.
// Subsequent jobs are rejected with [ErrHostTerminated], until the next
// call to [Host.Start]. Must not be called from the loop goroutine.
func (h *Host) Stop() {
	h.stopped.Store(true)
	h.loop.Stop()
}

// runJob runs fn then, if it was the last outstanding job of a foreground
// run, stops the loop. Jobs scheduled by fn are counted before the check.
func (h *Host) runJob(fn func()) {
	h.safeExecute(fn)
	if h.pending.Add(-1) == 0 && h.foreground.Load() {
		h.loop.StopNoWait()
	}
}

func (h *Host) safeExecute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.report(PanicError{Value: r})
		}
	}()
	fn()
}

func (h *Host) report(err error) {
	h.logger.Err().
		Err(err).
		Log(`gojascheduler: job panicked`)

	defer func() {
		if r := recover(); r != nil {
			h.logger.Err().
				Interface(`panic`, r).
				Log(`gojascheduler: uncaught handler panicked`)
		}
	}()

	h.uncaught.OnUncaughtException(err)
}

// sourceLoader adapts fsys for the require registry, which expects
// [require.ModuleFileDoesNotExistError] for missing files and directories.
func sourceLoader(fsys afero.Fs) require.SourceLoader {
	return func(path string) ([]byte, error) {
		path = filepath.FromSlash(path)
		info, err := fsys.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, require.ModuleFileDoesNotExistError
			}
			return nil, err
		}
		if info.IsDir() {
			return nil, require.ModuleFileDoesNotExistError
		}
		return afero.ReadFile(fsys, path)
	}
}
