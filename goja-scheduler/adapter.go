package gojascheduler

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-legacyjs/compat"
	"github.com/joeycumines/go-legacyjs/jsonutil"
	"github.com/joeycumines/go-legacyjs/scheduler"
	"github.com/joeycumines/go-legacyjs/uncaught"
	"github.com/joeycumines/logiface"
	"github.com/spf13/afero"
)

// Adapter binds a [scheduler.Scheduler], and the legacy environment hooks,
// into a Goja runtime.
//
// The runtime is not thread-safe. Every method, and every bound function,
// must be called on the goroutine that owns the runtime, which must also be
// the goroutine the host runs timers on, e.g. via [Host.RunOnLoop].
type Adapter struct {
	runtime  *goja.Runtime
	host     scheduler.Host
	sched    *scheduler.Scheduler
	logger   *logiface.Logger[logiface.Event]
	fallback uncaught.Handler
	fs       afero.Fs
	env      compat.Env

	// script handler, see GWT.setUncaughtExceptionHandler
	handler      goja.Callable
	handlerThis  goja.Value
	handlerValue goja.Value
}

var (
	// compile time assertions

	_ uncaught.Handler = (*Adapter)(nil)
)

// New creates an Adapter, and the scheduler it binds, using the given host
// and runtime. Failed commands are routed through the adapter's own
// uncaught handler, see [Adapter.OnUncaughtException].
func New(host scheduler.Host, runtime *goja.Runtime, opts ...Option) (*Adapter, error) {
	if runtime == nil {
		return nil, ErrNilRuntime
	}

	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	a := &Adapter{
		runtime:  runtime,
		host:     host,
		logger:   cfg.logger,
		fallback: cfg.uncaught,
		fs:       cfg.fs,
		env:      cfg.env,
	}

	a.sched, err = scheduler.New(host,
		scheduler.WithUncaughtHandler(a),
		scheduler.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, err
	}

	return a, nil
}

// Runtime returns the Goja runtime.
func (a *Adapter) Runtime() *goja.Runtime {
	return a.runtime
}

// Scheduler returns the scheduler bound by the adapter.
func (a *Adapter) Scheduler() *scheduler.Scheduler {
	return a.sched
}

// Bind creates the legacy globals in the runtime's global scope.
//
// After calling Bind(), the following globals become available in
// JavaScript:
//   - Scheduler.scheduleDeferred(cmd)
//   - Scheduler.scheduleEntry(cmd)
//   - Scheduler.scheduleFinally(cmd)
//   - Scheduler.scheduleFixedDelay(cmd, delayMs)
//   - Scheduler.scheduleFixedPeriod(cmd, delayMs)
//   - GWT.reportUncaughtException(e)
//   - GWT.setUncaughtExceptionHandler(handler)
//   - GWT.getUncaughtExceptionHandler() → handler or null
//   - GWT.log(message, e?)
//   - GWT.isClient(), GWT.isProdMode(), GWT.isScript()
//   - GWT.runAsync(callback), GWT.create(classLiteral) → throws
//   - JsonUtils.stringify(obj, space?), JsonUtils.escapeValue(s)
//   - JsonUtils.safeToEval(s), JsonUtils.safeEval(s)
//   - new Duration(), Duration.currentTimeMillis()
//   - ScriptInjector.fromString(src).inject()
//   - ScriptInjector.fromUrl(path).setCallback(callback).inject()
//
// Commands may be functions, or objects with an execute method. Handlers
// and callbacks may likewise be objects, with onUncaughtException, or
// onSuccess and onFailure methods.
func (a *Adapter) Bind() error {
	for _, binding := range [...]struct {
		name  string
		value func() (goja.Value, error)
	}{
		{`Scheduler`, a.schedulerObject},
		{`GWT`, a.gwtObject},
		{`JsonUtils`, a.jsonUtilsObject},
		{`Duration`, a.durationConstructor},
		{`ScriptInjector`, a.scriptInjectorObject},
	} {
		value, err := binding.value()
		if err != nil {
			return fmt.Errorf("gojascheduler: bind %s: %w", binding.name, err)
		}
		if err := a.runtime.Set(binding.name, value); err != nil {
			return fmt.Errorf("gojascheduler: bind %s: %w", binding.name, err)
		}
	}
	return nil
}

// OnUncaughtException implements [uncaught.Handler]. If a script handler has
// been set, it receives the failure, converted to a script value. Otherwise,
// or if the script handler throws, the failure is passed to the Go handler.
func (a *Adapter) OnUncaughtException(err error) {
	if a.handler != nil {
		_, callErr := a.handler(a.handlerThis, a.toValue(err))
		if callErr == nil {
			return
		}
		err = fmt.Errorf("gojascheduler: uncaught exception handler failed: %w: while handling: %w", callErr, err)
	}
	a.fallback.OnUncaughtException(err)
}

func newObject(r *goja.Runtime, props map[string]any) (goja.Value, error) {
	obj := r.NewObject()
	for k, v := range props {
		if err := obj.Set(k, v); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func (a *Adapter) schedulerObject() (goja.Value, error) {
	return newObject(a.runtime, map[string]any{
		`scheduleDeferred`:    a.scheduleCommand(`scheduleDeferred`, a.sched.ScheduleDeferred),
		`scheduleEntry`:       a.scheduleCommand(`scheduleEntry`, a.sched.ScheduleEntry),
		`scheduleFinally`:     a.scheduleCommand(`scheduleFinally`, a.sched.ScheduleFinally),
		`scheduleFixedDelay`:  a.scheduleRepeating(`scheduleFixedDelay`, a.sched.ScheduleFixedDelay),
		`scheduleFixedPeriod`: a.scheduleRepeating(`scheduleFixedPeriod`, a.sched.ScheduleFixedPeriod),
	})
}

func (a *Adapter) scheduleCommand(name string, schedule func(scheduler.ScheduledCommand) error) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn := a.assertMethod(call.Argument(0), `execute`, name+` requires a function or command`)
		if err := schedule(scheduler.ScheduledFunc(func() {
			if _, err := fn(); err != nil {
				panic(err)
			}
		})); err != nil {
			a.throw(err)
		}
		return goja.Undefined()
	}
}

func (a *Adapter) scheduleRepeating(name string, schedule func(scheduler.RepeatingCommand, time.Duration) error) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn := a.assertMethod(call.Argument(0), `execute`, name+` requires a function or command`)
		interval := toMillis(call.Argument(1))
		if err := schedule(scheduler.RepeatingFunc(func() bool {
			v, err := fn()
			if err != nil {
				panic(err)
			}
			return v.ToBoolean()
		}), interval); err != nil {
			a.throw(err)
		}
		return goja.Undefined()
	}
}

func (a *Adapter) gwtObject() (goja.Value, error) {
	return newObject(a.runtime, map[string]any{
		`reportUncaughtException`:     a.reportUncaughtException,
		`setUncaughtExceptionHandler`: a.setUncaughtExceptionHandler,
		`getUncaughtExceptionHandler`: a.getUncaughtExceptionHandler,
		`log`:                         a.log,
		`isClient`:                    func(goja.FunctionCall) goja.Value { return a.runtime.ToValue(a.env.IsClient()) },
		`isProdMode`:                  func(goja.FunctionCall) goja.Value { return a.runtime.ToValue(a.env.IsProdMode()) },
		`isScript`:                    func(goja.FunctionCall) goja.Value { return a.runtime.ToValue(a.env.IsScript()) },
		`runAsync`: func(call goja.FunctionCall) goja.Value {
			a.throw(compat.RunAsync(call.Argument(0).Export()))
			return nil
		},
		`create`: func(call goja.FunctionCall) goja.Value {
			a.throw(compat.Create(call.Argument(0).Export()))
			return nil
		},
	})
}

func (a *Adapter) reportUncaughtException(call goja.FunctionCall) goja.Value {
	a.OnUncaughtException(a.toError(call.Argument(0)))
	return goja.Undefined()
}

func (a *Adapter) setUncaughtExceptionHandler(call goja.FunctionCall) goja.Value {
	v := call.Argument(0)
	if goja.IsUndefined(v) || goja.IsNull(v) {
		a.handler, a.handlerThis, a.handlerValue = nil, nil, nil
		return goja.Undefined()
	}
	fn, this, ok := a.method(v, `onUncaughtException`)
	if !ok {
		panic(a.runtime.NewTypeError(`setUncaughtExceptionHandler requires a function or handler`))
	}
	a.handler, a.handlerThis, a.handlerValue = fn, this, v
	return goja.Undefined()
}

func (a *Adapter) getUncaughtExceptionHandler(goja.FunctionCall) goja.Value {
	if a.handlerValue == nil {
		return goja.Null()
	}
	return a.handlerValue
}

func (a *Adapter) log(call goja.FunctionCall) goja.Value {
	var err error
	if v := call.Argument(1); !goja.IsUndefined(v) && !goja.IsNull(v) {
		err = a.toError(v)
	}
	compat.Log(a.logger, call.Argument(0).String(), err)
	return goja.Undefined()
}

func (a *Adapter) jsonUtilsObject() (goja.Value, error) {
	return newObject(a.runtime, map[string]any{
		`stringify`: a.stringify,
		`escapeValue`: func(call goja.FunctionCall) goja.Value {
			return a.runtime.ToValue(jsonutil.EscapeValue(call.Argument(0).String()))
		},
		`safeToEval`: func(call goja.FunctionCall) goja.Value {
			return a.runtime.ToValue(jsonutil.SafeToEval(call.Argument(0).String()))
		},
		`safeEval`: func(call goja.FunctionCall) goja.Value {
			v, err := jsonutil.SafeEval(call.Argument(0).String())
			if err != nil {
				a.throw(err)
			}
			return a.runtime.ToValue(v)
		},
	})
}

func (a *Adapter) stringify(call goja.FunctionCall) goja.Value {
	var value any
	if obj, ok := call.Argument(0).(*goja.Object); ok {
		// marshals the same as JSON.stringify, preserving key order
		value = obj
	} else {
		value = call.Argument(0).Export()
	}

	var space string
	switch v := call.Argument(1); {
	case goja.IsUndefined(v) || goja.IsNull(v):
	case isNumber(v):
		space = strings.Repeat(` `, int(max(0, min(10, v.ToInteger()))))
	default:
		space = v.String()
	}

	s, err := jsonutil.Stringify(value, space)
	if err != nil {
		a.throw(err)
	}
	return a.runtime.ToValue(s)
}

func (a *Adapter) durationConstructor() (goja.Value, error) {
	ctor := a.runtime.ToValue(func(call goja.ConstructorCall) *goja.Object {
		d := scheduler.NewDuration(a.host)
		_ = call.This.Set(`elapsedMillis`, func(goja.FunctionCall) goja.Value {
			return a.runtime.ToValue(d.ElapsedMillis())
		})
		_ = call.This.Set(`getStartMillis`, func(goja.FunctionCall) goja.Value {
			return a.runtime.ToValue(d.StartMillis())
		})
		return nil
	}).(*goja.Object)
	if err := ctor.Set(`currentTimeMillis`, func(goja.FunctionCall) goja.Value {
		return a.runtime.ToValue(scheduler.UnixMillis(a.host.Now()))
	}); err != nil {
		return nil, err
	}
	return ctor, nil
}

func (a *Adapter) scriptInjectorObject() (goja.Value, error) {
	return newObject(a.runtime, map[string]any{
		`fromString`: a.scriptFromString,
		`fromUrl`:    a.scriptFromURL,
	})
}

func (a *Adapter) scriptFromString(call goja.FunctionCall) goja.Value {
	src := call.Argument(0).String()
	builder := a.runtime.NewObject()
	_ = builder.Set(`inject`, func(goja.FunctionCall) goja.Value {
		if _, err := a.runtime.RunString(src); err != nil {
			a.throw(err)
		}
		return goja.Undefined()
	})
	return builder
}

// scriptFromURL loads scripts from the adapter's filesystem, asynchronously,
// as a deferred command. The callback, if any, is notified of the outcome.
// Failures without a callback are reported as uncaught exceptions.
func (a *Adapter) scriptFromURL(call goja.FunctionCall) goja.Value {
	path := call.Argument(0).String()
	var callback goja.Value
	builder := a.runtime.NewObject()
	_ = builder.Set(`setCallback`, func(call goja.FunctionCall) goja.Value {
		callback = call.Argument(0)
		return builder
	})
	_ = builder.Set(`inject`, func(goja.FunctionCall) goja.Value {
		callback := callback
		if err := a.sched.ScheduleDeferred(scheduler.ScheduledFunc(func() {
			a.injectFile(path, callback)
		})); err != nil {
			a.throw(err)
		}
		return goja.Undefined()
	})
	return builder
}

func (a *Adapter) injectFile(path string, callback goja.Value) {
	src, err := afero.ReadFile(a.fs, path)
	if err == nil {
		_, err = a.runtime.RunScript(path, string(src))
	}

	if err != nil {
		a.logger.Debug().
			Str(`path`, path).
			Err(err).
			Log(`gojascheduler: script injection failed`)
		if !a.callMethod(callback, `onFailure`, a.toValue(err)) {
			panic(err)
		}
		return
	}

	a.callMethod(callback, `onSuccess`, goja.Undefined())
}

// callMethod calls a method of v, if present, panicking if it throws.
func (a *Adapter) callMethod(v goja.Value, name string, args ...goja.Value) bool {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return false
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return false
	}
	fn, ok := goja.AssertFunction(obj.Get(name))
	if !ok {
		return false
	}
	if _, err := fn(obj, args...); err != nil {
		panic(err)
	}
	return true
}

// method resolves v as either a function, or an object with the named
// method, returning the callable and the receiver.
func (a *Adapter) method(v goja.Value, name string) (goja.Callable, goja.Value, bool) {
	if fn, ok := goja.AssertFunction(v); ok {
		return fn, goja.Undefined(), true
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, nil, false
	}
	fn, ok := goja.AssertFunction(obj.Get(name))
	if !ok {
		return nil, nil, false
	}
	return fn, obj, true
}

// assertMethod is like method, but throws a TypeError on failure, and binds
// the receiver.
func (a *Adapter) assertMethod(v goja.Value, name, msg string) func() (goja.Value, error) {
	fn, this, ok := a.method(v, name)
	if !ok {
		panic(a.runtime.NewTypeError(msg))
	}
	return func() (goja.Value, error) {
		return fn(this)
	}
}

// throw raises err in the runtime, as the original value if it was thrown
// by a script, or as a GoError. Nil errors are ignored.
func (a *Adapter) throw(err error) {
	if err == nil {
		return
	}
	if exc, ok := err.(*goja.Exception); ok {
		panic(exc)
	}
	panic(a.runtime.NewGoError(err))
}

// toValue converts err to a script value, unwrapping values that originated
// from scripts.
func (a *Adapter) toValue(err error) goja.Value {
	var scriptErr *ScriptError
	if errors.As(err, &scriptErr) && scriptErr.Value != nil {
		return scriptErr.Value
	}
	var exc *goja.Exception
	if errors.As(err, &exc) && exc.Value() != nil {
		return exc.Value()
	}
	return a.runtime.NewGoError(err)
}

// toError converts a script value to an error, unwrapping GoError values.
func (a *Adapter) toError(v goja.Value) error {
	if v != nil {
		if err, ok := v.Export().(error); ok {
			return err
		}
	}
	return &ScriptError{Value: v}
}

func isNumber(v goja.Value) bool {
	t := v.ExportType()
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int64, reflect.Float64:
		return true
	}
	return false
}

// toMillis converts v, a number of milliseconds, to a duration, saturating
// instead of overflowing.
func toMillis(v goja.Value) time.Duration {
	const limit = math.MaxInt64 / int64(time.Millisecond)
	ms := v.ToInteger()
	switch {
	case ms > limit:
		ms = limit
	case ms < -limit:
		ms = -limit
	}
	return time.Duration(ms) * time.Millisecond
}
