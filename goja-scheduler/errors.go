package gojascheduler

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

// Standard errors.
var (
	// ErrHostTerminated is returned when work is submitted to a [Host] that
	// has been stopped.
	ErrHostTerminated = errors.New("gojascheduler: host has been terminated")

	// ErrHostRunning is returned by [Host.Run] if the host is already
	// running in the foreground.
	ErrHostRunning = errors.New("gojascheduler: host is already running")

	// ErrNilRuntime is returned by [New] when runtime is nil.
	ErrNilRuntime = errors.New("gojascheduler: nil runtime")

	// ErrInvalidOption is returned for invalid option values.
	ErrInvalidOption = errors.New("gojascheduler: invalid option")
)

// PanicError wraps a value recovered from a panicking loop job, that wasn't
// otherwise handled.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("gojascheduler: job panicked: %v", e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Category implements uncaught.Categorizer.
func (e PanicError) Category() string {
	return `host`
}

// ScriptError is a JavaScript value reported as an uncaught exception, e.g.
// via GWT.reportUncaughtException.
type ScriptError struct {
	Value goja.Value
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	if e.Value == nil {
		return "gojascheduler: uncaught script exception: undefined"
	}
	return "gojascheduler: uncaught script exception: " + e.Value.String()
}

// Unwrap returns the Go error wrapped by the value, if it is a GoError.
func (e *ScriptError) Unwrap() error {
	if obj, ok := e.Value.(*goja.Object); ok {
		if v := obj.Get(`value`); v != nil {
			if err, ok := v.Export().(error); ok {
				return err
			}
		}
	}
	return nil
}

// Category implements uncaught.Categorizer.
func (e *ScriptError) Category() string {
	return `script`
}
