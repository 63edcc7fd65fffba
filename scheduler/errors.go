package scheduler

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrNilCommand is returned when a nil command is passed to a Schedule*
	// method. The queues are not modified.
	ErrNilCommand = errors.New("scheduler: nil command")

	// ErrInvalidInterval is returned when a repeating command is scheduled
	// with a negative delay or period.
	ErrInvalidInterval = errors.New("scheduler: invalid interval")

	// ErrNilHost is returned by New if the host is nil.
	ErrNilHost = errors.New("scheduler: nil host")

	// ErrHostUnavailable wraps errors returned by [Host.ScheduleTimer],
	// which are reported via the uncaught handler.
	ErrHostUnavailable = errors.New("scheduler: host unavailable")
)

// PanicError wraps a value recovered from a panicking command.
type PanicError struct {
	Value any
}

// CommandError is reported via the uncaught handler when a command fails.
type CommandError struct {
	Err  error
	Kind Kind
}

func (e PanicError) Error() string {
	return fmt.Sprintf("scheduler: command panicked: %v", e.Value)
}

// Unwrap returns the panic value, if it is an error, enabling use with
// [errors.Is] and [errors.As].
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func (e *CommandError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("scheduler: %s command failed", e.Kind)
	}
	return fmt.Sprintf("scheduler: %s command failed: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// Category returns the kind of the failed command, for use by uncaught
// handlers that group failures.
func (e *CommandError) Category() string {
	return e.Kind.String()
}
