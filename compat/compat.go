// Package compat implements the small, environment level, legacy hooks that
// aren't part of the scheduler, including those that are deliberately
// unsupported.
package compat

import (
	"errors"
	"fmt"

	"github.com/joeycumines/logiface"
)

// ErrUnsupportedOperation indicates a legacy operation that has no
// equivalent in this environment. Callers must not treat it as a no-op.
var ErrUnsupportedOperation = errors.New(`compat: unsupported operation`)

// Env describes the runtime, for the legacy environment predicates.
type Env struct {
	// Script indicates code is running within a script engine, rather than
	// natively (e.g. in Go tests).
	Script bool
	// Debug indicates a development or debugging session, which disables
	// production mode.
	Debug bool
}

// RunAsync models the legacy code splitting hook. It always fails, and
// never calls callback.
func RunAsync(callback any) error {
	return fmt.Errorf(`%w: runAsync: pick either split points or compiler chunks`, ErrUnsupportedOperation)
}

// Create models the legacy deferred binding hook. It always fails.
func Create(class any) error {
	return fmt.Errorf(`%w: create: deferred binding no longer produces generated code (%T)`, ErrUnsupportedOperation, class)
}

// IsScript returns true when running within a script engine.
func (x Env) IsScript() bool { return x.Script }

// IsClient is equivalent to IsScript.
func (x Env) IsClient() bool { return x.IsScript() }

// IsProdMode returns true when running within a script engine, outside of a
// debugging session.
func (x Env) IsProdMode() bool { return x.Script && !x.Debug }

// Log writes msg, and the optional err, at info level.
func Log(logger *logiface.Logger[logiface.Event], msg string, err error) {
	b := logger.Info()
	if err != nil {
		b = b.Err(err)
	}
	b.Log(msg)
}
