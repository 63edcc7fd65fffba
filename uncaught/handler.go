// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package uncaught models the "uncaught exception" channel: the global hook
// that receives failures which escaped user code running on a host event
// loop, e.g. a scheduled command that panicked.
//
// Producers (such as the scheduler package) must route every captured
// failure to a [Handler] exactly once, and must not otherwise surface it.
package uncaught

import (
	"errors"
)

type (
	// Handler receives failures that escaped to the top level.
	//
	// Implementations are called on the host loop's goroutine, and should not
	// block for long periods.
	Handler interface {
		OnUncaughtException(err error)
	}

	// HandlerFunc implements Handler.
	HandlerFunc func(err error)

	// Categorizer may be implemented by errors passed to a Handler, to
	// provide a coarse category, e.g. for rate limiting.
	Categorizer interface {
		Category() string
	}

	multiHandler []Handler
)

var (
	// compile time assertions

	_ Handler = HandlerFunc(nil)
	_ Handler = multiHandler(nil)
)

// DefaultCategory is returned by [Category] for errors that don't provide
// one.
const DefaultCategory = `uncaught`

// OnUncaughtException calls the receiver, if non-nil.
func (x HandlerFunc) OnUncaughtException(err error) {
	if x != nil {
		x(err)
	}
}

// Multi combines handlers, calling each in turn. Nil handlers are skipped.
func Multi(handlers ...Handler) Handler {
	var r multiHandler
	for _, h := range handlers {
		if h != nil {
			r = append(r, h)
		}
	}
	if len(r) == 1 {
		return r[0]
	}
	return r
}

func (x multiHandler) OnUncaughtException(err error) {
	for _, h := range x {
		h.OnUncaughtException(err)
	}
}

// Chain appends next to original, such that both are called, original last.
// Either may be nil. This mirrors appending to an existing onerror handler.
func Chain(original, next Handler) Handler {
	switch {
	case original == nil:
		return next
	case next == nil:
		return original
	default:
		return multiHandler{next, original}
	}
}

// Category returns the category of err, per [Categorizer], searching the
// chain using errors.As, falling back to [DefaultCategory].
func Category(err error) string {
	var c Categorizer
	if errors.As(err, &c) {
		if v := c.Category(); v != `` {
			return v
		}
	}
	return DefaultCategory
}
