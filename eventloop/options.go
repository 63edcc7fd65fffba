// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"time"

	"github.com/joeycumines/go-legacyjs/uncaught"
	"github.com/joeycumines/logiface"
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger   *logiface.Logger[logiface.Event]
	uncaught uncaught.Handler
	maxWait  time.Duration
	exitIdle bool
}

// --- Loop Options ---

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithLogger sets the logger used by the loop, e.g. for panicking tasks.
// Nil (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithUncaughtHandler sets a handler that receives a [PanicError] for each
// task or timer callback that panics, in addition to it being logged.
func WithUncaughtHandler(handler uncaught.Handler) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.uncaught = handler
		return nil
	}}
}

// WithMaxWait bounds how long the loop will sleep without checking for
// termination, defaults to 10 seconds. Must be positive.
func WithMaxWait(d time.Duration) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if d <= 0 {
			return ErrInvalidOption
		}
		opts.maxWait = d
		return nil
	}}
}

// WithExitWhenIdle configures the loop to terminate, as if by
// [Loop.Shutdown], once it has no queued tasks and no pending timers, like
// Node.js. Work should be submitted before calling [Loop.Run].
func WithExitWhenIdle() LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.exitIdle = true
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		maxWait: 10 * time.Second,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
