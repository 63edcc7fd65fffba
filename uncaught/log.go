// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package uncaught

import (
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// LogHandler is a [Handler] that writes each failure to a logiface logger,
// at error level. Output may be rate limited per [Category], in which case
// suppressed failures are counted, and the count is attached to the next
// failure that is written, for that handler.
//
// Instances must be initialized using [NewLogHandler].
type LogHandler struct {
	logger     *logiface.Logger[logiface.Event]
	limiter    *catrate.Limiter
	suppressed atomic.Uint64
}

var _ Handler = (*LogHandler)(nil)

// NewLogHandler initializes a LogHandler. A nil logger disables output, but
// suppression is still tracked. The rates parameter is optional, see
// [catrate.NewLimiter] for the format. Invalid rates will cause a panic.
func NewLogHandler(logger *logiface.Logger[logiface.Event], rates map[time.Duration]int) *LogHandler {
	h := &LogHandler{logger: logger}
	if len(rates) != 0 {
		h.limiter = catrate.NewLimiter(rates)
	}
	return h
}

// DefaultRates limits each category to 10 reports per second, and 100 per
// minute.
func DefaultRates() map[time.Duration]int {
	return map[time.Duration]int{
		time.Second: 10,
		time.Minute: 100,
	}
}

// OnUncaughtException implements [Handler].
func (x *LogHandler) OnUncaughtException(err error) {
	if err == nil {
		return
	}

	category := Category(err)

	if _, ok := x.limiter.Allow(category); !ok {
		x.suppressed.Add(1)
		return
	}

	b := x.logger.Err()
	if !b.Enabled() {
		return
	}
	if n := x.suppressed.Swap(0); n != 0 {
		b = b.Uint64(`suppressed`, n)
	}
	b.Str(`category`, category).
		Err(err).
		Log(`uncaught exception`)
}

// Suppressed returns the number of failures that were rate limited, since
// the last failure that was written.
func (x *LogHandler) Suppressed() uint64 {
	return x.suppressed.Load()
}
