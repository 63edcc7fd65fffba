package scheduler

import (
	"github.com/joeycumines/go-legacyjs/uncaught"
	"github.com/joeycumines/logiface"
)

// schedulerOptions holds configuration options for Scheduler creation.
type schedulerOptions struct {
	uncaught uncaught.Handler
	logger   *logiface.Logger[logiface.Event]
}

// Option configures a Scheduler instance.
type Option interface {
	applyScheduler(*schedulerOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applySchedulerFunc func(*schedulerOptions) error
}

func (o *optionImpl) applyScheduler(opts *schedulerOptions) error {
	return o.applySchedulerFunc(opts)
}

// WithUncaughtHandler sets the handler that receives every command failure.
// Defaults to an [uncaught.LogHandler] using the logger provided via
// [WithLogger], rate limited per [uncaught.DefaultRates].
func WithUncaughtHandler(handler uncaught.Handler) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.uncaught = handler
		return nil
	}}
}

// WithLogger sets the logger used for diagnostics, e.g. a panicking uncaught
// handler. Nil (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// resolveOptions applies Option instances to schedulerOptions.
func resolveOptions(opts []Option) (*schedulerOptions, error) {
	cfg := &schedulerOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.uncaught == nil {
		cfg.uncaught = uncaught.NewLogHandler(cfg.logger, uncaught.DefaultRates())
	}
	return cfg, nil
}
