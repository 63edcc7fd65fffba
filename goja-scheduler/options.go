package gojascheduler

import (
	"github.com/joeycumines/go-legacyjs/compat"
	"github.com/joeycumines/go-legacyjs/uncaught"
	"github.com/joeycumines/logiface"
	"github.com/spf13/afero"
)

// options holds configuration shared by [Host] and [Adapter].
type options struct {
	logger   *logiface.Logger[logiface.Event]
	uncaught uncaught.Handler
	fs       afero.Fs
	env      compat.Env
	console  bool
}

// Option configures a [Host] or an [Adapter]. Options that don't apply to
// the receiver are ignored.
type Option interface {
	apply(*options) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyFunc func(*options) error
}

func (o *optionImpl) apply(opts *options) error {
	return o.applyFunc(opts)
}

// WithLogger sets the logger. Nil (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *options) error {
		opts.logger = logger
		return nil
	}}
}

// WithUncaughtHandler sets the Go handler for uncaught exceptions. For an
// [Adapter], it is used when no script handler has been set, see
// GWT.setUncaughtExceptionHandler. Defaults to an [uncaught.LogHandler].
func WithUncaughtHandler(handler uncaught.Handler) Option {
	return &optionImpl{func(opts *options) error {
		opts.uncaught = handler
		return nil
	}}
}

// WithFs sets the filesystem scripts are loaded from, for both require and
// ScriptInjector.fromUrl. Defaults to [afero.NewOsFs].
func WithFs(fs afero.Fs) Option {
	return &optionImpl{func(opts *options) error {
		if fs == nil {
			return ErrInvalidOption
		}
		opts.fs = fs
		return nil
	}}
}

// WithEnv sets the environment reported by GWT.isScript and related
// predicates. Defaults to a script environment, in production mode.
func WithEnv(env compat.Env) Option {
	return &optionImpl{func(opts *options) error {
		opts.env = env
		return nil
	}}
}

// WithConsole enables or disables the console global, for a [Host].
// Enabled by default.
func WithConsole(enabled bool) Option {
	return &optionImpl{func(opts *options) error {
		opts.console = enabled
		return nil
	}}
}

// resolveOptions applies Option instances to options.
func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{
		env:     compat.Env{Script: true},
		console: true,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.fs == nil {
		cfg.fs = afero.NewOsFs()
	}
	if cfg.uncaught == nil {
		cfg.uncaught = uncaught.NewLogHandler(cfg.logger, uncaught.DefaultRates())
	}
	return cfg, nil
}
