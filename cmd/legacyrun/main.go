// Command legacyrun runs legacy scripts, with the deferred command scheduler
// and the rest of the legacy environment bound as globals.
//
// Scripts run in order, in a single runtime, and the process exits once no
// scheduled work remains.
//
//	legacyrun [--strict] [--root dir] [--host goja|go] script.js [script.js...]
//
// Configuration may also be provided via LEGACYRUN_* environment variables,
// or a dotenv file, see [Config].
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-legacyjs/compat"
	"github.com/joeycumines/go-legacyjs/eventloop"
	gojascheduler "github.com/joeycumines/go-legacyjs/goja-scheduler"
	"github.com/joeycumines/go-legacyjs/logging"
	"github.com/joeycumines/go-legacyjs/scheduler"
	"github.com/joeycumines/go-legacyjs/uncaught"
	"github.com/joeycumines/logiface"
	"github.com/spf13/afero"
	"github.com/urfave/cli"
)

var (
	// errUncaught indicates a strict run that reported uncaught exceptions.
	errUncaught = errors.New(`legacyrun: uncaught exceptions reported`)

	errUnknownHost = errors.New(`legacyrun: unknown host`)
)

// hostRunner runs fn on the host's goroutine, then runs the host until it
// is idle, or ctx is done.
type hostRunner func(ctx context.Context, fn func(vm *goja.Runtime)) error

func main() {
	if err := run(context.Background(), os.Args, os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUncaught) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	app := cli.NewApp()
	app.Name = `legacyrun`
	app.HelpName = `legacyrun`
	app.Usage = `run legacy scripts atop the deferred command scheduler`
	app.UsageText = `legacyrun [options] script.js [script.js...]`
	app.HideVersion = true
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Flags = configFlags
	app.Action = func(c *cli.Context) error {
		if !c.Args().Present() {
			return errors.New(`legacyrun: no scripts specified`)
		}
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		return runScripts(ctx, cfg, c.Args(), stderr)
	}
	return app.Run(args)
}

func runScripts(ctx context.Context, cfg *Config, scripts []string, stderr io.Writer) error {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Config{
		Writer: stderr,
		Format: format,
		Level:  level,
	})
	if err != nil {
		return err
	}

	var fsys afero.Fs = afero.NewOsFs()
	if cfg.Root != `` {
		fsys = afero.NewBasePathFs(fsys, cfg.Root)
	}

	var reported atomic.Int64
	handler := uncaught.Multi(
		uncaught.NewLogHandler(logger, uncaught.DefaultRates()),
		uncaught.HandlerFunc(func(error) { reported.Add(1) }),
	)
	opts := []gojascheduler.Option{
		gojascheduler.WithLogger(logger),
		gojascheduler.WithFs(fsys),
		gojascheduler.WithEnv(compat.Env{Script: true, Debug: cfg.Debug}),
		gojascheduler.WithUncaughtHandler(handler),
	}

	host, runHost, err := newHost(cfg.Host, logger, handler, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var scriptErr error
	if err := runHost(ctx, func(vm *goja.Runtime) {
		adapter, err := gojascheduler.New(host, vm, opts...)
		if err != nil {
			scriptErr = err
			return
		}
		if err := adapter.Bind(); err != nil {
			scriptErr = err
			return
		}
		for _, script := range scripts {
			src, err := afero.ReadFile(fsys, script)
			if err != nil {
				scriptErr = fmt.Errorf("legacyrun: read %s: %w", script, err)
				return
			}
			logger.Debug().
				Str(`script`, script).
				Log(`legacyrun: running script`)
			if _, err := vm.RunScript(script, string(src)); err != nil {
				scriptErr = fmt.Errorf("legacyrun: %s: %w", script, err)
				return
			}
		}
	}); err != nil {
		return fmt.Errorf("legacyrun: %w", err)
	}
	if scriptErr != nil {
		logger.Err().
			Err(scriptErr).
			Log(`legacyrun: script failed`)
		return scriptErr
	}

	n := reported.Load()
	logger.Info().
		Int(`scripts`, len(scripts)).
		Int64(`uncaught`, n).
		Log(`legacyrun: done`)

	if cfg.Strict && n != 0 {
		return fmt.Errorf("%w: %d", errUncaught, n)
	}
	return nil
}

// newHost initializes the named scheduler host.
func newHost(name string, logger *logiface.Logger[logiface.Event], handler uncaught.Handler, opts []gojascheduler.Option) (scheduler.Host, hostRunner, error) {
	switch name {
	case `goja`, ``:
		host, err := gojascheduler.NewHost(opts...)
		if err != nil {
			return nil, nil, err
		}
		return host, host.Run, nil

	case `go`:
		vm, err := gojascheduler.NewRuntime(opts...)
		if err != nil {
			return nil, nil, err
		}
		loop, err := eventloop.New(
			eventloop.WithLogger(logger),
			eventloop.WithUncaughtHandler(handler),
			eventloop.WithExitWhenIdle(),
		)
		if err != nil {
			return nil, nil, err
		}
		return loop, func(ctx context.Context, fn func(vm *goja.Runtime)) error {
			if err := loop.Submit(func() { fn(vm) }); err != nil {
				return err
			}
			return loop.Run(ctx)
		}, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", errUnknownHost, name)
	}
}
