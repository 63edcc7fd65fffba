// Package logging builds the [logiface] loggers used throughout this module,
// from a small, environment friendly, configuration.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/rs/zerolog"
)

// Format selects the output encoding.
type Format string

const (
	// FormatJSON writes one JSON object per line, using stumpy.
	FormatJSON Format = `json`
	// FormatConsole writes human-readable lines, using zerolog's
	// ConsoleWriter.
	FormatConsole Format = `console`
)

// Config models the logger configuration.
type Config struct {
	// Writer defaults to os.Stderr.
	Writer io.Writer
	// Format defaults to FormatJSON.
	Format Format
	// Level is the minimum level that will be written. The zero value is
	// LevelEmergency, use [ParseLevel] or [Default].
	Level logiface.Level
	// NoTime disables the time field, e.g. for deterministic output.
	NoTime bool
}

var (
	// ErrUnknownLevel is returned by ParseLevel.
	ErrUnknownLevel = errors.New(`logging: unknown level`)

	// ErrUnknownFormat is returned by ParseFormat and New.
	ErrUnknownFormat = errors.New(`logging: unknown format`)
)

// Default returns the default configuration, JSON to stderr at info level.
func Default() Config {
	return Config{
		Writer: os.Stderr,
		Format: FormatJSON,
		Level:  logiface.LevelInformational,
	}
}

// New builds a logger from cfg.
func New(cfg Config) (*logiface.Logger[logiface.Event], error) {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	switch cfg.Format {
	case FormatJSON, ``:
		opts := []stumpy.Option{stumpy.WithWriter(w)}
		if cfg.NoTime {
			opts = append(opts, stumpy.WithTimeField(``))
		}
		return stumpy.L.New(
			stumpy.L.WithStumpy(opts...),
			stumpy.L.WithLevel(cfg.Level),
		).Logger(), nil
	case FormatConsole:
		cw := zerolog.ConsoleWriter{Out: w, NoColor: true}
		if cfg.NoTime {
			cw.PartsExclude = []string{zerolog.TimestampFieldName}
		}
		z := zerolog.New(cw).Level(zerolog.TraceLevel)
		if !cfg.NoTime {
			z = z.With().Timestamp().Logger()
		}
		return NewZerolog(z, cfg.Level), nil
	default:
		return nil, fmt.Errorf(`%w: %q`, ErrUnknownFormat, cfg.Format)
	}
}

// ParseLevel parses a level name, accepting both the syslog keywords used
// by [logiface.Level.String], and common aliases, e.g. "error", "warn".
func ParseLevel(s string) (logiface.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case `disabled`, `off`, `none`:
		return logiface.LevelDisabled, nil
	case `emerg`, `emergency`, `panic`:
		return logiface.LevelEmergency, nil
	case `alert`:
		return logiface.LevelAlert, nil
	case `crit`, `critical`, `fatal`:
		return logiface.LevelCritical, nil
	case `err`, `error`:
		return logiface.LevelError, nil
	case `warning`, `warn`:
		return logiface.LevelWarning, nil
	case `notice`:
		return logiface.LevelNotice, nil
	case `info`, `informational`, ``:
		return logiface.LevelInformational, nil
	case `debug`:
		return logiface.LevelDebug, nil
	case `trace`:
		return logiface.LevelTrace, nil
	default:
		return logiface.LevelDisabled, fmt.Errorf(`%w: %q`, ErrUnknownLevel, s)
	}
}

// ParseFormat parses a Format, case-insensitively. Empty means FormatJSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case ``:
		return FormatJSON, nil
	case FormatJSON, FormatConsole:
		return f, nil
	default:
		return ``, fmt.Errorf(`%w: %q`, ErrUnknownFormat, s)
	}
}
