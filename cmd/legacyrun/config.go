package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/urfave/cli"
)

// envPrefix is prepended to every environment variable read by [Config].
const envPrefix = `LEGACYRUN_`

// Config is the runner configuration. Values are read from the environment
// (optionally populated from a dotenv file), then overridden by flags.
type Config struct {
	// LogLevel is the minimum level logged, see logging.ParseLevel.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// LogFormat is one of json or console.
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	// Root is the directory scripts are loaded from. Defaults to the working
	// directory.
	Root string `env:"ROOT"`
	// Strict fails the run if any uncaught exception was reported.
	Strict bool `env:"STRICT"`
	// Debug runs scripts outside of production mode (GWT.isProdMode).
	Debug bool `env:"DEBUG"`
	// Timeout bounds the whole run, if positive.
	Timeout time.Duration `env:"TIMEOUT"`
	// Host selects the event loop, goja (goja_nodejs) or go (Go-native).
	Host string `env:"HOST" envDefault:"goja"`
}

var configFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "env-file",
		Usage: "dotenv file to load, if it exists",
		Value: ".env",
	},
	cli.StringFlag{
		Name:  "log-level",
		Usage: "minimum log level (default: info)",
	},
	cli.StringFlag{
		Name:  "log-format",
		Usage: "log format, json or console (default: json)",
	},
	cli.StringFlag{
		Name:  "root, r",
		Usage: "directory scripts are loaded from (default: working directory)",
	},
	cli.BoolFlag{
		Name:  "strict, s",
		Usage: "exit non-zero if any uncaught exception was reported",
	},
	cli.BoolFlag{
		Name:  "debug",
		Usage: "run scripts outside of production mode",
	},
	cli.StringFlag{
		Name:  "host",
		Usage: "event loop, goja or go (default: goja)",
	},
	cli.DurationFlag{
		Name:  "timeout, t",
		Usage: "maximum duration of the run (default: none)",
	},
}

// loadConfig resolves the [Config] for a command invocation.
func loadConfig(c *cli.Context) (*Config, error) {
	if file := c.String(`env-file`); file != `` {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("legacyrun: load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("legacyrun: parse environment: %w", err)
	}

	if c.IsSet(`log-level`) {
		cfg.LogLevel = c.String(`log-level`)
	}
	if c.IsSet(`log-format`) {
		cfg.LogFormat = c.String(`log-format`)
	}
	if c.IsSet(`root`) {
		cfg.Root = c.String(`root`)
	}
	if c.IsSet(`strict`) {
		cfg.Strict = c.Bool(`strict`)
	}
	if c.IsSet(`debug`) {
		cfg.Debug = c.Bool(`debug`)
	}
	if c.IsSet(`timeout`) {
		cfg.Timeout = c.Duration(`timeout`)
	}
	if c.IsSet(`host`) {
		cfg.Host = c.String(`host`)
	}

	return &cfg, nil
}
