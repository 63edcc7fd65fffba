package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for _, tc := range [...]struct {
		in   string
		want logiface.Level
	}{
		{``, logiface.LevelInformational},
		{`info`, logiface.LevelInformational},
		{` INFO `, logiface.LevelInformational},
		{`err`, logiface.LevelError},
		{`error`, logiface.LevelError},
		{`warn`, logiface.LevelWarning},
		{`debug`, logiface.LevelDebug},
		{`trace`, logiface.LevelTrace},
		{`crit`, logiface.LevelCritical},
		{`off`, logiface.LevelDisabled},
	} {
		got, err := ParseLevel(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseLevel(`verbose`)
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestParseLevel_roundTripsString(t *testing.T) {
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		got, err := ParseLevel(level.String())
		require.NoError(t, err)
		assert.Equal(t, level, got)
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(``)
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat(`Console`)
	require.NoError(t, err)
	assert.Equal(t, FormatConsole, f)

	_, err = ParseFormat(`xml`)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestNew_json(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf, Level: logiface.LevelInformational, NoTime: true})
	require.NoError(t, err)

	logger.Debug().Log(`hidden`)
	logger.Info().Str(`k`, `v`).Log(`shown`)
	logger.Err().Err(errors.New(`bad`)).Log(`failed`)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"k":"v"`)
	assert.Contains(t, lines[0], `"msg":"shown"`)
	assert.Contains(t, lines[1], `bad`)
	assert.NotContains(t, buf.String(), `hidden`)
}

func TestNew_console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf, Format: FormatConsole, Level: logiface.LevelDebug, NoTime: true})
	require.NoError(t, err)

	logger.Trace().Log(`hidden`)
	logger.Debug().Int(`n`, 7).Log(`shown`)
	logger.Crit().Log(`critical but not fatal`)

	out := buf.String()
	assert.Contains(t, out, `shown`)
	assert.Contains(t, out, `n=7`)
	assert.Contains(t, out, `critical but not fatal`)
	assert.NotContains(t, out, `hidden`)
}

func TestNew_unknownFormat(t *testing.T) {
	logger, err := New(Config{Format: `xml`})
	assert.Nil(t, logger)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.Equal(t, logiface.LevelInformational, cfg.Level)
	assert.NotNil(t, cfg.Writer)
}
