package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDuration(t *testing.T) {
	h := newFakeHost()
	d := NewDuration(h)

	assert.Equal(t, h.now, d.Start())
	assert.Equal(t, 0, d.ElapsedMillis())

	h.now = h.now.Add(1500*time.Millisecond + 999*time.Microsecond)
	assert.Equal(t, 1500*time.Millisecond+999*time.Microsecond, d.Elapsed())
	assert.Equal(t, 1500, d.ElapsedMillis())
	assert.Equal(t, float64(1_700_000_000_000), d.StartMillis())
}

func TestNewDuration_nilClock(t *testing.T) {
	before := time.Now()
	d := NewDuration(nil)
	assert.False(t, d.Start().Before(before))
	assert.GreaterOrEqual(t, d.Elapsed(), time.Duration(0))
}

func TestUnixMillis(t *testing.T) {
	assert.Equal(t, 1_700_000_000_123.5, UnixMillis(time.Unix(1_700_000_000, 123_500_000)))
	assert.Equal(t, float64(0), UnixMillis(time.Unix(0, 0)))
}
