package ratelimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestFixedWindowLimits(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	rl := NewFixedWindowLimiter(2, 5*time.Second)
	rl.now = c.now

	ok, _ := rl.Allow("1.2.3.4")
	assert.True(t, ok)
	ok, _ = rl.Allow("1.2.3.4")
	assert.True(t, ok)

	c.advance(time.Second)
	ok, retry := rl.Allow("1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, 4*time.Second, retry)

	ok, _ = rl.Allow("5.6.7.8")
	assert.True(t, ok, "keys are independent")

	c.advance(4 * time.Second)
	ok, _ = rl.Allow("1.2.3.4")
	assert.True(t, ok, "new window")
}

func TestFixedWindowSweep(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	rl := NewFixedWindowLimiter(1, time.Second)
	rl.now = c.now

	rl.Allow("a")
	c.advance(500 * time.Millisecond)
	rl.Allow("b")
	c.advance(600 * time.Millisecond)

	rl.sweep()
	assert.NotContains(t, rl.clients, "a")
	assert.Contains(t, rl.clients, "b")
}
