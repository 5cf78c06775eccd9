package ratelimit_test

import (
	"testing"
	"time"

	"github.com/boltforge/authgate/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for limiter tests.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testConfig() ratelimit.Config {
	return ratelimit.Config{
		MaxAttempts:   5,
		Window:        15 * time.Minute,
		BlockDuration: 15 * time.Minute,
	}
}

func TestLimiterAllowsBelowThreshold(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.NewLimiterWithClock(testConfig(), clock.Now)

	for i := 0; i < 4; i++ {
		assert.True(t, l.CanAttempt())
		assert.True(t, l.RecordAttempt(), "attempt %d should still be permitted", i+1)
	}
	assert.Equal(t, 1, l.AttemptsRemaining())
}

func TestLimiterBlocksAtThreshold(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.NewLimiterWithClock(testConfig(), clock.Now)

	for i := 0; i < 4; i++ {
		require.True(t, l.RecordAttempt())
	}
	// 5th attempt trips the lockout.
	assert.False(t, l.RecordAttempt())
	assert.False(t, l.CanAttempt())
	assert.Equal(t, 0, l.AttemptsRemaining())
	assert.Equal(t, int((15*time.Minute)/time.Second), l.RemainingTime())
}

func TestLimiterBlockedAttemptDoesNotExtendLockout(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.NewLimiterWithClock(testConfig(), clock.Now)

	for i := 0; i < 5; i++ {
		l.RecordAttempt()
	}
	require.False(t, l.CanAttempt())

	clock.Advance(10 * time.Minute)
	// A 6th attempt while blocked is rejected and must not move the deadline.
	assert.False(t, l.RecordAttempt())
	assert.Equal(t, int((5*time.Minute)/time.Second), l.RemainingTime())
}

func TestLimiterUnblocksAfterBlockDuration(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.NewLimiterWithClock(testConfig(), clock.Now)

	for i := 0; i < 5; i++ {
		l.RecordAttempt()
	}
	require.False(t, l.CanAttempt())

	clock.Advance(15*time.Minute + time.Second)
	assert.True(t, l.CanAttempt())
	// Lockout expiry clears the recorded attempts entirely.
	assert.Equal(t, 5, l.AttemptsRemaining())
	assert.Equal(t, 0, l.RemainingTime())
}

func TestLimiterSlidingWindowPruning(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.NewLimiterWithClock(testConfig(), clock.Now)

	// 4 attempts spaced window/3 apart: by the 5th, the first has aged out,
	// so the threshold is never reached.
	for i := 0; i < 4; i++ {
		require.True(t, l.RecordAttempt())
		clock.Advance(5 * time.Minute)
	}

	assert.True(t, l.RecordAttempt())
	assert.True(t, l.CanAttempt())
}

func TestLimiterResetCancelsLockout(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.NewLimiterWithClock(testConfig(), clock.Now)

	for i := 0; i < 5; i++ {
		l.RecordAttempt()
	}
	require.False(t, l.CanAttempt())

	l.Reset()
	assert.True(t, l.CanAttempt())
	assert.Equal(t, 5, l.AttemptsRemaining())
	assert.Equal(t, 0, l.RemainingTime())
}

func TestLimiterRemainingTimeRoundsUp(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.NewLimiterWithClock(testConfig(), clock.Now)

	for i := 0; i < 5; i++ {
		l.RecordAttempt()
	}
	clock.Advance(15*time.Minute - 1500*time.Millisecond)
	assert.Equal(t, 2, l.RemainingTime())
}

func TestRegistryReturnsSameLimiterPerKey(t *testing.T) {
	clock := newFakeClock()
	r := ratelimit.NewRegistryWithClock(testConfig(), clock.Now)

	a := r.Get("203.0.113.10")
	b := r.Get("203.0.113.10")
	c := r.Get("203.0.113.11")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, r.Len())
}

func TestRegistryPruneIdleKeepsBlockedEntries(t *testing.T) {
	clock := newFakeClock()
	r := ratelimit.NewRegistryWithClock(testConfig(), clock.Now)

	blocked := r.Get("203.0.113.10")
	for i := 0; i < 5; i++ {
		blocked.RecordAttempt()
	}
	r.Get("203.0.113.11") // idle, untouched

	clock.Advance(10 * time.Minute)
	removed := r.PruneIdle(5 * time.Minute)

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, r.Len())
	assert.False(t, r.Get("203.0.113.10").CanAttempt())
}
