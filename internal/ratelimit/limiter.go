// Package ratelimit implements the sliding-window-with-lockout counter that
// guards repeated sign-in attempts from one client. Only attempts inside the
// trailing window count toward the threshold; hitting the threshold starts a
// lockout during which attempts are rejected without being recorded.
package ratelimit

import (
	"sync"
	"time"
)

// Config holds the limiter thresholds.
type Config struct {
	MaxAttempts   int
	Window        time.Duration
	BlockDuration time.Duration
}

// DefaultConfig matches the sign-in form's production settings.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   5,
		Window:        15 * time.Minute,
		BlockDuration: 15 * time.Minute,
	}
}

// Limiter tracks attempts for a single client key. The blocked state is a
// pure function of (now, blockedUntil); no timers are involved, which keeps
// the limiter trivially testable with an injected clock.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu           sync.Mutex
	attempts     []time.Time
	blockedUntil time.Time
}

// NewLimiter creates a Limiter using the wall clock.
func NewLimiter(cfg Config) *Limiter {
	return NewLimiterWithClock(cfg, time.Now)
}

// NewLimiterWithClock creates a Limiter with an injectable clock for tests.
func NewLimiterWithClock(cfg Config, now func() time.Time) *Limiter {
	return &Limiter{cfg: cfg, now: now}
}

// CanAttempt reports whether a new attempt is currently permitted.
func (l *Limiter) CanAttempt() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.blocked(l.now())
}

// RecordAttempt registers an attempt and reports whether the caller is still
// permitted to attempt. While blocked, the attempt is rejected without being
// recorded, so an in-progress lockout is never extended.
func (l *Limiter) RecordAttempt() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.blocked(now) {
		return false
	}

	l.prune(now)
	l.attempts = append(l.attempts, now)

	if len(l.attempts) >= l.cfg.MaxAttempts {
		l.blockedUntil = now.Add(l.cfg.BlockDuration)
		return false
	}
	return true
}

// Reset clears all recorded attempts and cancels any active lockout.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = nil
	l.blockedUntil = time.Time{}
}

// RemainingTime returns whole seconds until the lockout ends, or 0 when not
// blocked. Partial seconds round up so the countdown never shows 0 early.
func (l *Limiter) RemainingTime() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !l.blocked(now) {
		return 0
	}
	remaining := l.blockedUntil.Sub(now)
	return int((remaining + time.Second - 1) / time.Second)
}

// AttemptsRemaining returns how many attempts are left before lockout.
func (l *Limiter) AttemptsRemaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.blocked(now) {
		return 0
	}
	l.prune(now)
	remaining := l.cfg.MaxAttempts - len(l.attempts)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// blocked evaluates the lockout against now, lazily expiring it. Expiry
// clears the recorded attempts so the window starts fresh.
func (l *Limiter) blocked(now time.Time) bool {
	if l.blockedUntil.IsZero() {
		return false
	}
	if now.Before(l.blockedUntil) {
		return true
	}
	l.attempts = nil
	l.blockedUntil = time.Time{}
	return false
}

// prune drops attempts that have aged out of the sliding window.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	kept := l.attempts[:0]
	for _, t := range l.attempts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.attempts = kept
}
