package ratelimit

import (
	"sync"
	"time"
)

// Registry hands out one Limiter per client key (typically the client IP)
// and remembers when each was last touched so idle entries can be swept.
type Registry struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	limiters map[string]*entry
}

type entry struct {
	limiter  *Limiter
	lastSeen time.Time
}

// NewRegistry creates a Registry using the wall clock.
func NewRegistry(cfg Config) *Registry {
	return NewRegistryWithClock(cfg, time.Now)
}

// NewRegistryWithClock creates a Registry with an injectable clock.
func NewRegistryWithClock(cfg Config, now func() time.Time) *Registry {
	return &Registry{
		cfg:      cfg,
		now:      now,
		limiters: make(map[string]*entry),
	}
}

// Get returns the limiter for key, creating it on first use.
func (r *Registry) Get(key string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.limiters[key]
	if !ok {
		e = &entry{limiter: NewLimiterWithClock(r.cfg, r.now)}
		r.limiters[key] = e
	}
	e.lastSeen = r.now()
	return e.limiter
}

// PruneIdle removes entries not touched within maxIdle and not currently
// blocked. Blocked entries survive so a lockout cannot be dodged by idling.
func (r *Registry) PruneIdle(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	removed := 0
	for key, e := range r.limiters {
		if e.lastSeen.Before(cutoff) && e.limiter.CanAttempt() && e.limiter.AttemptsRemaining() == r.cfg.MaxAttempts {
			delete(r.limiters, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked client keys.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}
