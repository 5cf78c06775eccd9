package session

import (
	"sync"
	"time"
)

// Registry holds one Manager per browser client, keyed by the client cookie.
// Managers for idle clients are swept by the background cleanup manager.
type Registry struct {
	factory func() *Manager
	now     func() time.Time

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	manager  *Manager
	lastSeen time.Time
}

// NewRegistry creates a Registry. factory builds a fresh Manager (with its
// own Store) for a client seen for the first time.
func NewRegistry(factory func() *Manager) *Registry {
	return &Registry{
		factory: factory,
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

// Get returns the Manager for clientID, creating one on first use.
func (r *Registry) Get(clientID string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[clientID]
	if !ok {
		c = &client{manager: r.factory()}
		r.clients[clientID] = c
	}
	c.lastSeen = r.now()
	return c.manager
}

// Drop removes the client's manager, forgetting its session token.
func (r *Registry) Drop(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, clientID)
}

// PruneIdle removes managers not touched within maxIdle and reports how many
// were dropped.
func (r *Registry) PruneIdle(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	removed := 0
	for id, c := range r.clients {
		if c.lastSeen.Before(cutoff) {
			delete(r.clients, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
