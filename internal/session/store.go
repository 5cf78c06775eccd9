// Package session implements the authentication session lifecycle: a
// subscribable state store, and a manager that establishes, validates and
// tears down sessions against the identity provider while keeping exactly one
// marketplace profile bound to each signed-in user.
package session

import (
	"sync"

	"github.com/boltforge/authgate/internal/models"
)

// Store is the single source of truth for one client's AuthState. It is a
// passive container: every mutation flows through update, and listeners are
// notified synchronously after each transition.
type Store struct {
	mu        sync.Mutex
	state     models.AuthState
	listeners map[int]func(models.AuthState)
	nextID    int
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{listeners: make(map[int]func(models.AuthState))}
}

// State returns a snapshot of the current AuthState.
func (s *Store) State() models.AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers a listener invoked after every state change and
// returns its unsubscribe function.
func (s *Store) Subscribe(fn func(models.AuthState)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// update applies mutate to the state and notifies all listeners with the
// resulting snapshot. Listeners run outside the lock so they may call back
// into the store.
func (s *Store) update(mutate func(*models.AuthState)) {
	s.mu.Lock()
	mutate(&s.state)
	snapshot := s.state
	fns := make([]func(models.AuthState), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

// markInitialized flips IsInitialized, which only ever transitions
// false to true, once per client lifetime.
func (s *Store) markInitialized() {
	s.update(func(st *models.AuthState) {
		st.IsInitialized = true
	})
}
