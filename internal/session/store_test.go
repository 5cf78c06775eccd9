package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/boltforge/authgate/internal/models"
)

func TestStore_StartsEmpty(t *testing.T) {
	store := NewStore()

	state := store.State()
	assert.Nil(t, state.User)
	assert.Nil(t, state.Profile)
	assert.Nil(t, state.Err)
	assert.False(t, state.IsLoading)
	assert.False(t, state.IsInitialized)
}

func TestStore_SubscribeReceivesEveryTransition(t *testing.T) {
	store := NewStore()

	var seen []models.AuthState
	store.Subscribe(func(st models.AuthState) {
		seen = append(seen, st)
	})

	store.update(func(st *models.AuthState) { st.IsLoading = true })
	store.update(func(st *models.AuthState) {
		st.User = &models.Session{UserID: "u1"}
		st.IsLoading = false
	})

	assert.Len(t, seen, 2)
	assert.True(t, seen[0].IsLoading)
	assert.Equal(t, "u1", seen[1].User.UserID)
	assert.False(t, seen[1].IsLoading)
}

func TestStore_UnsubscribeStopsNotifications(t *testing.T) {
	store := NewStore()

	calls := 0
	unsubscribe := store.Subscribe(func(models.AuthState) { calls++ })

	store.update(func(st *models.AuthState) { st.IsLoading = true })
	unsubscribe()
	store.update(func(st *models.AuthState) { st.IsLoading = false })

	assert.Equal(t, 1, calls)
}

func TestStore_ListenerMayResubscribeDuringNotification(t *testing.T) {
	store := NewStore()

	// Listeners run outside the store lock, so calling back in must not
	// deadlock.
	done := make(chan struct{})
	var unsubscribe func()
	unsubscribe = store.Subscribe(func(models.AuthState) {
		unsubscribe()
		close(done)
	})

	store.update(func(st *models.AuthState) { st.IsLoading = true })
	<-done
}

func TestStore_MarkInitializedIsSticky(t *testing.T) {
	store := NewStore()

	store.markInitialized()
	assert.True(t, store.State().IsInitialized)

	// Later transitions never unset it.
	store.update(func(st *models.AuthState) {
		st.User = nil
		st.Profile = nil
		st.Err = nil
	})
	assert.True(t, store.State().IsInitialized)
}
