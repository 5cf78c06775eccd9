package cache_test

import (
	"testing"
	"time"

	"github.com/boltforge/authgate/internal/cache"
	"github.com/stretchr/testify/assert"
)

func TestCacheGetSet(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := cache.NewWithClock[string](time.Minute, func() time.Time { return now })

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("profile:u1", "ada")
	got, ok := c.Get("profile:u1")
	assert.True(t, ok)
	assert.Equal(t, "ada", got)
}

func TestCacheExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := cache.NewWithClock[int](time.Minute, func() time.Time { return now })

	c.Set("k", 42)
	now = now.Add(2 * time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry is dropped on read")
}

func TestCacheSweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := cache.NewWithClock[int](time.Minute, func() time.Time { return now })

	c.Set("a", 1)
	c.Set("b", 2)
	now = now.Add(90 * time.Second)
	c.Set("c", 3)

	removed := c.Sweep()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())

	got, ok := c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, got)
}

func TestCacheDeleteAndClear(t *testing.T) {
	c := cache.New[int](time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}
