package cache_test

import (
	"testing"
	"time"

	"github.com/boddenberg/ifta-reports-go/internal/infra/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summary struct {
	Reports int
}

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[*summary](5 * time.Minute)
	defer c.Close()

	c.Set("7:2025:1", &summary{Reports: 3})
	val, ok := c.Get("7:2025:1")
	require.True(t, ok)
	assert.Equal(t, 3, val.Reports)
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[*summary](5 * time.Minute)
	defer c.Close()

	_, ok := c.Get("nonexistent")
	assert.False(t, ok)
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)
	defer c.Close()

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("key1")
	assert.False(t, ok, "expected cache entry to be expired")
}

func TestCache_SweepRemovesExpired(t *testing.T) {
	c := cache.New[string](20 * time.Millisecond)
	defer c.Close()

	c.Set("key1", "value1")
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	assert.False(t, ok, "expected key to be deleted")
}

func TestCache_SetIfVersion(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	v := c.Version("key1")
	assert.True(t, c.SetIfVersion("key1", "fresh", v))
	got, ok := c.Get("key1")
	require.True(t, ok)
	assert.Equal(t, "fresh", got)

	stale := c.Version("key1")
	c.Delete("key1")
	assert.False(t, c.SetIfVersion("key1", "stale", stale), "delete after read wins")
	_, ok = c.Get("key1")
	assert.False(t, ok)

	assert.True(t, c.SetIfVersion("key1", "again", c.Version("key1")))
	assert.Zero(t, c.Version("other"), "versions are per key")
}

func TestCache_ZeroTTLDisablesCaching(t *testing.T) {
	c := cache.New[string](0)
	defer c.Close()

	c.Set("key1", "value1")
	_, ok := c.Get("key1")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := cache.New[string](time.Minute)
	assert.NotPanics(t, func() {
		c.Close()
		c.Close()
	})
}
