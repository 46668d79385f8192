package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheOwnership(t *testing.T) {
	c := newContextCache(5 * time.Second)
	c.set(&Context{UserID: "alice"}, c.generation())

	require.NotNil(t, c.get("alice"))
	assert.Nil(t, c.get("bob"), "another user's lookup must miss, never leak")
}

func TestCacheTTLExpiry(t *testing.T) {
	now := time.Now()
	c := newContextCache(5 * time.Second)
	c.now = func() time.Time { return now }

	c.set(&Context{UserID: "alice"}, c.generation())
	require.NotNil(t, c.get("alice"))

	now = now.Add(4999 * time.Millisecond)
	assert.NotNil(t, c.get("alice"), "still fresh just under the TTL")

	now = now.Add(time.Millisecond)
	assert.Nil(t, c.get("alice"), "stale exactly at the TTL")
}

func TestCacheInvalidate(t *testing.T) {
	c := newContextCache(time.Minute)
	c.set(&Context{UserID: "alice"}, c.generation())

	c.invalidate()
	assert.Nil(t, c.get("alice"))
}

func TestCacheInvalidateDropsInFlightWrite(t *testing.T) {
	c := newContextCache(time.Minute)

	// A build starts, an invalidate lands, then the build finishes.
	gen := c.generation()
	c.invalidate()
	c.set(&Context{UserID: "alice"}, gen)

	assert.Nil(t, c.get("alice"), "a snapshot built before the invalidate must not be cached")

	c.set(&Context{UserID: "alice"}, c.generation())
	assert.NotNil(t, c.get("alice"), "a fresh build caches normally")
}

func TestCacheSingleSlot(t *testing.T) {
	c := newContextCache(time.Minute)
	c.set(&Context{UserID: "alice"}, c.generation())
	c.set(&Context{UserID: "bob"}, c.generation())

	assert.Nil(t, c.get("alice"), "the slot holds only the latest context")
	assert.NotNil(t, c.get("bob"))
}
