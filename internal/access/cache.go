package access

import (
	"sync"
	"time"
)

// contextCache is a single mutable slot with a short TTL. It coalesces the
// burst of resolve calls a page load produces without holding permissions
// longer than a few seconds. The slot remembers which user it was built
// for: a lookup by any other user is a miss, never a leak.
type contextCache struct {
	mu    sync.Mutex
	value *Context
	ts    time.Time
	ttl   time.Duration
	gen   uint64
	now   func() time.Time
}

func newContextCache(ttl time.Duration) *contextCache {
	return &contextCache{
		ttl: ttl,
		now: time.Now,
	}
}

// get returns the cached context while it is fresh and owned by userID,
// nil otherwise.
func (c *contextCache) get(userID string) *Context {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.value == nil || c.value.UserID != userID {
		return nil
	}
	if c.now().Sub(c.ts) >= c.ttl {
		return nil
	}
	return c.value
}

// generation returns the current invalidation generation. A build records
// it before fetching so set can tell whether an invalidate happened while
// the build was in flight.
func (c *contextCache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// set stores the context and stamps it. A write whose generation predates
// the latest invalidate is dropped: the snapshot was built from data the
// invalidation declared stale.
func (c *contextCache) set(v *Context, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return
	}
	c.value = v
	c.ts = c.now()
}

// invalidate unconditionally clears the slot.
func (c *contextCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.value = nil
	c.ts = time.Time{}
	c.gen++
}
