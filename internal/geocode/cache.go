package geocode

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Cached memoizes successful lookups for ttl. Misses and errors are not
// cached. Expired entries are dropped when read and on every insert.
type Cached struct {
	provider Provider
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	loc *Location
	at  time.Time
}

func NewCached(provider Provider, ttl time.Duration) *Cached {
	return &Cached{
		provider: provider,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]cacheEntry),
	}
}

func (c *Cached) Lookup(ctx context.Context, place string) (*Location, error) {
	key := strings.ToLower(strings.Join(strings.Fields(place), " "))

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if c.fresh(e) {
			c.mu.Unlock()
			loc := *e.loc
			return &loc, nil
		}
		delete(c.entries, key)
	}
	c.mu.Unlock()

	loc, err := c.provider.Lookup(ctx, place)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.sweep()
	c.entries[key] = cacheEntry{loc: loc, at: c.now()}
	c.mu.Unlock()

	out := *loc
	return &out, nil
}

func (c *Cached) fresh(e cacheEntry) bool {
	return c.now().Sub(e.at) < c.ttl
}

// sweep drops expired entries. Callers hold c.mu.
func (c *Cached) sweep() {
	for key, e := range c.entries {
		if !c.fresh(e) {
			delete(c.entries, key)
		}
	}
}
