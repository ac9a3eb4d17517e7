package market

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	snap    Snapshot
	expires time.Time
}

// Cached memoizes snapshots per symbol for ttl. Prices are served from the
// cached snapshot when it is fresh.
type Cached struct {
	inner Oracle
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCached(inner Oracle, ttl time.Duration) *Cached {
	return &Cached{
		inner:   inner,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cached) lookup(symbol string) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[symbol]
	if !ok || c.now().After(e.expires) {
		return Snapshot{}, false
	}
	return e.snap, true
}

func (c *Cached) Snapshot(ctx context.Context, symbol string) (Snapshot, error) {
	symbol = normalize(symbol)
	if s, ok := c.lookup(symbol); ok {
		return s, nil
	}
	s, err := c.inner.Snapshot(ctx, symbol)
	if err != nil {
		return Snapshot{}, err
	}
	c.mu.Lock()
	c.entries[symbol] = cacheEntry{snap: s, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return s, nil
}

func (c *Cached) Price(ctx context.Context, symbol string) (float64, error) {
	if s, ok := c.lookup(normalize(symbol)); ok {
		return s.Price, nil
	}
	return c.inner.Price(ctx, symbol)
}

// Invalidate drops every cached entry.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
