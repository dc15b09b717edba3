// Package extcache provides a small in-process TTL cache fronting
// external-data lookups (star catalogs, ephemeris queries) used by
// processing-chain processors, so a satellite-matching or plate-solving
// processor run repeatedly against the same field doesn't re-fetch external
// data on every capture.
package extcache

import (
	"sync"
	"time"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a generic-key TTL cache safe for concurrent use. Get treats an
// expired entry as a miss but leaves it in place; expired entries are removed
// only by the background sweep (StartSweeper) or by Delete.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a Cache with a fixed TTL applied to every Set call.
func New(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
	}
}

// Get returns the cached value for key if present and not expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the cache's configured TTL.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(c.ttl)}
}

// Delete removes key, if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the current entry count, including not-yet-swept expired ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StartSweeper begins a background goroutine that evicts expired entries
// every interval, bounding memory growth for long-running daemon processes
// even when nothing calls Get on a stale key.
func (c *Cache) StartSweeper(interval time.Duration) {
	if c.stopCh != nil {
		return
	}
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.sweepLoop(interval)
}

// StopSweeper halts the background sweep started by StartSweeper.
func (c *Cache) StopSweeper() {
	if c.stopCh == nil {
		return
	}
	close(c.stopCh)
	<-c.doneCh
	c.stopCh = nil
}

func (c *Cache) sweepLoop(interval time.Duration) {
	defer close(c.doneCh)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// GetOrFetch returns the cached value for key, calling fetch and caching its
// result on a miss. fetch errors are not cached, so a transient lookup
// failure doesn't poison the cache for the full TTL.
func (c *Cache) GetOrFetch(key string, fetch func() (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := fetch()
	if err != nil {
		return nil, err
	}
	c.Set(key, v)
	return v, nil
}
