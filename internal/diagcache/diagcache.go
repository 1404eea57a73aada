// Package diagcache holds the last-written state-dump documents in memory
// for a short TTL, so an in-process diagnostics accessor never has to race
// the dumper's own disk writes. Grounded on Regentag-go1090's
// icao_cache (github.com/patrickmn/go-cache, keyed by recently-seen ICAO)
// repurposed here to key by dump file name instead.
package diagcache

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Cache is a TTL store of the most recent bytes written for a given
// snapshot name ("aircraft.json", "sync.json", "locations.json").
type Cache struct {
	c *cache.Cache
}

// New creates a Cache. defaultTTL is used whenever Put is called without an
// explicit per-item TTL.
func New(defaultTTL time.Duration) *Cache {
	return &Cache{c: cache.New(defaultTTL, defaultTTL)}
}

// Put stores data under name with the given TTL (0 uses the cache default).
func (c *Cache) Put(name string, data []byte, ttl time.Duration) {
	if ttl <= 0 {
		c.c.SetDefault(name, data)
		return
	}
	c.c.Set(name, data, ttl)
}

// Get returns the most recently stored bytes for name, or (nil, false) if
// nothing has been stored yet or the TTL has elapsed, signalling that the
// dumper has stalled.
func (c *Cache) Get(name string) ([]byte, bool) {
	v, ok := c.c.Get(name)
	if !ok {
		return nil, false
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, false
	}
	return data, true
}
