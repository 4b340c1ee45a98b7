package cache

import (
	"sync"
	"time"
)

type entry struct {
	value      interface{}
	expiration int64
}

// TTLCache is a small in-memory cache with per-entry expiry. The planner
// uses it to reuse quotes within their validity window.
type TTLCache struct {
	items sync.Map
	stop  chan struct{}
	once  sync.Once
}

// NewTTLCache creates a cache and starts its janitor loop.
func NewTTLCache() *TTLCache {
	c := &TTLCache{stop: make(chan struct{})}
	go c.janitor()
	return c
}

// Set stores a value for the given TTL. A zero TTL means no expiry.
func (c *TTLCache) Set(key string, value interface{}, ttl time.Duration) {
	var expiration int64
	if ttl > 0 {
		expiration = time.Now().Add(ttl).UnixNano()
	}
	c.items.Store(key, &entry{value: value, expiration: expiration})
}

// Get returns the value and whether it is present and unexpired.
func (c *TTLCache) Get(key string) (interface{}, bool) {
	v, ok := c.items.Load(key)
	if !ok {
		return nil, false
	}

	e := v.(*entry)
	if e.expiration > 0 && time.Now().UnixNano() > e.expiration {
		c.items.Delete(key)
		return nil, false
	}
	return e.value, true
}

// Delete removes a key.
func (c *TTLCache) Delete(key string) {
	c.items.Delete(key)
}

// Len returns the number of unexpired entries.
func (c *TTLCache) Len() int {
	n := 0
	now := time.Now().UnixNano()
	c.items.Range(func(_, v interface{}) bool {
		e := v.(*entry)
		if e.expiration == 0 || now <= e.expiration {
			n++
		}
		return true
	})
	return n
}

// Close stops the janitor loop.
func (c *TTLCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *TTLCache) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now().UnixNano()
			c.items.Range(func(k, v interface{}) bool {
				e := v.(*entry)
				if e.expiration > 0 && now > e.expiration {
					c.items.Delete(k)
				}
				return true
			})
		case <-c.stop:
			return
		}
	}
}
