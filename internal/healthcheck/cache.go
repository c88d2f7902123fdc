package healthcheck

import (
	"sync"
	"time"
)

// Cache holds the latest health record per URL. Records are created on first
// probe and replaced by every later one.
type Cache struct {
	mutex   sync.RWMutex
	records map[string]InstanceHealth
}

func NewCache() *Cache {
	return &Cache{
		records: make(map[string]InstanceHealth),
	}
}

func (c *Cache) Get(url string) (InstanceHealth, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	h, ok := c.records[url]
	return h, ok
}

// Put stores h and returns the record it replaced, if any.
func (c *Cache) Put(h InstanceHealth) (previous InstanceHealth, existed bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	previous, existed = c.records[h.URL]
	c.records[h.URL] = h
	return previous, existed
}

// Fresh reports whether url has a record no older than window.
func (c *Cache) Fresh(url string, window time.Duration, now time.Time) bool {
	h, ok := c.Get(url)
	if !ok {
		return false
	}
	return !h.Stale(window, now)
}

func (c *Cache) Snapshot() map[string]InstanceHealth {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	out := make(map[string]InstanceHealth, len(c.records))
	for url, h := range c.records {
		out[url] = h
	}
	return out
}
