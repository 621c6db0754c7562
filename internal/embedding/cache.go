package embedding

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache maps note id to embedding. With capacity 0 it grows without bound and
// never evicts; a positive capacity switches to LRU eviction.
// Concurrent Sets for the same id are last-write-wins.
type Cache struct {
	mu      sync.RWMutex
	entries map[string][]float32
	lru     *lru.Cache[string, []float32]
}

// NewCache creates a cache. capacity <= 0 means unbounded.
func NewCache(capacity int) *Cache {
	if capacity > 0 {
		l, err := lru.New[string, []float32](capacity)
		if err == nil {
			return &Cache{lru: l}
		}
	}
	return &Cache{entries: make(map[string][]float32)}
}

// Get returns the cached embedding for id if present.
func (c *Cache) Get(id string) ([]float32, bool) {
	if c.lru != nil {
		return c.lru.Get(id)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[id]
	return v, ok
}

// Set stores the embedding for id.
func (c *Cache) Set(id string, value []float32) {
	if c.lru != nil {
		c.lru.Add(id, value)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = value
}

// Len returns the number of cached embeddings.
func (c *Cache) Len() int {
	if c.lru != nil {
		return c.lru.Len()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
