package embedding

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// CacheKey derives the cache key for a text from a digest of its full content.
func CacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// Cache memoizes vectors by text for the lifetime of one run. It is safe for
// concurrent use; when two callers store the same key the last write wins.
type Cache struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

func NewCache() *Cache {
	return &Cache{vectors: make(map[string][]float32)}
}

// Get returns the cached vector for text, if present.
func (c *Cache) Get(text string) ([]float32, bool) {
	return c.getKey(CacheKey(text))
}

// Put stores the vector for text.
func (c *Cache) Put(text string, vec []float32) {
	c.putKey(CacheKey(text), vec)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors)
}

func (c *Cache) getKey(key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vectors[key]
	return v, ok
}

func (c *Cache) putKey(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vectors[key] = vec
}
