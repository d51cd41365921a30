// Package cache holds size-bounded in-memory caches.
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// BytesCache is an LRU of byte slices bounded by entry count and by total
// byte size. It is safe for concurrent use.
type BytesCache[K comparable] struct {
	mu      sync.Mutex
	entries *lru.Cache[K, []byte]
	size    int64
	maxSize int64
}

// NewBytesCache returns a cache holding at most capacity entries and
// maxSizeBytes bytes.
func NewBytesCache[K comparable](capacity int, maxSizeBytes int64) (*BytesCache[K], error) {
	c := &BytesCache[K]{maxSize: maxSizeBytes}
	entries, err := lru.NewWithEvict[K, []byte](capacity, func(_ K, data []byte) {
		c.size -= int64(len(data))
	})
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

func (c *BytesCache[K]) Get(key K) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(key)
}

// Set stores data under key. Values larger than the byte budget are not
// cached.
func (c *BytesCache[K]) Set(key K, data []byte) {
	dataSize := int64(len(data))
	if dataSize > c.maxSize {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Updating an existing key does not fire the eviction callback.
	if old, ok := c.entries.Peek(key); ok {
		c.size -= int64(len(old))
	}
	c.entries.Add(key, data)
	c.size += dataSize

	for c.size > c.maxSize && c.entries.Len() > 0 {
		c.entries.RemoveOldest()
	}
}

func (c *BytesCache[K]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(key)
}

func (c *BytesCache[K]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
	c.size = 0
}

func (c *BytesCache[K]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Size returns the cached bytes.
func (c *BytesCache[K]) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}
