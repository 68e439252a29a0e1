package memory

import (
	"context"
	"sync"

	"github.com/aretw0/xplanning/pkg/policy"
	"github.com/aretw0/xplanning/pkg/ports"
)

// Cache implements ports.ResultCache in memory.
// Safe for concurrent use.
type Cache struct {
	data map[string]*policy.Info
	mu   sync.RWMutex
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]*policy.Info),
	}
}

// Get returns a copy of the stored info, without its Policy.
func (c *Cache) Get(ctx context.Context, key string) (*policy.Info, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.data[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	return info.Clone(), nil
}

// Put stores a copy of info, dropping its Policy like a remote cache would.
func (c *Cache) Put(ctx context.Context, key string, info *policy.Info) error {
	stored := info.Clone()
	stored.Policy = nil

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = stored
	return nil
}

// Delete removes the entry.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
