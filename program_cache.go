package inherit

import "sync"

// MemoryProgramCache is a concurrency safe ProgramCache backed by a map.
type MemoryProgramCache struct {
	mu      sync.RWMutex
	entries map[string]any
}

// NewProgramCache returns an empty MemoryProgramCache.
func NewProgramCache() *MemoryProgramCache {
	return &MemoryProgramCache{entries: make(map[string]any)}
}

// Get returns the cached program stored under key.
func (c *MemoryProgramCache) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.entries[key]
	return value, ok
}

// Set stores value under key.
func (c *MemoryProgramCache) Set(key string, value any) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]any)
	}
	c.entries[key] = value
}

// Len reports the number of cached programs.
func (c *MemoryProgramCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
