package classify

import (
	"sync"
	"time"
)

// StatFunc reports the current modification time of a source path.
type StatFunc func(path string) (time.Time, error)

type cacheEntry struct {
	modTime time.Time
	label   string
}

// Cache maps (source path, modification time) to a category label. An entry
// only answers for the exact modification time it was stored with.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

func (c *Cache) Get(path string, modTime time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[path]
	if !ok || !e.modTime.Equal(modTime) {
		return "", false
	}
	return e.label, true
}

func (c *Cache) Put(path string, modTime time.Time, label string) {
	c.mu.Lock()
	c.entries[path] = cacheEntry{modTime: modTime, label: label}
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep drops entries whose file disappeared or changed since they were
// stored. It returns the number of removed entries.
func (c *Cache) Sweep(stat StatFunc) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for path, e := range c.entries {
		mod, err := stat(path)
		if err != nil || !mod.Equal(e.modTime) {
			delete(c.entries, path)
			removed++
		}
	}
	return removed
}
