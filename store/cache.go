package store

import (
	"sync"
	"time"

	"msgview/models"
)

// cacheEntry is one parsed summary keyed by the file identity that
// produced it
type cacheEntry struct {
	size    int64
	modTime time.Time
	summary *models.EmailSummary
}

// recordCache memoizes parsed summaries between requests. Entries are
// invalidated by size/mtime, never by age: the folder is the source of
// truth and a re-scan decides what is still current.
type recordCache struct {
	items map[string]*cacheEntry
	mu    sync.RWMutex
}

func newRecordCache() *recordCache {
	return &recordCache{
		items: make(map[string]*cacheEntry),
	}
}

// get returns the cached summary when the file has not changed
func (c *recordCache) get(path string, size int64, modTime time.Time) (*models.EmailSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[path]
	if !exists || item.size != size || !item.modTime.Equal(modTime) {
		return nil, false
	}
	return item.summary, true
}

// put stores a parsed summary
func (c *recordCache) put(path string, size int64, modTime time.Time, summary *models.EmailSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[path] = &cacheEntry{
		size:    size,
		modTime: modTime,
		summary: summary,
	}
}

// prune drops entries for files no longer present in the folder
func (c *recordCache) prune(current map[string]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for path := range c.items {
		if _, ok := current[path]; !ok {
			delete(c.items, path)
		}
	}
}

// size returns the number of cached entries
func (c *recordCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}
