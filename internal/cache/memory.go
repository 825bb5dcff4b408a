package cache

import (
	"fmt"
	"sync"
	"time"

	"mathemelody/pkg/models"
)

// CacheEntry represents a cached item with expiration
type CacheEntry struct {
	Value      interface{}
	Expiration time.Time
}

// IsExpired checks if the cache entry has expired
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expiration)
}

// MemoryCache implements a simple in-memory cache
type MemoryCache struct {
	items map[string]*CacheEntry
	mutex sync.RWMutex
	ttl   time.Duration
}

// NewMemoryCache creates a new memory cache
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	cache := &MemoryCache{
		items: make(map[string]*CacheEntry),
		mutex: sync.RWMutex{},
		ttl:   ttl,
	}

	// Start cleanup goroutine
	go cache.cleanupExpired()

	return cache
}

// Set stores a value in the cache
func (c *MemoryCache) Set(key string, value interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = &CacheEntry{
		Value:      value,
		Expiration: time.Now().Add(c.ttl),
	}
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.items[key]
	if !exists || entry.IsExpired() {
		return nil, false
	}

	return entry.Value, true
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.items, key)
}

// Clear removes all items from the cache
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items = make(map[string]*CacheEntry)
}

// Size returns the number of items in the cache
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.items)
}

// cleanupExpired removes expired entries periodically
func (c *MemoryCache) cleanupExpired() {
	ticker := time.NewTicker(time.Minute * 5) // Cleanup every 5 minutes
	defer ticker.Stop()

	for range ticker.C {
		c.mutex.Lock()
		for key, entry := range c.items {
			if entry.IsExpired() {
				delete(c.items, key)
			}
		}
		c.mutex.Unlock()
	}
}

// GalleryCache caches pages of the public gallery feed keyed by their query
// parameters. Any composition, like or comment mutation invalidates the
// whole cache: pages are cheap to rebuild and cross-page consistency is not
// worth tracking per key.
type GalleryCache struct {
	*MemoryCache
}

// NewGalleryCache creates a gallery page cache with the given TTL
func NewGalleryCache(ttl time.Duration) *GalleryCache {
	return &GalleryCache{
		MemoryCache: NewMemoryCache(ttl),
	}
}

// PageKey builds the cache key for one gallery page
func PageKey(sort string, limit, offset int) string {
	return fmt.Sprintf("gallery:%s:%d:%d", sort, limit, offset)
}

// SetPage caches a gallery page
func (gc *GalleryCache) SetPage(sort string, limit, offset int, page *models.GalleryPage) {
	gc.Set(PageKey(sort, limit, offset), page)
}

// GetPage retrieves a cached gallery page
func (gc *GalleryCache) GetPage(sort string, limit, offset int) (*models.GalleryPage, bool) {
	value, exists := gc.Get(PageKey(sort, limit, offset))
	if !exists {
		return nil, false
	}

	page, ok := value.(*models.GalleryPage)
	return page, ok
}

// Invalidate drops every cached page
func (gc *GalleryCache) Invalidate() {
	gc.Clear()
}
