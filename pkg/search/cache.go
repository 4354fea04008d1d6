package search

import (
	"container/list"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/kavach-labs/hnswgo/pkg/hnsw"
	"github.com/kavach-labs/hnswgo/pkg/tenant"
)

// CacheKey represents a unique key for caching search results
type CacheKey string

// LRUCache implements a thread-safe LRU (Least Recently Used) cache
type LRUCache struct {
	capacity int
	ttl      time.Duration // Time-to-live for cache entries

	mu    sync.RWMutex
	cache map[CacheKey]*list.Element
	lru   *list.List

	// Statistics
	hits   int64
	misses int64
}

// cacheEntry represents a single entry in the cache
type cacheEntry struct {
	key       CacheKey
	value     interface{}
	expiresAt time.Time
}

// NewLRUCache creates a new LRU cache with the given capacity
// capacity: maximum number of items to store
// ttl: time-to-live for entries (0 = no expiration)
func NewLRUCache(capacity int, ttl time.Duration) *LRUCache {
	return &LRUCache{
		capacity: capacity,
		ttl:      ttl,
		cache:    make(map[CacheKey]*list.Element, capacity),
		lru:      list.New(),
	}
}

// Get retrieves a value from the cache
// Returns (value, true) if found, (nil, false) if not found or expired
func (c *LRUCache) Get(key CacheKey) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.cache[key]
	if !exists {
		c.misses++
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)

	// Check if expired
	if c.ttl > 0 && time.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		c.misses++
		return nil, false
	}

	// Move to front (most recently used)
	c.lru.MoveToFront(elem)
	c.hits++

	return entry.value, true
}

// Put adds or updates a value in the cache
func (c *LRUCache) Put(key CacheKey, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Check if key already exists
	if elem, exists := c.cache[key]; exists {
		// Update existing entry
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		if c.ttl > 0 {
			entry.expiresAt = time.Now().Add(c.ttl)
		}
		c.lru.MoveToFront(elem)
		return
	}

	// Create new entry
	entry := &cacheEntry{
		key:   key,
		value: value,
	}
	if c.ttl > 0 {
		entry.expiresAt = time.Now().Add(c.ttl)
	}

	elem := c.lru.PushFront(entry)
	c.cache[key] = elem

	// Evict if over capacity
	if c.lru.Len() > c.capacity {
		c.evictOldest()
	}
}

// Invalidate removes a specific key from the cache
func (c *LRUCache) Invalidate(key CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.cache[key]; exists {
		c.removeElement(elem)
	}
}

// Clear removes all entries from the cache
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[CacheKey]*list.Element, c.capacity)
	c.lru.Init()
	c.hits = 0
	c.misses = 0
}

// Size returns the current number of items in the cache
func (c *LRUCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}

// Stats returns cache statistics
func (c *LRUCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return CacheStats{
		Hits:    c.hits,
		Misses:  c.misses,
		Size:    c.lru.Len(),
		HitRate: hitRate,
	}
}

// evictOldest removes the least recently used item
func (c *LRUCache) evictOldest() {
	elem := c.lru.Back()
	if elem != nil {
		c.removeElement(elem)
	}
}

// removeElement removes an element from the cache
func (c *LRUCache) removeElement(elem *list.Element) {
	c.lru.Remove(elem)
	entry := elem.Value.(*cacheEntry)
	delete(c.cache, entry.key)
}

// CacheStats holds cache performance statistics
type CacheStats struct {
	Hits    int64
	Misses  int64
	Size    int
	HitRate float64
}

// QueryCache wraps an LRU cache specifically for nearest-neighbor query
// results, keyed by namespace, query feature, and search parameters.
type QueryCache struct {
	cache *LRUCache
}

// NewQueryCache creates a new query result cache
func NewQueryCache(capacity int, ttl time.Duration) *QueryCache {
	return &QueryCache{
		cache: NewLRUCache(capacity, ttl),
	}
}

// GenerateNearestQueryKey creates a cache key for a Nearest query against a
// given namespace.
func GenerateNearestQueryKey(namespace string, query hnsw.Hamming128, ef, k int) CacheKey {
	h := sha256.New()
	h.Write([]byte(namespace))
	binary.Write(h, binary.LittleEndian, query.Hi)
	binary.Write(h, binary.LittleEndian, query.Lo)
	binary.Write(h, binary.LittleEndian, int32(ef))
	binary.Write(h, binary.LittleEndian, int32(k))

	return CacheKey(fmt.Sprintf("nn:%x", h.Sum(nil)[:16]))
}

// GetNearestResults retrieves cached Nearest results.
func (qc *QueryCache) GetNearestResults(key CacheKey) ([]uint32, bool) {
	value, found := qc.cache.Get(key)
	if !found {
		return nil, false
	}

	results, ok := value.([]uint32)
	if !ok {
		// Invalid cache entry, remove it
		qc.cache.Invalidate(key)
		return nil, false
	}

	return results, true
}

// PutNearestResults stores Nearest results in the cache.
func (qc *QueryCache) PutNearestResults(key CacheKey, results []uint32) {
	qc.cache.Put(key, results)
}

// Clear removes all cached results
func (qc *QueryCache) Clear() {
	qc.cache.Clear()
}

// Stats returns cache statistics
func (qc *QueryCache) Stats() CacheStats {
	return qc.cache.Stats()
}

// InvalidateAll removes all cached results (alias for Clear)
func (qc *QueryCache) InvalidateAll() {
	qc.Clear()
}

// Size returns the number of cached entries
func (qc *QueryCache) Size() int {
	return qc.cache.Size()
}

// CachedNamespace wraps a tenant namespace with Nearest-query caching. A
// cache hit skips the namespace's index search (and its rate-limit check)
// entirely; a cache miss counts against the namespace's rate limit as
// usual.
type CachedNamespace struct {
	ns    *tenant.Namespace
	cache *QueryCache
}

// NewCachedNamespace wraps ns with a Nearest-query cache of the given
// capacity and TTL.
func NewCachedNamespace(ns *tenant.Namespace, cacheCapacity int, cacheTTL time.Duration) *CachedNamespace {
	return &CachedNamespace{
		ns:    ns,
		cache: NewQueryCache(cacheCapacity, cacheTTL),
	}
}

// Nearest performs a cached nearest-neighbor query.
func (cn *CachedNamespace) Nearest(query hnsw.Hamming128, ef, k int) ([]uint32, error) {
	key := GenerateNearestQueryKey(cn.ns.Name, query, ef, k)

	if results, found := cn.cache.GetNearestResults(key); found {
		return results, nil
	}

	results, err := cn.ns.Nearest(query, ef, k)
	if err != nil {
		return nil, err
	}

	cn.cache.PutNearestResults(key, results)
	return results, nil
}

// InvalidateCache clears the query cache. Callers should invalidate after
// inserting new features into the namespace, since a stale cache entry can
// otherwise hide a closer neighbor that was just added.
func (cn *CachedNamespace) InvalidateCache() {
	cn.cache.Clear()
}

// CacheStats returns cache performance statistics
func (cn *CachedNamespace) CacheStats() CacheStats {
	return cn.cache.Stats()
}
