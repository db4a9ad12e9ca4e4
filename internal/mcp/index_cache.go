package mcp

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/standardbeagle/seqmap/pkg/sequence"
)

// Cache configuration constants
const (
	DefaultMaxIndexEntries = 200
	DefaultIndexTTL        = 30 * time.Minute
	DefaultCleanupInterval = 5 * time.Minute
)

// cachedIndex is one offset table held for a live view.
type cachedIndex struct {
	Index       *sequence.OffsetIndex
	CachedAt    int64 // Unix nano for atomic compare
	AccessCount int64 // Atomic counter
}

// IndexCache provides lock-free caching of per-view offset tables using
// sync.Map. Building an OffsetIndex walks the whole view; repeated
// index_offset and index_range calls against the same view reuse it.
type IndexCache struct {
	entries sync.Map // map[uint64]*cachedIndex

	// Configuration (read-only after creation)
	maxEntries int
	ttlNanos   int64

	// Atomic counters - simple interlocked operations
	hits          int64
	misses        int64
	evictions     int64
	totalRequests int64

	// Approximate entry count (updated on cleanup)
	entryCount int64

	createdAt   time.Time
	lastCleanup int64
}

// IndexCacheConfig defines configuration options
type IndexCacheConfig struct {
	MaxEntries      int
	TTL             time.Duration
	AutoCleanup     bool
	CleanupInterval time.Duration
}

// DefaultIndexCacheConfig returns default configuration
func DefaultIndexCacheConfig() IndexCacheConfig {
	return IndexCacheConfig{
		MaxEntries:      DefaultMaxIndexEntries,
		TTL:             DefaultIndexTTL,
		AutoCleanup:     true,
		CleanupInterval: DefaultCleanupInterval,
	}
}

// NewIndexCache creates a new cache
func NewIndexCache(config IndexCacheConfig) *IndexCache {
	cache := &IndexCache{
		maxEntries:  config.MaxEntries,
		ttlNanos:    config.TTL.Nanoseconds(),
		createdAt:   time.Now(),
		lastCleanup: time.Now().UnixNano(),
	}

	if config.AutoCleanup {
		go cache.startAutoCleanup(config.CleanupInterval)
	}

	return cache
}

// Get retrieves the cached offset table for a view, or nil.
func (ic *IndexCache) Get(viewID uint64) *sequence.OffsetIndex {
	atomic.AddInt64(&ic.totalRequests, 1)
	now := time.Now().UnixNano()

	if val, ok := ic.entries.Load(viewID); ok {
		cached := val.(*cachedIndex)
		if now-atomic.LoadInt64(&cached.CachedAt) <= ic.ttlNanos {
			atomic.AddInt64(&cached.AccessCount, 1)
			atomic.AddInt64(&ic.hits, 1)
			return cached.Index
		}
		// Expired - delete lazily
		ic.entries.Delete(viewID)
	}

	atomic.AddInt64(&ic.misses, 1)
	return nil
}

// Put stores an offset table with size limiting
func (ic *IndexCache) Put(viewID uint64, idx *sequence.OffsetIndex) {
	cached := &cachedIndex{
		Index:       idx,
		CachedAt:    time.Now().UnixNano(),
		AccessCount: 1,
	}

	if _, loaded := ic.entries.LoadOrStore(viewID, cached); !loaded {
		// New entry - check size limit
		count := atomic.AddInt64(&ic.entryCount, 1)
		if count > int64(ic.maxEntries) {
			ic.evictOldest()
		}
	}
}

// Invalidate removes the entry for a dropped or replaced view.
func (ic *IndexCache) Invalidate(viewID uint64) {
	if _, ok := ic.entries.LoadAndDelete(viewID); ok {
		atomic.AddInt64(&ic.entryCount, -1)
	}
}

// evictOldest removes the oldest entry
func (ic *IndexCache) evictOldest() {
	var oldestKey interface{}
	var oldestTime int64 = time.Now().UnixNano()

	ic.entries.Range(func(key, value interface{}) bool {
		cached := value.(*cachedIndex)
		cachedAt := atomic.LoadInt64(&cached.CachedAt)
		if cachedAt < oldestTime {
			oldestTime = cachedAt
			oldestKey = key
		}
		return true
	})

	if oldestKey != nil {
		ic.entries.Delete(oldestKey)
		atomic.AddInt64(&ic.entryCount, -1)
		atomic.AddInt64(&ic.evictions, 1)
	}
}

// CleanExpired removes expired entries
func (ic *IndexCache) CleanExpired() int {
	now := time.Now().UnixNano()
	cleaned := int64(0)
	liveCount := int64(0)

	ic.entries.Range(func(key, value interface{}) bool {
		cached := value.(*cachedIndex)
		if now-atomic.LoadInt64(&cached.CachedAt) > ic.ttlNanos {
			ic.entries.Delete(key)
			cleaned++
		} else {
			liveCount++
		}
		return true
	})
	atomic.StoreInt64(&ic.entryCount, liveCount)

	atomic.AddInt64(&ic.evictions, cleaned)
	atomic.StoreInt64(&ic.lastCleanup, now)
	return int(cleaned)
}

// startAutoCleanup runs periodic cleanup
func (ic *IndexCache) startAutoCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ic.CleanExpired()
	}
}

// Stats returns cache statistics
func (ic *IndexCache) Stats() IndexCacheStats {
	hits := atomic.LoadInt64(&ic.hits)
	misses := atomic.LoadInt64(&ic.misses)
	totalRequests := atomic.LoadInt64(&ic.totalRequests)

	hitRate := float64(0)
	if totalRequests > 0 {
		hitRate = float64(hits) / float64(totalRequests)
	}

	return IndexCacheStats{
		Hits:          hits,
		Misses:        misses,
		Evictions:     atomic.LoadInt64(&ic.evictions),
		TotalRequests: totalRequests,
		HitRate:       hitRate,
		Entries:       int(atomic.LoadInt64(&ic.entryCount)),
		CreatedAt:     ic.createdAt,
		LastCleanup:   time.Unix(0, atomic.LoadInt64(&ic.lastCleanup)),
		Uptime:        time.Since(ic.createdAt),
	}
}

// IndexCacheStats holds cache statistics
type IndexCacheStats struct {
	Hits          int64
	Misses        int64
	Evictions     int64
	TotalRequests int64
	HitRate       float64
	Entries       int
	CreatedAt     time.Time
	LastCleanup   time.Time
	Uptime        time.Duration
}

// Clear removes all entries and resets statistics
func (ic *IndexCache) Clear() {
	ic.entries.Range(func(key, _ interface{}) bool {
		ic.entries.Delete(key)
		return true
	})

	atomic.StoreInt64(&ic.hits, 0)
	atomic.StoreInt64(&ic.misses, 0)
	atomic.StoreInt64(&ic.evictions, 0)
	atomic.StoreInt64(&ic.totalRequests, 0)
	atomic.StoreInt64(&ic.entryCount, 0)
	atomic.StoreInt64(&ic.lastCleanup, time.Now().UnixNano())
}
