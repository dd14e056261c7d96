// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"container/list"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Entry is a cached value plus the bookkeeping spec §3 "CacheEntry"
// names: insertion/expiration/last-access timestamps, access count,
// and an estimated byte size. Size is recorded per entry only:
// pressure-based eviction does not read it and no running total of
// entry sizes is kept.
type Entry struct {
	Value       ExecutionMetadata
	InsertedAt  time.Time
	ExpiresAt   time.Time
	LastAccess  time.Time
	AccessCount uint64
	Size        int

	element *list.Element // position in the LRU list
}

// Options configures the cache's eviction policy, sourced from
// internal/config.Config.
type Options struct {
	TTL                time.Duration
	MaxEntries         int
	CleanupInterval    time.Duration
	MemPressureWarnPct float64
	MemPressureCritPct float64

	// MemStatsFn is overridable in tests; defaults to reading
	// runtime.MemStats.HeapAlloc against runtime.MemStats.Sys.
	MemStatsFn func() (used, total uint64)
}

// Cache is the process-global Query Cache (QC): a single RWMutex
// guards the fingerprint map and LRU list, per spec §4.3
// "Concurrency": "Reads and writes are serialized by a single
// readers-writer lock over the table."
type Cache struct {
	mu      sync.RWMutex
	entries map[uint64]*Entry
	lru     *list.List // front = most recently used
	opts    Options

	stopCleanup chan struct{}
}

// New builds an empty cache with the given eviction policy.
func New(opts Options) *Cache {
	if opts.MemStatsFn == nil {
		opts.MemStatsFn = readMemStats
	}
	return &Cache{
		entries: make(map[uint64]*Entry),
		lru:     list.New(),
		opts:    opts,
	}
}

func readMemStats() (used, total uint64) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc, m.Sys
}

// Get returns the cached metadata for a fingerprint, if present and
// unexpired, bumping its LRU position and access count.
func (c *Cache) Get(fingerprint uint64) (ExecutionMetadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[fingerprint]
	if !ok {
		return ExecutionMetadata{}, false
	}
	if time.Now().After(entry.ExpiresAt) {
		c.removeLocked(fingerprint)
		return ExecutionMetadata{}, false
	}
	entry.LastAccess = time.Now()
	entry.AccessCount++
	c.lru.MoveToFront(entry.element)
	return entry.Value, true
}

// Put inserts or replaces the entry for a fingerprint, evicting the
// LRU tail if the cache is now over its entry cap, per spec §4.3
// "Policy".
func (c *Cache) Put(fingerprint uint64, meta ExecutionMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if existing, ok := c.entries[fingerprint]; ok {
		existing.Value = meta
		existing.InsertedAt = now
		existing.ExpiresAt = now.Add(c.opts.TTL)
		existing.LastAccess = now
		existing.Size = meta.Size()
		c.lru.MoveToFront(existing.element)
		return
	}

	entry := &Entry{
		Value:      meta,
		InsertedAt: now,
		ExpiresAt:  now.Add(c.opts.TTL),
		LastAccess: now,
		Size:       meta.Size(),
	}
	entry.element = c.lru.PushFront(fingerprint)
	c.entries[fingerprint] = entry

	if c.opts.MaxEntries > 0 && len(c.entries) > c.opts.MaxEntries {
		c.evictLRULocked()
	}
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) evictLRULocked() {
	tail := c.lru.Back()
	if tail == nil {
		return
	}
	fingerprint := tail.Value.(uint64)
	c.removeLocked(fingerprint)
}

func (c *Cache) removeLocked(fingerprint uint64) {
	entry, ok := c.entries[fingerprint]
	if !ok {
		return
	}
	c.lru.Remove(entry.element)
	delete(c.entries, fingerprint)
}

// RunCleanup performs one pass of the background maintenance spec
// §4.3 describes: evict expired entries, then, if process memory
// crosses the configured pressure thresholds, evict a fraction of the
// remaining entries ranked by priority = f(age, recency, inverse hit
// count), with the critical threshold evicting a larger fraction.
func (c *Cache) RunCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for fp, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			c.removeLocked(fp)
		}
	}

	used, total := c.opts.MemStatsFn()
	if total == 0 {
		return
	}
	pct := float64(used) / float64(total)

	var fraction float64
	switch {
	case c.opts.MemPressureCritPct > 0 && pct >= c.opts.MemPressureCritPct:
		fraction = 0.5
	case c.opts.MemPressureWarnPct > 0 && pct >= c.opts.MemPressureWarnPct:
		fraction = 0.2
	default:
		return
	}
	c.evictByPriorityLocked(fraction, now)
}

// evictByPriorityLocked evicts the lowest-priority fraction of
// entries, where priority rewards recent, frequently-hit, young
// entries; low-priority entries (old, stale, rarely hit) are evicted
// first.
func (c *Cache) evictByPriorityLocked(fraction float64, now time.Time) {
	n := int(float64(len(c.entries)) * fraction)
	if n <= 0 {
		return
	}

	type scored struct {
		fp       uint64
		priority float64
	}
	scoredEntries := make([]scored, 0, len(c.entries))
	for fp, entry := range c.entries {
		age := now.Sub(entry.InsertedAt).Seconds()
		recency := now.Sub(entry.LastAccess).Seconds()
		hits := float64(entry.AccessCount) + 1
		priority := hits / (1 + age + recency)
		scoredEntries = append(scoredEntries, scored{fp, priority})
	}
	sort.Slice(scoredEntries, func(i, j int) bool {
		return scoredEntries[i].priority < scoredEntries[j].priority
	})
	if n > len(scoredEntries) {
		n = len(scoredEntries)
	}
	for _, s := range scoredEntries[:n] {
		c.removeLocked(s.fp)
	}
}

// StartCleanupLoop launches the background ticker that periodically
// calls RunCleanup until Stop is called.
func (c *Cache) StartCleanupLoop() {
	c.stopCleanup = make(chan struct{})
	interval := c.opts.CleanupInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.RunCleanup()
			case <-c.stopCleanup:
				return
			}
		}
	}()
}

// Stop halts the background cleanup loop, if running.
func (c *Cache) Stop() {
	if c.stopCleanup != nil {
		close(c.stopCleanup)
		c.stopCleanup = nil
	}
}
