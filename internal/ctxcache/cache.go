// Package ctxcache holds detection contexts between a detect call and the
// render call that consumes them.
//
// Entries live only in the memory of one worker process. A render routed to
// any other process observes CACHE_MISS, so the worker must run as a single
// replica per logical endpoint.
package ctxcache

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultTTL is how long a context waits for its render call.
const DefaultTTL = 300 * time.Second

// DefaultCapacity bounds the number of live contexts.
const DefaultCapacity = 64

// Reason is the outcome of a lookup.
type Reason string

const (
	ReasonOK                Reason = "OK"
	ReasonCacheMiss         Reason = "CACHE_MISS"
	ReasonTaskExpired       Reason = "TASK_EXPIRED"
	ReasonImageHashMismatch Reason = "IMAGE_HASH_MISMATCH"
)

// Config configures a Cache.
type Config struct {
	// TTL is the lifetime of each entry (default: 300s)
	TTL time.Duration
	// Capacity is the maximum number of entries (default: 64)
	Capacity int
	// Now is the clock, replaceable in tests
	Now func() time.Time
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// Stats reports cache counters.
type Stats struct {
	Entries     int   `json:"entries"`
	Capacity    int   `json:"capacity"`
	TTLSeconds  int   `json:"ttl_seconds"`
	Puts        int64 `json:"puts"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Expirations int64 `json:"expirations"`
	Mismatches  int64 `json:"mismatches"`
	Evictions   int64 `json:"evictions"`
	Consumed    int64 `json:"consumed"`
}

// Cache is a bounded TTL map from task id to context, guarded by the hash of
// the image the context was built from. Safe for concurrent use.
type Cache[V any] struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	now      func() time.Time
	logger   *slog.Logger

	entries  map[string]*entry[V]
	byExpiry expiryHeap[V]
	seq      uint64
	stats    Stats
}

// New creates a cache.
func New[V any](cfg Config) *Cache[V] {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Cache[V]{
		ttl:      cfg.TTL,
		capacity: cfg.Capacity,
		now:      cfg.Now,
		logger:   cfg.Logger.With("component", "ctxcache"),
		entries:  make(map[string]*entry[V]),
	}
}

// TTL returns the entry lifetime.
func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}

// Put stores value under taskID and returns the ttl in seconds.
// When the cache is full the entry closest to expiry is evicted first.
// Putting an existing taskID replaces it.
func (c *Cache[V]) Put(taskID, imageHash string, value V) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[taskID]; ok {
		c.removeLocked(old)
	}
	for len(c.entries) >= c.capacity {
		victim := heap.Pop(&c.byExpiry).(*entry[V])
		delete(c.entries, victim.taskID)
		c.stats.Evictions++
		c.logger.Debug("evicted context", "task_id", victim.taskID, "expire_at", victim.expireAt)
	}

	c.seq++
	e := &entry[V]{
		taskID:    taskID,
		imageHash: imageHash,
		expireAt:  c.now().Add(c.ttl),
		value:     value,
		seq:       c.seq,
	}
	c.entries[taskID] = e
	heap.Push(&c.byExpiry, e)
	c.stats.Puts++

	return int(c.ttl / time.Second)
}

// Get looks up taskID without consuming it. Checks run in order: absent,
// expired (the entry is deleted), hash mismatch (the entry is kept).
func (c *Cache[V]) Get(taskID, imageHash string) (V, Reason) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[taskID]
	if !ok {
		c.stats.Misses++
		return zero, ReasonCacheMiss
	}
	if c.now().After(e.expireAt) {
		c.removeLocked(e)
		c.stats.Expirations++
		return zero, ReasonTaskExpired
	}
	if e.imageHash != imageHash {
		c.stats.Mismatches++
		return zero, ReasonImageHashMismatch
	}
	c.stats.Hits++
	return e.value, ReasonOK
}

// Pop removes taskID and returns its value. ok is false when the entry is
// absent or already expired.
func (c *Cache[V]) Pop(taskID string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[taskID]
	if !ok {
		return zero, false
	}
	c.removeLocked(e)
	if c.now().After(e.expireAt) {
		c.stats.Expirations++
		return zero, false
	}
	c.stats.Consumed++
	return e.value, true
}

// Len returns the number of live and not yet purged entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.entries)
	s.Capacity = c.capacity
	s.TTLSeconds = int(c.ttl / time.Second)
	return s
}

// PurgeExpired deletes every expired entry and returns how many were removed.
func (c *Cache[V]) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	purged := 0
	for c.byExpiry.Len() > 0 && now.After(c.byExpiry[0].expireAt) {
		e := heap.Pop(&c.byExpiry).(*entry[V])
		delete(c.entries, e.taskID)
		purged++
	}
	c.stats.Expirations += int64(purged)
	return purged
}

// Janitor purges expired entries every interval until ctx is done.
// Contexts whose render never arrives are released here instead of waiting
// for the next insert to push them out.
func (c *Cache[V]) Janitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.PurgeExpired(); n > 0 {
				c.logger.Info("purged expired contexts", "count", n)
			}
		}
	}
}

// removeLocked must be called with the lock held.
func (c *Cache[V]) removeLocked(e *entry[V]) {
	delete(c.entries, e.taskID)
	if e.index >= 0 {
		heap.Remove(&c.byExpiry, e.index)
	}
}
