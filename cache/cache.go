// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cache

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gogpu/viewsched/priority"
)

// Default configuration constants.
const (
	// DefaultCapacity is the default byte budget (256 MiB).
	DefaultCapacity int64 = 256 << 20

	// DefaultHalfLife is the time for a frequency score to halve without access.
	DefaultHalfLife = 10 * time.Minute
)

// Cache is a byte-bounded store for decoded render artifacts.
//
// Every Set keeps the sum of entry sizes within capacity by evicting the
// least valuable entries one at a time, re-checking after each eviction. The
// only exception is a single entry larger than the whole capacity: it evicts
// everything else and is still stored.
//
// Get is a mutating read: it refreshes the entry's access statistics.
//
// Cache is safe for concurrent use.
// Cache must not be copied after creation (has mutex).
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	recency   lruList
	capacity  int64
	total     int64
	strategy  Strategy
	evictor   evictor
	halfLife  time.Duration
	clock     clockwork.Clock
	onEvict   func(key string, data any)
	hits      uint64
	misses    uint64
	evictions uint64
}

type entry struct {
	key         string
	data        any
	size        int64
	priority    priority.Tier
	accessCount uint64
	lastAccess  time.Time
	score       float64
	node        *lruNode
}

// Stats contains cache statistics.
type Stats struct {
	// TotalSize is the sum of entry sizes in bytes.
	TotalSize int64 `json:"totalSize"`
	// MaxSize is the capacity in bytes.
	MaxSize int64 `json:"maxSize"`
	// EntryCount is the number of entries.
	EntryCount int `json:"entryCount"`
	// UtilizationPercent is TotalSize / MaxSize * 100.
	UtilizationPercent float64 `json:"utilizationPercent"`
	// Hits is the number of Get calls that found an entry.
	Hits uint64 `json:"hits"`
	// Misses is the number of Get calls that found nothing.
	Misses uint64 `json:"misses"`
	// Evictions is the number of entries removed to make room.
	Evictions uint64 `json:"evictions"`
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the time source. Tests pass a fake clock.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithHalfLife sets the frequency score half-life.
func WithHalfLife(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.halfLife = d
		}
	}
}

// WithOnEvict registers a callback invoked for every evicted or deleted entry.
// It runs after the cache lock is released.
func WithOnEvict(fn func(key string, data any)) Option {
	return func(c *Cache) {
		c.onEvict = fn
	}
}

// New creates a cache holding at most capacity bytes.
// If capacity <= 0, DefaultCapacity is used.
func New(capacity int64, strategy Strategy, opts ...Option) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Cache{
		entries:  make(map[string]*entry),
		capacity: capacity,
		strategy: strategy,
		evictor:  newEvictor(strategy),
		halfLife: DefaultHalfLife,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the data stored under key and refreshes its access statistics.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.touch(e, c.clock.Now())
	c.recency.MoveToFront(e.node)
	c.hits++
	return e.data, true
}

// Contains reports whether key is cached without touching its statistics.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Set stores data under key, replacing any previous entry.
//
// Eviction runs before insertion and removes the lowest-valued entry until the
// new entry fits or the cache is empty. The entry being replaced is never an
// eviction candidate; its size is released first and its access history is
// carried over.
func (c *Cache) Set(key string, data any, size int64, tier priority.Tier) {
	if size < 0 {
		size = 0
	}
	now := c.clock.Now()

	c.mu.Lock()
	prev, replaced := c.entries[key]
	if replaced {
		c.unlinkLocked(prev)
	}

	var evicted []*entry
	for c.total+size > c.capacity && len(c.entries) > 0 {
		victimKey, ok := c.evictor.victim(c, now)
		if !ok {
			break
		}
		victim := c.entries[victimKey]
		c.unlinkLocked(victim)
		c.evictions++
		evicted = append(evicted, victim)
	}

	e := &entry{
		key:      key,
		data:     data,
		size:     size,
		priority: tier,
	}
	if replaced {
		e.accessCount = prev.accessCount
		e.score = prev.score
		e.lastAccess = prev.lastAccess
	}
	c.touch(e, now)
	e.node = c.recency.PushFront(key)
	c.entries[key] = e
	c.total += size
	c.mu.Unlock()

	c.release(evicted)
}

// Delete removes an entry. Returns true if it existed.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		c.unlinkLocked(e)
	}
	c.mu.Unlock()

	if ok {
		c.release([]*entry{e})
	}
	return ok
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	removed := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		removed = append(removed, e)
	}
	c.entries = make(map[string]*entry)
	c.recency.Clear()
	c.total = 0
	c.mu.Unlock()

	c.release(removed)
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Size returns the sum of entry sizes in bytes.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Capacity returns the byte budget.
func (c *Cache) Capacity() int64 {
	return c.capacity
}

// Strategy returns the eviction strategy chosen at construction.
func (c *Cache) Strategy() Strategy {
	return c.strategy
}

// Pressure returns TotalSize / MaxSize.
func (c *Cache) Pressure() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.total) / float64(c.capacity)
}

// Stats returns current cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		TotalSize:          c.total,
		MaxSize:            c.capacity,
		EntryCount:         len(c.entries),
		UtilizationPercent: float64(c.total) / float64(c.capacity) * 100,
		Hits:               c.hits,
		Misses:             c.misses,
		Evictions:          c.evictions,
	}
}

// ResetStats resets the hit, miss and eviction counters.
func (c *Cache) ResetStats() {
	c.mu.Lock()
	c.hits, c.misses, c.evictions = 0, 0, 0
	c.mu.Unlock()
}

// touch records an access: the frequency score decays by the time since the
// last access and then grows by one.
// Caller must hold c.mu.
func (c *Cache) touch(e *entry, now time.Time) {
	if !e.lastAccess.IsZero() {
		e.score *= c.decay(now.Sub(e.lastAccess))
	}
	e.score++
	e.accessCount++
	e.lastAccess = now
}

// frequency returns the entry's score decayed to now.
func (c *Cache) frequency(e *entry, now time.Time) float64 {
	return e.score * c.decay(now.Sub(e.lastAccess))
}

func (c *Cache) decay(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 1
	}
	return math.Exp2(-float64(elapsed) / float64(c.halfLife))
}

// unlinkLocked removes e from the map, the recency list and the running total.
// Caller must hold c.mu.
func (c *Cache) unlinkLocked(e *entry) {
	delete(c.entries, e.key)
	c.recency.Remove(e.node)
	c.total -= e.size
}

// destroyer is implemented by artifacts holding GPU resources.
type destroyer interface {
	Destroy()
}

func (c *Cache) release(removed []*entry) {
	for _, e := range removed {
		if d, ok := e.data.(destroyer); ok {
			d.Destroy()
		}
		if c.onEvict != nil {
			c.onEvict(e.key, e.data)
		}
	}
}
