// ABOUTME: Thread-safe TTL cache that claims idempotency keys and remembers their results.
// ABOUTME: Used by the API to replay completed requests and reject concurrent retries.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// State describes what Claim found for a key
type State int

const (
	// Claimed means the key was new (or expired) and now belongs to the caller
	Claimed State = iota
	// InFlight means another caller claimed the key and has not finished
	InFlight
	// Completed means the key finished and its value was returned
	Completed
)

func (s State) String() string {
	switch s {
	case Claimed:
		return "claimed"
	case InFlight:
		return "in_flight"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// cacheEntry stores the timestamp, result and list element for a cached key.
type cacheEntry struct {
	timestamp time.Time
	element   *list.Element
	done      bool
	value     any
}

// Cache provides a thread-safe, TTL-based, size-limited store of idempotency
// keys. A key is claimed before work starts, completed with the work's result,
// or released when the work fails so that a retry can run it again.
// A doubly-linked list keeps insertion order for eviction. In-flight claims
// are evicted only when no completed entry is left.
type Cache struct {
	mu      sync.RWMutex
	seen    map[string]*cacheEntry
	order   *list.List // List of keys in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int // zero or negative means unbounded
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a new cache with the specified TTL and maximum size.
// A background goroutine periodically cleans up expired entries.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Claim atomically looks up key and claims it if it is unknown or expired.
// For a Completed key the remembered value is returned.
func (c *Cache) Claim(key string) (any, State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.seen[key]; ok && !c.expired(entry) {
		if entry.done {
			return entry.value, Completed
		}
		return nil, InFlight
	}

	c.putLocked(key, false, nil)
	return nil, Claimed
}

// Complete records the result for a claimed key. The TTL restarts so the
// result stays replayable for a full window after the work finished.
func (c *Cache) Complete(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(key, true, value)
}

// Release forgets key so the next Claim succeeds.
func (c *Cache) Release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.seen[key]; ok {
		c.order.Remove(entry.element)
		delete(c.seen, key)
	}
}

// Lookup reports the current state of key without claiming it.
// An unknown or expired key reports ok=false.
func (c *Cache) Lookup(key string) (value any, state State, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, found := c.seen[key]
	if !found || c.expired(entry) {
		return nil, Claimed, false
	}
	if entry.done {
		return entry.value, Completed, true
	}
	return nil, InFlight, true
}

// Len returns the number of entries, expired ones included until cleanup runs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.seen)
}

func (c *Cache) expired(entry *cacheEntry) bool {
	return c.now().Sub(entry.timestamp) >= c.ttl
}

// putLocked inserts or refreshes key. Must be called with mu held.
func (c *Cache) putLocked(key string, done bool, value any) {
	now := c.now()

	// If key already exists, update it and move to back
	if entry, exists := c.seen[key]; exists {
		entry.timestamp = now
		entry.done = done
		entry.value = value
		c.order.MoveToBack(entry.element)
		return
	}

	// Evict oldest if at capacity
	if c.maxSize > 0 && len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.seen[key] = &cacheEntry{
		timestamp: now,
		element:   elem,
		done:      done,
		value:     value,
	}
}

// evictOldest removes the oldest completed or expired entry, falling back to
// the oldest entry when every key is still in flight. Must be called with mu
// held.
func (c *Cache) evictOldest() {
	victim := c.order.Front()
	if victim == nil {
		return
	}

	for e := victim; e != nil; e = e.Next() {
		key, _ := e.Value.(string)
		if entry := c.seen[key]; entry.done || c.expired(entry) {
			victim = e
			break
		}
	}

	key, _ := victim.Value.(string)
	c.order.Remove(victim)
	delete(c.seen, key)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries from the cache.
func (c *Cache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.seen {
		if c.expired(entry) {
			c.order.Remove(entry.element)
			delete(c.seen, key)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
