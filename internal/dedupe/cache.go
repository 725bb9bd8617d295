// ABOUTME: TTL seen-cache for suppressing webhook redeliveries
// ABOUTME: The provider re-posts deliveries it thinks failed; message IDs are deduped here

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// entry pairs a mark time with its position in insertion order.
type entry struct {
	markedAt time.Time
	element  *list.Element
}

// Cache remembers recently seen message IDs for a TTL window, capped at a
// maximum size with oldest-first eviction. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // keys in insertion order, oldest at front
	ttl     time.Duration
	maxSize int

	now func() time.Time
}

// New creates a seen-cache with the given TTL and maximum size.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Seen atomically checks whether the key was marked within the TTL window and
// marks it if not. Returns true for a duplicate, false for a new key.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.seen[key]; ok {
		if c.now().Sub(e.markedAt) < c.ttl {
			return true
		}
		// Expired: remove so the fresh mark below lands cleanly.
		c.order.Remove(e.element)
		delete(c.seen, key)
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.seen[key] = &entry{markedAt: c.now(), element: elem}
	return false
}

// Len returns the number of tracked keys, including any not yet expired.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// evictOldest removes the oldest key. Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}
