// ABOUTME: Thread-safe TTL cache of recently handled event IDs
// ABOUTME: Size-bounded with O(1) oldest-first eviction

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	timestamp time.Time
	element   *list.Element
}

// Cache remembers event IDs for a TTL, bounded by a maximum size. Oldest
// entries are evicted first via a doubly-linked insertion-order list.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // event ids in insertion order, oldest at the front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a cache. A background goroutine sweeps expired entries.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// CheckAndMark atomically reports whether the event was already handled and
// marks it handled if not. True means duplicate: skip the event.
func (c *Cache) CheckAndMark(eventID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.seen[eventID]; ok && time.Since(e.timestamp) < c.ttl {
		return true
	}

	now := time.Now()
	if e, ok := c.seen[eventID]; ok {
		// Expired entry for the same id: refresh in place.
		e.timestamp = now
		c.order.MoveToBack(e.element)
		return false
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}
	elem := c.order.PushBack(eventID)
	c.seen[eventID] = &entry{timestamp: now, element: elem}
	return false
}

// Len returns the number of tracked event IDs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, id)
}

func (c *Cache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		front := c.order.Front()
		if front == nil {
			return
		}
		id, _ := front.Value.(string)
		e := c.seen[id]
		if e == nil {
			c.order.Remove(front)
			continue
		}
		if time.Since(e.timestamp) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.seen, id)
	}
}

// Close stops the sweep goroutine. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}
