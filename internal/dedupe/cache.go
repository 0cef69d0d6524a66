package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type item struct {
	key    string
	seenAt time.Time
}

// Cache remembers recently indexed record IDs so replayed Kafka messages
// are not written twice. Entries expire after ttl; beyond capacity the
// least recently marked entry is dropped.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	recent   *list.List
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewCache creates a cache with the provided capacity and ttl.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		entries:  make(map[string]*list.Element, capacity),
		recent:   list.New(),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// IsSeen reports whether key was marked within the ttl window.
func (c *Cache) IsSeen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return false
	}
	if c.now().Sub(el.Value.(*item).seenAt) > c.ttl {
		c.remove(el)
		return false
	}
	return true
}

// MarkSeen records key as indexed now.
func (c *Cache) MarkSeen(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.entries[key]; ok {
		el.Value.(*item).seenAt = now
		c.recent.MoveToFront(el)
	} else {
		c.entries[key] = c.recent.PushFront(&item{key: key, seenAt: now})
	}
	c.evict(now)
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) evict(now time.Time) {
	for el := c.recent.Back(); el != nil; el = c.recent.Back() {
		expired := now.Sub(el.Value.(*item).seenAt) > c.ttl
		if !expired && len(c.entries) <= c.capacity {
			return
		}
		c.remove(el)
	}
}

func (c *Cache) remove(el *list.Element) {
	c.recent.Remove(el)
	delete(c.entries, el.Value.(*item).key)
}
