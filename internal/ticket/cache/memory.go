package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
)

// MemoryCache is the in-memory Ticket Cache variant (spec.md §4.1). LRU
// bookkeeping is delegated to hashicorp/golang-lru, which already performs
// a recency touch on every successful Get and evicts the least-recently-used
// entry once Add would exceed capacity — exactly the ordering spec.md
// requires ("eviction runs after every set"). TTL expiry is layered on top
// since the upstream LRU has no notion of time.
type MemoryCache struct {
	mu         sync.Mutex
	maxSize    int
	defaultTTL time.Duration
	bounded    *lru.Cache[model.CacheKey, CachedTicket]
	unbounded  map[model.CacheKey]CachedTicket
	order      []model.CacheKey // insertion/access order for the unbounded (maxSize<=0) case
}

// NewMemoryCache builds an in-memory cache. maxSize<=0 means unbounded (no
// LRU eviction, per spec.md: "while max_size > 0 AND len >= max_size").
func NewMemoryCache(maxSize int, defaultTTL time.Duration) *MemoryCache {
	c := &MemoryCache{maxSize: maxSize, defaultTTL: defaultTTL}
	if maxSize > 0 {
		// Errors only on size<=0, already excluded above.
		l, _ := lru.New[model.CacheKey, CachedTicket](maxSize)
		c.bounded = l
	} else {
		c.unbounded = make(map[model.CacheKey]CachedTicket)
	}
	return c
}

func (c *MemoryCache) Get(key model.CacheKey) (model.GenericTicket, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.peekLocked(key)
	if !ok {
		return model.GenericTicket{}, false
	}
	if entry.IsExpired(time.Now()) {
		c.removeLocked(key)
		return model.GenericTicket{}, false
	}
	return entry.Ticket.Clone(), true
}

func (c *MemoryCache) peekLocked(key model.CacheKey) (CachedTicket, bool) {
	if c.bounded != nil {
		return c.bounded.Get(key) // Get touches recency.
	}
	entry, ok := c.unbounded[key]
	if ok {
		c.touchUnboundedLocked(key)
	}
	return entry, ok
}

func (c *MemoryCache) touchUnboundedLocked(key model.CacheKey) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, key)
}

func (c *MemoryCache) removeLocked(key model.CacheKey) {
	if c.bounded != nil {
		c.bounded.Remove(key)
		return
	}
	delete(c.unbounded, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *MemoryCache) Set(ticket model.GenericTicket, ttl time.Duration, etag string) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()
	entry := CachedTicket{
		Ticket:    ticket.Clone(),
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
		ETag:      etag,
	}
	key := model.NewCacheKey(ticket.Platform(), ticket.ID())

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bounded != nil {
		c.bounded.Add(key, entry)
		return
	}
	c.unbounded[key] = entry
	c.touchUnboundedLocked(key)
}

func (c *MemoryCache) Invalidate(key model.CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bounded != nil {
		c.bounded.Purge()
		return
	}
	c.unbounded = make(map[model.CacheKey]CachedTicket)
	c.order = nil
}

func (c *MemoryCache) ClearPlatform(p model.Platform) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.keysLocked() {
		if key.Platform == p {
			c.removeLocked(key)
		}
	}
}

func (c *MemoryCache) keysLocked() []model.CacheKey {
	if c.bounded != nil {
		return c.bounded.Keys()
	}
	out := make([]model.CacheKey, len(c.order))
	copy(out, c.order)
	return out
}

func (c *MemoryCache) GetETag(key model.CacheKey) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.peekLocked(key)
	if !ok || entry.IsExpired(time.Now()) {
		return "", false
	}
	return entry.ETag, entry.ETag != ""
}

func (c *MemoryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bounded != nil {
		return c.bounded.Len()
	}
	return len(c.unbounded)
}

func (c *MemoryCache) Stats() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]int{}
	for _, key := range c.keysLocked() {
		out[string(key.Platform)]++
	}
	return out
}
