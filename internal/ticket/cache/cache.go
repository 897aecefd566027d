// Package cache implements the Ticket Cache (spec.md §4.1, C1): a
// thread-safe, TTL-bounded, LRU-evicting store keyed by (platform, id), with
// an in-memory and a file-backed variant.
package cache

import (
	"time"

	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
)

// Cache is the contract both variants satisfy.
type Cache interface {
	// Get returns the cached ticket for key, or ok=false if absent or
	// expired. An expired entry is removed as a side effect of the call.
	Get(key model.CacheKey) (ticket model.GenericTicket, ok bool)

	// Set stores ticket under its own (platform, id), with the given TTL
	// (zero means "use the cache's default TTL") and optional etag.
	Set(ticket model.GenericTicket, ttl time.Duration, etag string)

	Invalidate(key model.CacheKey)
	Clear()
	ClearPlatform(p model.Platform)
	GetETag(key model.CacheKey) (string, bool)
	Size() int
	Stats() map[string]int
}

// CachedTicket is the stored envelope: the ticket plus cache bookkeeping.
type CachedTicket struct {
	Ticket    model.GenericTicket
	CachedAt  time.Time
	ExpiresAt time.Time
	ETag      string
}

// IsExpired evaluates expiration against wall-clock time: now >= ExpiresAt.
func (c CachedTicket) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

func cacheKeyString(k model.CacheKey) string { return k.String() }
