package model

import "strings"

// CacheKey identifies a ticket independent of its cache backend. Equality
// and hash derive from both Platform and ID; the file-backed cache names
// its files from the upper-cased Platform and a sha256 of the ID, not from
// String.
type CacheKey struct {
	Platform Platform
	ID       string
}

// NewCacheKey normalizes the id the same way on every call so that two
// logically-equal keys are always byte-identical.
func NewCacheKey(platform Platform, id string) CacheKey {
	return CacheKey{Platform: platform, ID: strings.TrimSpace(id)}
}

// String renders "<PLATFORM>:<id>", the stable serialization used for
// logging and as a map key fallback.
func (k CacheKey) String() string {
	return strings.ToUpper(string(k.Platform)) + ":" + k.ID
}
