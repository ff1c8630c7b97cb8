package entity

import "time"

// CacheEntry is a stored value with its expiry. Value is opaque to the
// storage layer; the cache encodes and decodes it.
type CacheEntry struct {
	Namespace string
	Key       string
	Value     []byte
	CachedAt  time.Time
	ExpiresAt time.Time
}

// Live reports whether the entry is still valid at now.
// An entry is live strictly before its expiry instant.
func (e CacheEntry) Live(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}
