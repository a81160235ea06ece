package ports

import "time"

// Cache defines a small read-cache used by the service layer for computed
// trade lists and dashboards. The calculation core never touches it.
type Cache interface {
	// Get returns the cached value for key, if present and not expired.
	Get(key string) (interface{}, bool)
	// Set stores a value under key for the given TTL.
	Set(key string, value interface{}, ttl time.Duration)
	// Invalidate removes the given keys immediately.
	Invalidate(keys ...string)
}
