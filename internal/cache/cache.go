// Package cache provides in-process caches for store reads and consumed
// message ids.
package cache

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache and reports whether it is held.
	// An entry may be refused when the cache is under pressure.
	Set(key string, data T) bool

	// Delete removes a key from the cache
	Delete(key string)

	// Clear drops every entry
	Clear()
}
