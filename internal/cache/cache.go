package cache

import "time"

// Cache stores fetched source pages keyed by URL hash. Adapters hit
// the same encyclopedia and obituary URLs across repeated enrichment
// runs, so a warm cache keeps reruns cheap and keeps request volume
// against the origins low.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}
