package cache

import "time"

// LayeredCache fronts the disk cache with a memory tier. Interactive
// enrichment tends to re-touch the same pages within one run (memory
// hits); reruns days later land on disk.
type LayeredCache struct {
	hot  Cache
	cold Cache
}

func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		hot:  NewMemoryCache(memoryTTL, 10*time.Minute),
		cold: NewDiskCache(diskDir, diskTTL),
	}
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if body, ok := c.hot.Get(key); ok {
		return body, true
	}
	body, ok := c.cold.Get(key)
	if !ok {
		return nil, false
	}
	// Promote so the rest of the run is served from memory.
	_ = c.hot.Set(key, body, 0)
	return body, true
}

func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.hot.Set(key, value, ttl); err != nil {
		return err
	}
	return c.cold.Set(key, value, ttl)
}

func (c *LayeredCache) Delete(key string) error {
	_ = c.hot.Delete(key)
	return c.cold.Delete(key)
}

func (c *LayeredCache) Clear() error {
	_ = c.hot.Clear()
	return c.cold.Clear()
}
