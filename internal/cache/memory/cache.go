package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/campus-assist/backend/internal/metrics"
)

// Cache is an in-process store with the same shape as the redis client.
// Values are kept as JSON so callers never share mutable state.
type Cache struct {
	cache *cache.Cache
}

func New(defaultTTL time.Duration) *Cache {
	return &Cache{
		cache: cache.New(defaultTTL, 10*time.Minute),
	}
}

func (c *Cache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if ttl <= 0 {
		ttl = cache.DefaultExpiration
	}
	c.cache.Set(key, data, ttl)
	return nil
}

func (c *Cache) Get(_ context.Context, key string, dest any) (bool, error) {
	x, found := c.cache.Get(key)
	if !found {
		metrics.CacheMisses.WithLabelValues("memory").Inc()
		return false, nil
	}

	if err := json.Unmarshal(x.([]byte), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	metrics.CacheHits.WithLabelValues("memory").Inc()
	return true, nil
}

func (c *Cache) Delete(key string) {
	c.cache.Delete(key)
}

func (c *Cache) ItemCount() int {
	return c.cache.ItemCount()
}
