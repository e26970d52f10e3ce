package geo

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachingResolver memoizes another resolver. Coordinates are rounded to five
// decimals (about a meter) to form the cache key; misses ("") are cached too.
type CachingResolver struct {
	next  RegionResolver
	cache *gocache.Cache
}

// NewCachingResolver wraps next with a TTL cache. A non-positive ttl keeps
// entries until the process exits.
func NewCachingResolver(next RegionResolver, ttl time.Duration) *CachingResolver {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &CachingResolver{
		next:  next,
		cache: gocache.New(ttl, 10*time.Minute),
	}
}

// RegionFor implements RegionResolver.
func (c *CachingResolver) RegionFor(ctx context.Context, lat, lon float64) (string, error) {
	key := fmt.Sprintf("%.5f,%.5f", lat, lon)
	if v, ok := c.cache.Get(key); ok {
		return v.(string), nil
	}

	code, err := c.next.RegionFor(ctx, lat, lon)
	if err != nil {
		return "", err
	}
	c.cache.SetDefault(key, code)
	return code, nil
}

// Len returns the number of cached coordinates.
func (c *CachingResolver) Len() int {
	return c.cache.ItemCount()
}
