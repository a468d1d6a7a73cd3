package places

import (
	"context"
	"time"

	"github.com/smallbiznis/reviewboost/internal/cache"
)

const defaultCacheTTL = 30 * time.Minute

// CachedResolver memoizes successful resolutions. Failures are not cached.
type CachedResolver struct {
	next  Resolver
	store cache.Cache[string, Place]
	ttl   time.Duration
}

func NewCached(next Resolver, store cache.Cache[string, Place], ttl time.Duration) *CachedResolver {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedResolver{next: next, store: store, ttl: ttl}
}

func (c *CachedResolver) Resolve(ctx context.Context, input string) (Place, error) {
	key := cache.Key(input)
	if key == "" {
		return Place{}, ErrEmptyInput
	}
	if place, ok := c.store.Get(key); ok {
		return place, nil
	}
	place, err := c.next.Resolve(ctx, input)
	if err != nil {
		return Place{}, err
	}
	c.store.Set(key, place, c.ttl)
	return place, nil
}
