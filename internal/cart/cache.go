package cart

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/commerce-engine/pkg/logger"
)

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(shopperID string) string
}

// RedisCache is a cache-aside store of cart views. TTLs carry up to 10%
// jitter so carts written together do not expire together.
type RedisCache struct {
	store cacheStore
	ttl   time.Duration
	logg  *logger.Logger
}

func NewRedisCache(store cacheStore, ttl time.Duration, logg *logger.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &RedisCache{store: store, ttl: ttl, logg: logg}
}

func (c *RedisCache) Get(ctx context.Context, shopperID string) (*View, bool) {
	raw, err := c.store.Get(ctx, c.store.CartKey(shopperID))
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "cart.cache_read_failed")
		}
		return nil, false
	}
	var view View
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "cart.cache_decode_failed")
		return nil, false
	}
	return &view, true
}

func (c *RedisCache) Set(ctx context.Context, view *View) {
	if view == nil {
		return
	}
	payload, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, c.store.CartKey(view.ShopperID), payload, c.jitteredTTL()); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "cart.cache_write_failed")
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, shopperID string) {
	if err := c.store.Del(ctx, c.store.CartKey(shopperID)); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "cart.cache_invalidate_failed")
	}
}

func (c *RedisCache) jitteredTTL() time.Duration {
	spread := int64(c.ttl / 10)
	if spread <= 0 {
		return c.ttl
	}
	return c.ttl + time.Duration(rand.Int64N(spread))
}

// NopCache disables caching.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*View, bool) { return nil, false }
func (NopCache) Set(context.Context, *View)                {}
func (NopCache) Invalidate(context.Context, string)        {}
