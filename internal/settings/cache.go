package settings

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medibook/appointment-booking/pkg/logging"
)

const cacheKey = "settings:v1"

// CachedStore fronts a Store with a short-TTL Redis cache. Every
// booking reads the settings snapshot, so the row is cached rather
// than hit on each request. Cache failures fall through to the
// underlying store.
type CachedStore struct {
	base   Store
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewCachedStore(base Store, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedStore{base: base, client: client, ttl: ttl, logger: logger}
}

func (c *CachedStore) Get(ctx context.Context) (Settings, error) {
	raw, err := c.client.Get(ctx, cacheKey).Bytes()
	if err == nil {
		var cached Settings
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached, nil
		}
		// Corrupt entry, drop it and reload.
		_ = c.client.Del(ctx, cacheKey).Err()
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("settings cache read failed", "error", err)
	}

	loaded, err := c.base.Get(ctx)
	if err != nil {
		return Settings{}, err
	}
	c.fill(ctx, loaded)
	return loaded, nil
}

func (c *CachedStore) Update(ctx context.Context, params UpdateParams) (Settings, error) {
	updated, err := c.base.Update(ctx, params)
	if err != nil {
		return Settings{}, err
	}
	if err := c.client.Del(ctx, cacheKey).Err(); err != nil {
		c.logger.Warn("settings cache invalidation failed", "error", err)
	}
	c.fill(ctx, updated)
	return updated, nil
}

func (c *CachedStore) fill(ctx context.Context, s Settings) {
	encoded, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey, encoded, c.ttl).Err(); err != nil {
		c.logger.Warn("settings cache write failed", "error", err)
	}
}
