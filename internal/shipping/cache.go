package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/leafmarket-checkout/internal/obs"
)

const defaultCacheKey = "checkout:shipping:rate-table:v1"

// Cache wraps Redis helpers for JSON payloads.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// CachedSource serves the rate table from Redis and falls back to Upstream on a miss.
// Cache errors are logged and never fail a lookup on their own.
type CachedSource struct {
	Upstream RateSource
	Cache    *Cache
	Key      string
	Logger   zerolog.Logger
}

// RateTable returns the cached table or loads it from Upstream.
func (s *CachedSource) RateTable(ctx context.Context) (RateTable, error) {
	var table RateTable
	hit, err := s.Cache.GetJSON(ctx, s.key(), &table)
	if err != nil {
		s.Logger.Warn().Err(err).Str("key", s.key()).Msg("rate_table_cache_read")
	}
	if hit {
		obs.ObserveRateLookup("cache", "hit")
		return table, nil
	}
	return s.Refresh(ctx)
}

// Refresh reloads the table from Upstream and stores it in the cache.
func (s *CachedSource) Refresh(ctx context.Context) (RateTable, error) {
	if s.Upstream == nil {
		return RateTable{}, errors.Join(ErrRateLookup, errors.New("upstream not configured"))
	}
	table, err := s.Upstream.RateTable(ctx)
	if err != nil {
		return RateTable{}, err
	}
	if err := s.Cache.SetJSON(ctx, s.key(), table); err != nil {
		s.Logger.Warn().Err(err).Str("key", s.key()).Msg("rate_table_cache_write")
	}
	return table, nil
}

func (s *CachedSource) key() string {
	if s.Key == "" {
		return defaultCacheKey
	}
	return s.Key
}
