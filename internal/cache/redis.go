package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	newRedisClient = func(opts *redis.Options) *redis.Client {
		return redis.NewClient(opts)
	}
	pingRedis = func(ctx context.Context, client *redis.Client) error {
		return client.Ping(ctx).Err()
	}
	parseRedisURL = redis.ParseURL
)

// RedisStore backs the tiered cache with Redis. TTL enforcement is native:
// entries are written with the tier's expiry, so stale entries age out
// server-side and no lazy eviction pass is needed.
type RedisStore struct {
	client *redis.Client
	ttls   map[Tier]time.Duration
}

// NewRedisStore connects to addr, which may be a plain host:port or a
// redis:// URL. The connection is verified with a ping so a misconfigured
// backend is caught at construction, not mid-query.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	opts := &redis.Options{Addr: addr}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := parseRedisURL(addr)
		if err != nil {
			return nil, err
		}
		opts = parsed
	}

	client := newRedisClient(opts)
	if err := pingRedis(ctx, client); err != nil {
		return nil, err
	}

	return &RedisStore{client: client, ttls: DefaultTTLs()}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string, tier Tier) (map[string]any, bool) {
	if data, ok := s.lookup(ctx, key, tier); ok {
		return data, true
	}
	if tier == TierHot {
		return s.lookup(ctx, key, TierWarm)
	}
	return nil, false
}

func (s *RedisStore) Set(ctx context.Context, key string, data map[string]any, tier Tier) {
	blob, err := json.Marshal(data)
	if err != nil {
		return
	}
	// Write failures are swallowed; the cache must never fail a query.
	s.client.Set(ctx, tierKey(key, tier), blob, s.ttls[tier])
}

func (s *RedisStore) lookup(ctx context.Context, key string, tier Tier) (map[string]any, bool) {
	blob, err := s.client.Get(ctx, tierKey(key, tier)).Bytes()
	if err != nil {
		return nil, false
	}
	var data map[string]any
	if err := json.Unmarshal(blob, &data); err != nil {
		// Corrupt entry: evict and report a miss.
		s.client.Del(ctx, tierKey(key, tier))
		return nil, false
	}
	return data, true
}
