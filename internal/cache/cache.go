package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Tier buckets cached payloads by volatility. Each tier has its own TTL.
type Tier string

const (
	TierHot  Tier = "hot"  // real-time data (prices, balances)
	TierWarm Tier = "warm" // near-real-time data (TVL, sentiment)
	TierCold Tier = "cold" // historical, append-mostly data (analytics results)
)

// DefaultTTLs returns the per-tier staleness budgets.
func DefaultTTLs() map[Tier]time.Duration {
	return map[Tier]time.Duration{
		TierHot:  time.Minute,
		TierWarm: 5 * time.Minute,
		TierCold: 24 * time.Hour,
	}
}

// Store is a tiered TTL cache for provider query results.
//
// Implementations must treat every I/O failure (corrupt entry, unreachable
// backend) as a miss; the cache is never allowed to fail a query. A get on
// the hot tier that misses re-checks the warm tier before reporting a miss,
// so a value fetched moments ago under a longer TTL still serves as a
// fast-path hit.
type Store interface {
	Get(ctx context.Context, key string, tier Tier) (map[string]any, bool)
	Set(ctx context.Context, key string, data map[string]any, tier Tier)
}

// Key derives a stable cache key for a logical query. encoding/json writes
// map keys in sorted order, so equal parameter maps produce the same key
// regardless of insertion order.
func Key(namespace, operation string, params map[string]any) string {
	blob, err := json.Marshal(params)
	if err != nil {
		blob = []byte(fmt.Sprintf("%v", params))
	}
	sum := sha256.Sum256([]byte(namespace + ":" + operation + ":" + string(blob)))
	return hex.EncodeToString(sum[:])
}

func tierKey(key string, tier Tier) string {
	return string(tier) + ":" + key
}
