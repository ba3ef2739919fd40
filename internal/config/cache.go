package config

import "time"

// CacheConfig tunes the redis response cache. Only the dashboard reporting
// GETs are cached; the per-registration rollup endpoint is always computed
// fresh from the ledger, so the TTL here is the sole invalidation rule and
// staleness is bounded by it.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadCacheConfig reads cache settings from the environment. The default
// 10s TTL keeps the dashboard near-live without hammering the aggregation
// queries during an entry rush.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: envBool("CACHE_ENABLED", true),
		TTL:     envDur("CACHE_TTL", 10*time.Second),
		Prefix:  envStr("CACHE_PREFIX", "cache"),
	}
}
