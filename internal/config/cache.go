package config

import "time"

// SeatMapCacheConfig defines settings for the shared seat-map snapshot
// cache.  Kiosk pages open on the same showtime poll the same seat map;
// when Enabled is true and a Redis client is available, one fetch serves
// every page until TTL elapses.  TTL must stay below the refresh interval
// or pages would repaint stale availability.
type SeatMapCacheConfig struct {
	Enabled bool          // cache seat maps in Redis
	TTL     time.Duration // lifetime of a cached snapshot
	Prefix  string        // key prefix, e.g. "seatmap:42"
}

// LoadSeatMapCacheConfig reads SEATMAP_CACHE_* variables.  refresh is the
// configured seat-map polling interval; the TTL is clamped below it.
func LoadSeatMapCacheConfig(refresh time.Duration) SeatMapCacheConfig {
	cfg := SeatMapCacheConfig{
		Enabled: envBool("SEATMAP_CACHE_ENABLED", true),
		TTL:     envDur("SEATMAP_CACHE_TTL", time.Second),
		Prefix:  getenv("SEATMAP_CACHE_PREFIX", "seatmap"),
	}
	if cfg.TTL <= 0 { cfg.Enabled = false }                          // nothing to cache
	if refresh > 0 && cfg.TTL >= refresh { cfg.TTL = refresh / 2 } // stay below the poll
	return cfg
}
