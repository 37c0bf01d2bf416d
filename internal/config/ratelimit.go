package config

import "time"

// RateLimitConfig controls the token bucket guarding the kiosk's mutating
// endpoints (seat toggles, checkout, staff bookings).  A misbehaving touch
// screen can fire hundreds of toggles per second; each toggle fans out to a
// backend hold call.
type RateLimitConfig struct {
	Enabled        bool          // master switch
	Capacity       int           // bucket size (burst)
	RefillTokens   int           // tokens added per interval
	RefillInterval time.Duration // refill period
	TTL            time.Duration // idle buckets expire after this
	KeyStrategy    string        // ip, user, page, route, ip_user, user_route, page_user
	Prefix         string        // Redis key prefix
	Debug          bool          // expose X-RateLimit-* headers
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.  RATE_LIMIT_BURST and
// RATE_LIMIT_REFILL_EVERY are shorthands for one token per period.
func LoadRateLimitConfig() RateLimitConfig {
	def := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 20),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 5),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    getenv("RATE_LIMIT_KEY_STRATEGY", "page_user"),
		Prefix:         getenv("RATE_LIMIT_PREFIX", "rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if b := envInt("RATE_LIMIT_BURST", -1); b > 0 { def.Capacity = b }
	if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
		def.RefillTokens = 1
		def.RefillInterval = every
	}
	if def.Capacity < 1 { def.Capacity = 1 }                           // at least one request
	if def.RefillTokens < 1 { def.RefillTokens = 1 }                   // always refill
	if def.RefillInterval <= 0 { def.RefillInterval = time.Second }   // sane period
	minTTL := 5 * def.RefillInterval                                    // keep buckets through a few refills
	if def.TTL < minTTL { def.TTL = minTTL }
	return def
}
