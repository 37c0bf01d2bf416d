package config

// This file defines the Redis client constructor for the kiosk.  Redis backs
// the persisted hold journal, the shared seat-map snapshot cache and the
// rate limiter.  If the server cannot be reached at startup the constructor
// returns nil and callers fall back to in-memory journals, uncached seat
// maps and unlimited requests.

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient instantiates a Redis client using environment variables.
// Supported variables are:
//   REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//   REDIS_ADDR – host:port shorthand (host/port win when both are set)
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number (default 0)
//   REDIS_TLS – enable TLS when "true" or "1"
//   REDIS_DISABLED – skip Redis entirely
// The returned client may be nil if a connection cannot be established.
func NewRedisClient() *redis.Client {
	if envBool("REDIS_DISABLED", false) {
		return nil // explicitly disabled
	}
	addr := getenv("REDIS_ADDR", "localhost:6379")                    // default address
	host, port := getenv("REDIS_HOST", ""), getenv("REDIS_PORT", "") // split form
	if host != "" && port != "" {
		addr = host + ":" + port // host/port win
	}
	var tlsConf *tls.Config
	if tlsEnv := getenv("REDIS_TLS", ""); strings.EqualFold(tlsEnv, "true") || tlsEnv == "1" {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      addr,                             // server address
		Password:  getenv("REDIS_PASSWORD", ""),    // optional password
		DB:        envInt("REDIS_DB", 0),           // database number
		TLSConfig: tlsConf,                          // nil unless REDIS_TLS
	})
	// Ping the server with a short timeout.  Return nil on failure.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close() // drop the unusable client
		return nil
	}
	return client
}
