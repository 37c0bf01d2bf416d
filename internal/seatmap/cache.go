package seatmap

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-seat-checkout/internal/config"
	"github.com/iliyamo/cinema-seat-checkout/internal/logger"
	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

// CachedSource serves seat-map snapshots from Redis for a short TTL so
// kiosk pages polling the same showtime share one backend fetch.  Cache
// failures fall through to the wrapped source.
type CachedSource struct {
	next   Source
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    *logger.Logger
}

// NewCachedSource wraps next.  When caching is disabled or rdb is nil it
// returns next unchanged.
func NewCachedSource(next Source, rdb *redis.Client, cfg config.SeatMapCacheConfig, log *logger.Logger) Source {
	if !cfg.Enabled || rdb == nil {
		return next
	}
	return &CachedSource{next: next, rdb: rdb, ttl: cfg.TTL, prefix: cfg.Prefix, log: logger.Or(log).WithComponent("seatmap-cache")}
}

func (c *CachedSource) key(showtimeID int64) string {
	return c.prefix + ":" + strconv.FormatInt(showtimeID, 10)
}

// SeatMap implements Source.
func (c *CachedSource) SeatMap(ctx context.Context, showtimeID int64) ([]model.Seat, error) {
	key := c.key(showtimeID)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var seats []model.Seat
		if jerr := json.Unmarshal(raw, &seats); jerr == nil {
			return seats, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.log.Debug("seat map cache read failed", "key", key, "error", err)
	}

	seats, err := c.next.SeatMap(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	if buf, jerr := json.Marshal(seats); jerr == nil {
		if serr := c.rdb.Set(ctx, key, buf, c.ttl).Err(); serr != nil {
			c.log.Debug("seat map cache write failed", "key", key, "error", serr)
		}
	}
	return seats, nil
}
