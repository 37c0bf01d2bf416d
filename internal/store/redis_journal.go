package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

// DefaultJournalKey is the record name the web client used in session
// storage; it is kept as the key prefix.
const DefaultJournalKey = "cinemaSeatHold"

// RedisJournal stores the hold record of one kiosk session in Redis with a
// TTL, so a kiosk process restart does not lose track of a live hold.
type RedisJournal struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewRedisJournal returns a journal for session under prefix.  The record
// expires after ttl; a hold never outlives the backend TTL anyway.
func NewRedisJournal(rdb *redis.Client, prefix, session string, ttl time.Duration) *RedisJournal {
	if prefix == "" {
		prefix = DefaultJournalKey
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisJournal{rdb: rdb, key: prefix + ":" + session, ttl: ttl}
}

// Key returns the Redis key backing the journal.
func (r *RedisJournal) Key() string { return r.key }

func (r *RedisJournal) Save(ctx context.Context, h model.StoredHold) error {
	buf, err := json.Marshal(h)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.key, buf, r.ttl).Err(); err != nil {
		return fmt.Errorf("journal save: %w", err)
	}
	return nil
}

func (r *RedisJournal) Load(ctx context.Context) (model.StoredHold, bool, error) {
	raw, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.StoredHold{}, false, nil
	}
	if err != nil {
		return model.StoredHold{}, false, fmt.Errorf("journal load: %w", err)
	}
	var h model.StoredHold
	if err := json.Unmarshal(raw, &h); err != nil {
		// A corrupt record is useless for cleanup; drop it.
		_ = r.rdb.Del(ctx, r.key).Err()
		return model.StoredHold{}, false, nil
	}
	return h, h.HoldToken != "", nil
}

func (r *RedisJournal) Clear(ctx context.Context) error {
	if err := r.rdb.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("journal clear: %w", err)
	}
	return nil
}
