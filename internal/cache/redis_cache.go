package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func sentKey(sid string) string {
	return fmt.Sprintf("sent:%s", sid)
}

func (c *RedisCache) StoreSent(ctx context.Context, sid, leadID string, sentAt time.Time) error {
	val := SentRecord{
		LeadID: leadID,
		SentAt: sentAt.UTC(),
	}

	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, sentKey(sid), b, c.ttl).Err()
}

func (c *RedisCache) LookupSent(ctx context.Context, sid string) (SentRecord, bool, error) {
	raw, err := c.rdb.Get(ctx, sentKey(sid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return SentRecord{}, false, nil
	}
	if err != nil {
		return SentRecord{}, false, err
	}

	var rec SentRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return SentRecord{}, false, fmt.Errorf("decode sent record %q: %w", sid, err)
	}
	return rec, true, nil
}
