package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still carries our token, so an
// expired lease never removes a successor's hold.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLeases struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisLeases(rdb *redis.Client) *RedisLeases {
	return &RedisLeases{rdb: rdb, prefix: "lease:"}
}

func (l *RedisLeases) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	k := l.prefix + key
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, k, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLeaseHeld
	}
	return &redisLease{rdb: l.rdb, key: k, token: token}, nil
}

type redisLease struct {
	rdb   *redis.Client
	key   string
	token string
}

func (l *redisLease) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err()
}

// LocalLeases is the in-process fallback used when Redis is not configured.
type LocalLeases struct {
	mu   sync.Mutex
	held map[string]localHold
	seq  uint64
	now  func() time.Time
}

type localHold struct {
	token   uint64
	expires time.Time
}

func NewLocalLeases() *LocalLeases {
	return &LocalLeases{held: map[string]localHold{}, now: time.Now}
}

func (l *LocalLeases) Acquire(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if h, ok := l.held[key]; ok && now.Before(h.expires) {
		return nil, ErrLeaseHeld
	}

	l.seq++
	l.held[key] = localHold{token: l.seq, expires: now.Add(ttl)}
	return &localLease{owner: l, key: key, token: l.seq}, nil
}

type localLease struct {
	owner *LocalLeases
	key   string
	token uint64
}

func (l *localLease) Release(context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()

	if h, ok := l.owner.held[l.key]; ok && h.token == l.token {
		delete(l.owner.held, l.key)
	}
	return nil
}
