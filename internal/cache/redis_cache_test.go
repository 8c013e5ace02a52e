package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	// Start in-memory Redis
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisCache_StoreSent_Success(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestRedis(t)

	ttl := 10 * time.Second
	cache := NewRedisCache(rdb, ttl)

	ctx := context.Background()
	sid := "SM42"
	leadID := "lead-123"
	sentAt := time.Date(2026, 2, 2, 18, 0, 0, 0, time.UTC)

	if err := cache.StoreSent(ctx, sid, leadID, sentAt); err != nil {
		t.Fatalf("StoreSent() error: %v", err)
	}

	key := "sent:SM42"

	if !mr.Exists(key) {
		t.Fatalf("expected key %q to exist", key)
	}

	ttlRemaining := mr.TTL(key)
	if ttlRemaining <= 0 {
		t.Fatalf("expected TTL to be set, got %v", ttlRemaining)
	}

	raw, err := mr.Get(key)
	if err != nil {
		t.Fatalf("failed to get key %q: %v", key, err)
	}

	var got SentRecord
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("failed to unmarshal value: %v", err)
	}

	if got.LeadID != leadID {
		t.Fatalf("expected LeadID %q, got %q", leadID, got.LeadID)
	}
	if !got.SentAt.Equal(sentAt.UTC()) {
		t.Fatalf("expected SentAt %v, got %v", sentAt.UTC(), got.SentAt)
	}
}

func TestRedisCache_LookupSent(t *testing.T) {
	t.Parallel()

	_, rdb := newTestRedis(t)
	cache := NewRedisCache(rdb, time.Minute)
	ctx := context.Background()

	if _, ok, err := cache.LookupSent(ctx, "SMmissing"); err != nil || ok {
		t.Fatalf("LookupSent(missing) = ok=%v err=%v, want miss", ok, err)
	}

	if err := cache.StoreSent(ctx, "SM1", "first", time.Now()); err != nil {
		t.Fatalf("first StoreSent() error: %v", err)
	}
	// Second write should overwrite
	if err := cache.StoreSent(ctx, "SM1", "second", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("second StoreSent() error: %v", err)
	}

	rec, ok, err := cache.LookupSent(ctx, "SM1")
	if err != nil || !ok {
		t.Fatalf("LookupSent() ok=%v err=%v", ok, err)
	}
	if rec.LeadID != "second" {
		t.Fatalf("expected overwritten LeadID %q, got %q", "second", rec.LeadID)
	}
}

func TestRedisCache_LookupSent_CorruptValue(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestRedis(t)
	cache := NewRedisCache(rdb, time.Minute)

	if err := mr.Set("sent:bad", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, _, err := cache.LookupSent(context.Background(), "bad"); err == nil {
		t.Fatalf("expected decode error, got nil")
	}
}

func TestRedisCache_StoreSent_ContextCanceled(t *testing.T) {
	t.Parallel()

	_, rdb := newTestRedis(t)
	cache := NewRedisCache(rdb, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cache.StoreSent(ctx, "SM1", "x", time.Now())
	if err == nil {
		t.Fatalf("expected error due to canceled context, got nil")
	}
}
