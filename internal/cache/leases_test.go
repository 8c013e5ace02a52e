package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRedisLeases_Exclusive(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestRedis(t)
	leases := NewRedisLeases(rdb)
	ctx := context.Background()

	first, err := leases.Acquire(ctx, "lead:1", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if ttl := mr.TTL("lease:lead:1"); ttl <= 0 {
		t.Fatalf("expected lease TTL, got %v", ttl)
	}

	if _, err := leases.Acquire(ctx, "lead:1", time.Minute); !errors.Is(err, ErrLeaseHeld) {
		t.Fatalf("second Acquire() err = %v, want ErrLeaseHeld", err)
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	if mr.Exists("lease:lead:1") {
		t.Fatalf("expected lease key to be deleted")
	}

	again, err := leases.Acquire(ctx, "lead:1", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() after release error: %v", err)
	}
	_ = again.Release(ctx)
}

func TestRedisLeases_StaleReleaseKeepsSuccessor(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestRedis(t)
	leases := NewRedisLeases(rdb)
	ctx := context.Background()

	old, err := leases.Acquire(ctx, "lead:2", time.Second)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	mr.FastForward(2 * time.Second)

	if _, err := leases.Acquire(ctx, "lead:2", time.Minute); err != nil {
		t.Fatalf("Acquire() after expiry error: %v", err)
	}

	if err := old.Release(ctx); err != nil {
		t.Fatalf("stale Release() error: %v", err)
	}
	if !mr.Exists("lease:lead:2") {
		t.Fatalf("stale release removed the successor's lease")
	}
}

func TestLocalLeases(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	leases := NewLocalLeases()
	leases.now = func() time.Time { return now }
	ctx := context.Background()

	a, err := leases.Acquire(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if _, err := leases.Acquire(ctx, "k", time.Minute); !errors.Is(err, ErrLeaseHeld) {
		t.Fatalf("second Acquire() err = %v, want ErrLeaseHeld", err)
	}

	now = now.Add(2 * time.Minute)
	b, err := leases.Acquire(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() after expiry error: %v", err)
	}

	// releasing the expired lease must not free b's hold
	_ = a.Release(ctx)
	if _, err := leases.Acquire(ctx, "k", time.Minute); !errors.Is(err, ErrLeaseHeld) {
		t.Fatalf("Acquire() after stale release err = %v, want ErrLeaseHeld", err)
	}

	_ = b.Release(ctx)
	if _, err := leases.Acquire(ctx, "k", time.Minute); err != nil {
		t.Fatalf("Acquire() after release error: %v", err)
	}
}
