package cache

import (
	"context"
	"errors"
	"time"
)

var ErrLeaseHeld = errors.New("lease held by another worker")

// SentIndex remembers which lead a provider message id belongs to so delivery
// callbacks can skip the database lookup.
type SentIndex interface {
	StoreSent(ctx context.Context, sid, leadID string, sentAt time.Time) error
	LookupSent(ctx context.Context, sid string) (SentRecord, bool, error)
}

type SentRecord struct {
	LeadID string    `json:"leadId"`
	SentAt time.Time `json:"sentAt"`
}

// Leases hands out short exclusive holds on a key. Acquire returns ErrLeaseHeld
// when someone else holds it.
type Leases interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

type Lease interface {
	Release(ctx context.Context) error
}
