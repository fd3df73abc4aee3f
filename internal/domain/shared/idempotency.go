package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers usage event IDs for a TTL. It only short-cuts
// duplicates; the database unique key stays authoritative.
type IdempotencyStore interface {
	// MarkProcessed reports true when key was not marked before
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
	Close() error
}

// Locker hands out short-lived exclusive locks by name, used to serialize
// bill generation for one tenant and period across replicas.
type Locker interface {
	// Acquire waits up to wait for the lock. release must be called once.
	Acquire(ctx context.Context, key string, ttl, wait time.Duration) (release func(), err error)
}
