package shared

import (
	"context"
	"time"
)

// DefaultIdempotencyTTL is how long a consumed event ID or client key is kept
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore remembers keys that already did their work: event IDs a
// subscriber consumed and Idempotency-Key values of recorded payments.
type IdempotencyStore interface {
	// MarkProcessed claims key for ttl. Only the first caller gets true.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// IsProcessed reports whether key is currently claimed
	IsProcessed(ctx context.Context, key string) (bool, error)
	// Release gives the key up so the guarded work can run again
	Release(ctx context.Context, key string) error
	Close() error
}
