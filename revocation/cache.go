// Package revocation provides the bounded, time-expiring negative cache that
// backs explicit token invalidation.
//
// Issued tokens are self-contained and otherwise trusted for their full
// validity window; the cache records the few that must die early (user-agent
// mismatch, explicit logout). Entries expire on the same TTL as the tokens
// themselves, so the cache never needs unbounded growth: a token older than
// the TTL is already rejected by its expiry claim.
package revocation

import (
	"context"
	"time"
)

// Cache is a bounded key-to-presence map with TTL eviction. Implementations
// must be safe for concurrent use.
type Cache interface {
	// Add marks a token as revoked. Duplicate inserts are benign.
	Add(ctx context.Context, token string) error
	// Contains reports whether a token is currently revoked.
	Contains(ctx context.Context, token string) (bool, error)
}

// DefaultCapacity bounds the in-memory cache entry count when unset.
const DefaultCapacity = 200

// DefaultTTL matches the default token validity window.
const DefaultTTL = 15 * time.Minute
