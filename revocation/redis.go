package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures from the Redis-backed cache.
var ErrRedisUnavailable = errors.New("revocation redis unavailable")

const redisKeyPrefix = "arv:"

// Redis is a Cache shared across processes. Tokens are stored under their
// SHA-256 digest so raw token material never reaches Redis, and every entry
// carries the TTL so Redis sheds stale revocations on its own.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis builds a Redis cache on client. Zero TTL falls back to DefaultTTL.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// Add marks token as revoked until the TTL elapses.
func (r *Redis) Add(ctx context.Context, token string) error {
	if err := r.client.Set(ctx, redisKey(token), "1", r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Contains reports whether token is currently revoked.
func (r *Redis) Contains(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, redisKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

func redisKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return redisKeyPrefix + hex.EncodeToString(sum[:])
}
