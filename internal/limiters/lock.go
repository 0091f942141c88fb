// Package limiters implements the short-TTL mutual-exclusion markers the
// authentication core uses for single-attempt verification and per-source
// endpoint throttling. Every lock is an atomic SET NX EX; nothing is ever
// released explicitly, the TTL bounds the exclusion window.
package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/boilerswap/backend/internal/keyspace"
)

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("lock backend unavailable")

// Lock acquires keyed one-shot locks against Redis.
type Lock struct {
	redis redis.UniversalClient
}

// NewLock returns a Lock backed by the given Redis client.
func NewLock(redisClient redis.UniversalClient) *Lock {
	return &Lock{redis: redisClient}
}

// Acquire atomically sets the lock for (kind, id) with the given TTL and
// reports whether this call created it. A false return means another
// request holds, or very recently held, the same lock.
func (l *Lock) Acquire(ctx context.Context, kind keyspace.Kind, id string, ttl time.Duration) (bool, error) {
	acquired, err := l.redis.SetNX(ctx, keyspace.Key(kind, id), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return acquired, nil
}

// Release drops a lock before its TTL. Most locks are simply left to
// expire; this exists for paths that consume the guarded record anyway and
// want the key gone with it.
func (l *Lock) Release(ctx context.Context, kind keyspace.Kind, id string) error {
	if err := l.redis.Del(ctx, keyspace.Key(kind, id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
