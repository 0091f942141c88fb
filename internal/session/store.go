// Package session tracks live sessions in Redis.
//
// Two structures cooperate per identity. The liveness key
// session_id:<id> (with its own TTL) is the only authority on whether a
// session is valid. The sorted set sessions:<email>, scored by creation
// time, exists solely to cap how many sessions an identity can accumulate:
// inserts that push it past the cap evict the oldest member. The set never
// expires as a whole and may carry members whose liveness key is already
// gone; readers must never treat membership as validity.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/boilerswap/backend/internal/keyspace"
)

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("session store redis unavailable")

// Store manages session liveness keys and per-email capacity sets.
type Store struct {
	redis       redis.UniversalClient
	maxSessions int64
}

// NewStore returns a Store enforcing maxSessions live sessions per email.
func NewStore(redisClient redis.UniversalClient, maxSessions int) *Store {
	if maxSessions < 1 {
		maxSessions = 1
	}
	return &Store{redis: redisClient, maxSessions: int64(maxSessions)}
}

// Insert registers a new session: it writes the liveness key with the given
// TTL, adds the session to the email's sorted set scored by the current
// time, and evicts the oldest member if the set now exceeds the cap.
//
// The add-then-trim step is a read-then-conditional-write and is not
// transactional against concurrent inserts for the same email, so the set
// can transiently overshoot the cap by a small margin. The evicted member's
// liveness key is left to expire on its own; the set only stops the session
// from counting against capacity.
func (s *Store) Insert(ctx context.Context, email, sessionID string, ttl time.Duration) error {
	livenessKey := keyspace.Key(keyspace.Session, sessionID)
	setKey := keyspace.Key(keyspace.SessionSet, email)

	if err := s.redis.Set(ctx, livenessKey, 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	score := float64(time.Now().UnixNano()) / float64(time.Second)
	if err := s.redis.ZAdd(ctx, setKey, redis.Z{Score: score, Member: sessionID}).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	card, err := s.redis.ZCard(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if card > s.maxSessions {
		if err := s.redis.ZRemRangeByRank(ctx, setKey, 0, 0).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return nil
}

// IsLive reports whether the session's liveness key still exists.
func (s *Store) IsLive(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.redis.Exists(ctx, keyspace.Key(keyspace.Session, sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// Delete removes a single session's liveness key. Sorted-set membership is
// left for eviction or the janitor to reconcile.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, keyspace.Key(keyspace.Session, sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RevokeAll deletes every liveness key tracked in the email's sorted set,
// then the set itself, in one pipelined batch.
func (s *Store) RevokeAll(ctx context.Context, email string) error {
	setKey := keyspace.Key(keyspace.SessionSet, email)

	sessionIDs, err := s.redis.ZRange(ctx, setKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range sessionIDs {
			pipe.Del(ctx, keyspace.Key(keyspace.Session, id))
		}
		pipe.Del(ctx, setKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Members returns the session IDs currently tracked for email, oldest first.
// Membership does not imply liveness.
func (s *Store) Members(ctx context.Context, email string) ([]string, error) {
	ids, err := s.redis.ZRange(ctx, keyspace.Key(keyspace.SessionSet, email), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// Prune drops sorted-set members whose liveness key has expired. It returns
// the number of members removed. Used by the janitor, never on request
// paths.
func (s *Store) Prune(ctx context.Context, email string) (int, error) {
	setKey := keyspace.Key(keyspace.SessionSet, email)

	ids, err := s.redis.ZRange(ctx, setKey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	removed := 0
	for _, id := range ids {
		live, err := s.IsLive(ctx, id)
		if err != nil {
			return removed, err
		}
		if live {
			continue
		}
		if err := s.redis.ZRem(ctx, setKey, id).Err(); err != nil {
			return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		removed++
	}

	return removed, nil
}

// SetKeys scans for per-email sorted sets. Janitor use only; O(keys).
func (s *Store) SetKeys(ctx context.Context) ([]string, error) {
	pattern := keyspace.SessionSet.Prefix() + ":*"
	var (
		cursor uint64
		keys   []string
	)

	for {
		batch, next, err := s.redis.Scan(ctx, cursor, pattern, 512).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}
