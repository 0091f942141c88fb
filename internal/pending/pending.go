// Package pending stores in-flight authentication steps in Redis.
//
// A record represents one not-yet-verified login, signup, recovery, or
// password-update attempt. Records are keyed by a random identifier handed
// to the client as a cookie, carry a TTL, and are deleted on the first
// verification attempt whether or not it succeeds. Abandoned records expire
// on their own; there is no cleanup pass.
package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/boilerswap/backend/internal/keyspace"
)

var (
	// ErrNotFound is returned when no record exists for an identifier.
	ErrNotFound = errors.New("pending record not found")
	// ErrRedisUnavailable wraps transport-level Redis failures.
	ErrRedisUnavailable = errors.New("pending store redis unavailable")
)

// Action is the authentication flow that created a record.
type Action string

const (
	ActionLogin  Action = "login"
	ActionSignup Action = "signup"
	ActionForgot Action = "forgot"
	ActionUpdate Action = "update"
)

// Record is a serialized pending authentication step.
//
// IssuedAt is unix milliseconds and set only for login/signup records; the
// freeze check compares it against the recovery freeze marker. PasswordHash
// is set only for fresh signups, where the durable account does not exist
// yet and the hash has nowhere else to live.
type Record struct {
	Email        string `json:"email"`
	Action       Action `json:"action"`
	Code         string `json:"code"`
	IssuedAt     int64  `json:"issued_timestamp,omitempty"`
	PasswordHash string `json:"password_hash,omitempty"`
}

// Store reads and writes pending records and freeze markers.
type Store struct {
	redis redis.UniversalClient
}

// NewStore returns a Store backed by the given Redis client.
func NewStore(redisClient redis.UniversalClient) *Store {
	return &Store{redis: redisClient}
}

// Save serializes rec under the kind's prefix with the given TTL.
func (s *Store) Save(ctx context.Context, kind keyspace.Kind, id string, rec *Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, keyspace.Key(kind, id), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get fetches and decodes the record for id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, kind keyspace.Kind, id string) (*Record, error) {
	data, err := s.redis.Get(ctx, keyspace.Key(kind, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes the record for id. Deleting a missing record is not an
// error; the TTL may have beaten us to it.
func (s *Store) Delete(ctx context.Context, kind keyspace.Kind, id string) error {
	if err := s.redis.Del(ctx, keyspace.Key(kind, id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// SetFreezeStamp records that recovery began for email. The stored value is
// the frozen-until instant in unix milliseconds; any login record issued
// before it must be rejected at verification time.
func (s *Store) SetFreezeStamp(ctx context.Context, email string, frozenUntil time.Time, ttl time.Duration) error {
	key := keyspace.Key(keyspace.FreezeStamp, email)
	value := strconv.FormatInt(frozenUntil.UnixMilli(), 10)

	if err := s.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// FreezeStamp returns the frozen-until instant for email in unix
// milliseconds. ok is false when no marker exists or it has expired.
func (s *Store) FreezeStamp(ctx context.Context, email string) (stamp int64, ok bool, err error) {
	value, err := s.redis.Get(ctx, keyspace.Key(keyspace.FreezeStamp, email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	stamp, parseErr := strconv.ParseInt(value, 10, 64)
	if parseErr != nil {
		return 0, false, parseErr
	}
	return stamp, true, nil
}
