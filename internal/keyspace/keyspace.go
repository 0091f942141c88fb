// Package keyspace owns the Redis key layout for the authentication core.
//
// Every ephemeral record the engine writes lives under exactly one of the
// prefixes below. The mapping is kept in a single table so the namespace can
// be audited (and tested) in one place instead of being scattered as string
// literals across call sites.
package keyspace

// Kind identifies one class of ephemeral key.
type Kind uint8

const (
	// PendingAuth holds a serialized pending login/signup record.
	PendingAuth Kind = iota
	// PendingForgot holds a serialized pending recovery record.
	PendingForgot
	// PendingUpdate holds a serialized pending password-update record.
	PendingUpdate
	// Session is the per-session liveness key.
	Session
	// SessionSet is the per-email sorted set of live session IDs.
	SessionSet
	// AttemptLock is the short-lived verification mutual-exclusion marker.
	AttemptLock
	// FreezeStamp is the recovery freeze timestamp marker.
	FreezeStamp
	// ThrottleAuth rate-limits the authenticate endpoint per source.
	ThrottleAuth
	// ThrottleVerify rate-limits the verify endpoint per source.
	ThrottleVerify
	// ThrottleForgot rate-limits the forgot endpoint per source.
	ThrottleForgot

	kindCount
)

var prefixes = [kindCount]string{
	PendingAuth:    "auth_id",
	PendingForgot:  "forgot_id",
	PendingUpdate:  "update",
	Session:        "session_id",
	SessionSet:     "sessions",
	AttemptLock:    "temporary_lock",
	FreezeStamp:    "locked_timestamp",
	ThrottleAuth:   "auth_lock",
	ThrottleVerify: "verify_lock",
	ThrottleForgot: "forgot_lock",
}

// Prefix returns the Redis key prefix for a kind.
func (k Kind) Prefix() string {
	return prefixes[k]
}

// Key builds the full Redis key for a kind and identifier.
func Key(kind Kind, id string) string {
	return prefixes[kind] + ":" + id
}
