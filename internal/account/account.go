// Package account defines the durable user record contract consumed by the
// authentication core, plus its Postgres implementation.
//
// The core only ever reads and writes three attributes per identity: the
// password hash (absent for passwordless identities), and the locked flag
// set during credential recovery. Everything else about a user is somebody
// else's table.
package account

import "context"

// User is the durable identity record.
type User struct {
	Email        string
	PasswordHash string
	Locked       bool
}

// Store is the durable user store contract.
//
// Get returns (nil, nil) when no identity exists for email — absence is a
// normal answer during signup, not an error.
type Store interface {
	Get(ctx context.Context, email string) (*User, error)
	Insert(ctx context.Context, email, passwordHash string) error
	SetLocked(ctx context.Context, email string, locked bool) error
	// Unlock atomically clears the locked flag and replaces the password
	// hash; recovery must never leave an unlocked account with the old
	// credential.
	Unlock(ctx context.Context, email, newPasswordHash string) error
}
