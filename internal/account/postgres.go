package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store against a users table.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects with the given DSN, verifies the connection, and
// ensures the users table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStore wraps an existing connection pool. The caller owns the
// pool's lifecycle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	const q = `
		CREATE TABLE IF NOT EXISTS users (
			email         TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL,
			locked        BOOLEAN NOT NULL DEFAULT FALSE
		)
	`
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("migrate users table: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Get fetches the identity for email, or (nil, nil) when none exists.
func (s *PostgresStore) Get(ctx context.Context, email string) (*User, error) {
	const q = `SELECT password_hash, locked FROM users WHERE email = $1`

	u := User{Email: email}
	err := s.db.QueryRowContext(ctx, q, email).Scan(&u.PasswordHash, &u.Locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// Insert creates a new unlocked identity.
func (s *PostgresStore) Insert(ctx context.Context, email, passwordHash string) error {
	const q = `INSERT INTO users (email, password_hash, locked) VALUES ($1, $2, FALSE)`

	if _, err := s.db.ExecContext(ctx, q, email, passwordHash); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// SetLocked flips the durable locked flag.
func (s *PostgresStore) SetLocked(ctx context.Context, email string, locked bool) error {
	const q = `UPDATE users SET locked = $1 WHERE email = $2`

	if _, err := s.db.ExecContext(ctx, q, locked, email); err != nil {
		return fmt.Errorf("set locked: %w", err)
	}
	return nil
}

// Unlock clears the locked flag and installs the new password hash in a
// single statement.
func (s *PostgresStore) Unlock(ctx context.Context, email, newPasswordHash string) error {
	const q = `UPDATE users SET locked = FALSE, password_hash = $1 WHERE email = $2`

	if _, err := s.db.ExecContext(ctx, q, newPasswordHash, email); err != nil {
		return fmt.Errorf("unlock user: %w", err)
	}
	return nil
}
