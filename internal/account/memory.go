package account

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]User)}
}

func (s *MemoryStore) Get(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[email]
	if !ok {
		return nil, nil
	}
	copied := u
	return &copied, nil
}

func (s *MemoryStore) Insert(_ context.Context, email, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[email]; exists {
		return fmt.Errorf("user %s already exists", email)
	}
	s.users[email] = User{Email: email, PasswordHash: passwordHash}
	return nil
}

func (s *MemoryStore) SetLocked(_ context.Context, email string, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[email]
	if !ok {
		return fmt.Errorf("user %s not found", email)
	}
	u.Locked = locked
	s.users[email] = u
	return nil
}

func (s *MemoryStore) Unlock(_ context.Context, email, newPasswordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[email]
	if !ok {
		return fmt.Errorf("user %s not found", email)
	}
	u.Locked = false
	u.PasswordHash = newPasswordHash
	s.users[email] = u
	return nil
}
