// Package user provides the user summaries the feed annotates sessions with,
// plus the store interface the aggregation core reads them through.
package user

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrUserNotFound is returned when no user record exists for an id.
// A missing author is a data-integrity gap the feed handles by dropping the
// affected session, never by surfacing an error.
var ErrUserNotFound = errors.New("user not found")

// User is the profile summary attached to feed items.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`

	// FollowersCount is a denormalized counter. nil means the field was never
	// written; the social graph reader lazily repairs it from the derived set.
	FollowersCount *int `json:"followers_count,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Store defines user read operations plus the idempotent counter repair hook.
type Store interface {
	// GetByID retrieves a user by id, or ErrUserNotFound.
	GetByID(ctx context.Context, id string) (*User, error)

	// SetFollowersCount rewrites the denormalized followers counter.
	// Safe to redo concurrently; failures must never fail a read path.
	SetFollowersCount(ctx context.Context, id string, count int) error
}

// InMemoryStore is an in-memory implementation of Store.
// Thread-safe via RWMutex.
type InMemoryStore struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewInMemoryStore creates a new in-memory user store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users: make(map[string]*User),
	}
}

// Put adds or replaces a user record.
func (s *InMemoryStore) Put(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
}

// Remove deletes a user record (simulates a deleted account).
func (s *InMemoryStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

// GetByID retrieves a user by id.
func (s *InMemoryStore) GetByID(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// SetFollowersCount rewrites the denormalized followers counter.
func (s *InMemoryStore) SetFollowersCount(_ context.Context, id string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.FollowersCount = &count
	return nil
}
