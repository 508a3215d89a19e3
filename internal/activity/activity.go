// Package activity provides activity/category summaries referenced by
// sessions. Activities may be system defaults or user-defined custom
// categories; unknown references are tolerated by callers.
package activity

import (
	"context"
	"errors"
	"sync"
)

// ErrActivityNotFound is returned when no activity exists for an id.
var ErrActivityNotFound = errors.New("activity not found")

// Activity is the category summary attached to feed items.
type Activity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon,omitempty"`
	Color string `json:"color,omitempty"`

	// System marks built-in default categories; the rest are user-defined.
	System bool `json:"system,omitempty"`

	// OwnerID is set for user-defined custom categories.
	OwnerID string `json:"owner_id,omitempty"`
}

// Store defines activity read operations.
type Store interface {
	// GetByID retrieves an activity by id, or ErrActivityNotFound.
	GetByID(ctx context.Context, id string) (*Activity, error)
}

// InMemoryStore is an in-memory implementation of Store.
// Thread-safe via RWMutex.
type InMemoryStore struct {
	mu         sync.RWMutex
	activities map[string]*Activity
}

// NewInMemoryStore creates a new in-memory activity store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		activities: make(map[string]*Activity),
	}
}

// Put adds or replaces an activity.
func (s *InMemoryStore) Put(a *Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.activities[a.ID] = &cp
}

// GetByID retrieves an activity by id.
func (s *InMemoryStore) GetByID(_ context.Context, id string) (*Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.activities[id]
	if !ok {
		return nil, ErrActivityNotFound
	}
	cp := *a
	return &cp, nil
}
