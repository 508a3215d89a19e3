// Package group provides group membership reads for group feed modes.
// Group CRUD itself lives outside the aggregation core; only "who are the
// active members" is consumed here.
package group

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrGroupNotFound is returned when no group exists for an id.
var ErrGroupNotFound = errors.New("group not found")

// Membership statuses. Only active members contribute to group feeds.
const (
	StatusActive  = "active"
	StatusPending = "pending"
	StatusLeft    = "left"
)

// Membership records a user's participation in a group.
type Membership struct {
	GroupID string    `json:"group_id"`
	UserID  string    `json:"user_id"`
	Role    string    `json:"role"`
	Status  string    `json:"status"`
	Since   time.Time `json:"since"`
}

// Store defines the membership reads the feed assembler needs.
type Store interface {
	// ActiveMemberIDs returns the user ids of active members of a group.
	// A group with no active members yields an empty slice, not an error.
	ActiveMemberIDs(ctx context.Context, groupID string) ([]string, error)
}

// InMemoryStore is an in-memory implementation of Store.
// Thread-safe via RWMutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	members map[string][]Membership // groupID -> memberships
}

// NewInMemoryStore creates a new in-memory group membership store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		members: make(map[string][]Membership),
	}
}

// AddMembership adds a membership record.
func (s *InMemoryStore) AddMembership(m Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.GroupID] = append(s.members[m.GroupID], m)
}

// ActiveMemberIDs returns the user ids of active members of a group.
func (s *InMemoryStore) ActiveMemberIDs(_ context.Context, groupID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, m := range s.members[groupID] {
		if m.Status == StatusActive {
			ids = append(ids, m.UserID)
		}
	}
	return ids, nil
}
