// Package socialgraph provides follow-relationship reads for feed assembly.
//
// Two storage representations exist: a fast adjacency-set lookup and a legacy
// edge list. The Reader resolves between them transparently; callers only ever
// see sets of user ids.
package socialgraph

import (
	"context"
	"errors"
	"sync"
)

// ErrEdgeExists is returned when adding a duplicate follow edge.
var ErrEdgeExists = errors.New("edge already exists")

// ErrSelfEdge is returned when a user attempts to follow themselves.
var ErrSelfEdge = errors.New("self edges are not allowed")

// Edge is a directed "follows" relationship. No self-edges; an edge for a
// given ordered pair is either present or absent, never duplicated.
type Edge struct {
	FollowerID string `json:"follower_id"`
	FolloweeID string `json:"followee_id"`
}

// AdjacencyStore is the primary, fast representation: per-user id sets.
type AdjacencyStore interface {
	// FollowingIDs returns the ids userID follows.
	FollowingIDs(ctx context.Context, userID string) ([]string, error)
	// FollowerIDs returns the ids following userID.
	FollowerIDs(ctx context.Context, userID string) ([]string, error)
}

// EdgeStore is the legacy representation: a flat scan of directed edges.
type EdgeStore interface {
	// EdgesFrom returns edges where userID is the follower.
	EdgesFrom(ctx context.Context, userID string) ([]Edge, error)
	// EdgesTo returns edges where userID is the followee.
	EdgesTo(ctx context.Context, userID string) ([]Edge, error)
}

// InMemoryAdjacencyStore is an in-memory AdjacencyStore.
// Thread-safe via RWMutex.
type InMemoryAdjacencyStore struct {
	mu        sync.RWMutex
	following map[string]map[string]struct{} // follower -> followees
	followers map[string]map[string]struct{} // followee -> followers
}

// NewInMemoryAdjacencyStore creates a new in-memory adjacency store.
func NewInMemoryAdjacencyStore() *InMemoryAdjacencyStore {
	return &InMemoryAdjacencyStore{
		following: make(map[string]map[string]struct{}),
		followers: make(map[string]map[string]struct{}),
	}
}

// Follow records followerID following followeeID. Duplicate edges and
// self-edges are rejected.
func (s *InMemoryAdjacencyStore) Follow(followerID, followeeID string) error {
	if followerID == followeeID {
		return ErrSelfEdge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.following[followerID][followeeID]; ok {
		return ErrEdgeExists
	}
	if s.following[followerID] == nil {
		s.following[followerID] = make(map[string]struct{})
	}
	if s.followers[followeeID] == nil {
		s.followers[followeeID] = make(map[string]struct{})
	}
	s.following[followerID][followeeID] = struct{}{}
	s.followers[followeeID][followerID] = struct{}{}
	return nil
}

// Unfollow removes an edge. Removing an absent edge is a no-op.
func (s *InMemoryAdjacencyStore) Unfollow(followerID, followeeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.following[followerID], followeeID)
	delete(s.followers[followeeID], followerID)
}

// FollowingIDs returns the ids userID follows.
func (s *InMemoryAdjacencyStore) FollowingIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return keys(s.following[userID]), nil
}

// FollowerIDs returns the ids following userID.
func (s *InMemoryAdjacencyStore) FollowerIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return keys(s.followers[userID]), nil
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// InMemoryEdgeStore is an in-memory EdgeStore holding a flat edge list.
// Thread-safe via RWMutex.
type InMemoryEdgeStore struct {
	mu    sync.RWMutex
	edges []Edge
}

// NewInMemoryEdgeStore creates a new in-memory edge store.
func NewInMemoryEdgeStore() *InMemoryEdgeStore {
	return &InMemoryEdgeStore{}
}

// AddEdge appends an edge to the legacy list. Duplicates and self-edges are
// rejected to preserve the edge invariants.
func (s *InMemoryEdgeStore) AddEdge(e Edge) error {
	if e.FollowerID == e.FolloweeID {
		return ErrSelfEdge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.edges {
		if existing == e {
			return ErrEdgeExists
		}
	}
	s.edges = append(s.edges, e)
	return nil
}

// EdgesFrom returns edges where userID is the follower.
func (s *InMemoryEdgeStore) EdgesFrom(_ context.Context, userID string) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Edge
	for _, e := range s.edges {
		if e.FollowerID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// EdgesTo returns edges where userID is the followee.
func (s *InMemoryEdgeStore) EdgesTo(_ context.Context, userID string) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Edge
	for _, e := range s.edges {
		if e.FolloweeID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}
