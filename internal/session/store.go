package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Filter restricts a List scan. The store can only apply simple equality and
// range predicates; dynamic set-membership filtering (e.g. "authored by anyone
// the viewer follows") is the caller's job on top of an over-fetched batch.
type Filter struct {
	// UserID restricts to a single author when non-empty.
	UserID string
	// Visibility restricts to a single tier when non-empty.
	Visibility Visibility
	// CreatedAfter/CreatedBefore bound CreatedAt when non-zero (inclusive
	// lower bound, exclusive upper bound).
	CreatedAfter  time.Time
	CreatedBefore time.Time
}

// Query describes one List call: a filter, a limit, and an optional cursor
// identifying the last record already seen. The cursor is a session ID; the
// scan resumes strictly after that record's (created_at, id) position.
type Query struct {
	Filter Filter
	Limit  int
	Cursor string
}

// Store defines session persistence operations. List scans are ordered by
// created_at DESC with id ASC tie-breaking so cursor pagination is stable.
type Store interface {
	// Create inserts a new session, assigning an ID when unset.
	Create(ctx context.Context, s *Session) error

	// Update replaces mutable fields of an existing session.
	Update(ctx context.Context, s *Session) error

	// Delete removes a session.
	Delete(ctx context.Context, id string) error

	// GetByID retrieves a session by ID, or ErrSessionNotFound.
	GetByID(ctx context.Context, id string) (*Session, error)

	// List scans sessions matching q ordered by created_at DESC, id ASC.
	// The second result reports whether more records matched beyond the limit.
	List(ctx context.Context, q Query) ([]*Session, bool, error)

	// Support adds userID to the session's support set; Unsupport removes it.
	// Both recompute SupportCount from the set and are idempotent.
	Support(ctx context.Context, sessionID, userID string) (*Session, error)
	Unsupport(ctx context.Context, sessionID, userID string) (*Session, error)
}

// InMemoryStore is an in-memory implementation of Store.
// Thread-safe via RWMutex.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session // ID -> Session
}

// NewInMemoryStore creates a new in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*Session),
	}
}

// Create inserts a new session with a generated UUID when no ID is set.
func (s *InMemoryStore) Create(_ context.Context, sess *Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	if sess.Visibility == "" {
		sess.Visibility = VisibilityEveryone
	}
	sess.SupportCount = len(sess.SupportedBy)

	cp := cloneSession(sess)
	s.sessions[sess.ID] = cp
	return nil
}

// Update replaces mutable fields of an existing session.
func (s *InMemoryStore) Update(_ context.Context, sess *Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[sess.ID]
	if !ok {
		return ErrSessionNotFound
	}

	existing.Title = sess.Title
	existing.Description = sess.Description
	existing.ActivityID = sess.ActivityID
	existing.DurationSeconds = sess.DurationSeconds
	existing.StartTime = sess.StartTime
	existing.Visibility = sess.Visibility
	existing.UpdatedAt = time.Now()
	return nil
}

// Delete removes a session.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// GetByID retrieves a session by ID.
func (s *InMemoryStore) GetByID(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cloneSession(sess), nil
}

// List scans sessions matching q ordered by created_at DESC, id ASC.
func (s *InMemoryStore) List(_ context.Context, q Query) ([]*Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Resolve the cursor to a (created_at, id) position. An unknown cursor
	// (e.g. the record was deleted) restarts from the top rather than failing,
	// matching the "opaque handle" contract.
	var cursorAt time.Time
	var cursorID string
	if q.Cursor != "" {
		if c, ok := s.sessions[q.Cursor]; ok {
			cursorAt = c.CreatedAt
			cursorID = c.ID
		}
	}

	var candidates []*Session
	for _, sess := range s.sessions {
		if !matchFilter(sess, q.Filter) {
			continue
		}
		if cursorID != "" {
			// Skip records at or before the cursor position in
			// (created_at DESC, id ASC) order.
			if sess.CreatedAt.After(cursorAt) {
				continue
			}
			if sess.CreatedAt.Equal(cursorAt) && sess.ID <= cursorID {
				continue
			}
		}
		candidates = append(candidates, sess)
	}

	sortByCreatedDesc(candidates)

	hasMore := false
	if q.Limit > 0 && len(candidates) > q.Limit {
		candidates = candidates[:q.Limit]
		hasMore = true
	}

	copies := make([]*Session, len(candidates))
	for i, c := range candidates {
		copies[i] = cloneSession(c)
	}
	return copies, hasMore, nil
}

// Support adds userID to the session's support set and recomputes the count.
// Repeating the same support is a no-op.
func (s *InMemoryStore) Support(_ context.Context, sessionID, userID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	if !sess.IsSupportedBy(userID) {
		sess.SupportedBy = append(sess.SupportedBy, userID)
	}
	sess.SupportCount = len(sess.SupportedBy)
	sess.UpdatedAt = time.Now()
	return cloneSession(sess), nil
}

// Unsupport removes userID from the session's support set and recomputes the
// count. Removing an absent supporter is a no-op.
func (s *InMemoryStore) Unsupport(_ context.Context, sessionID, userID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	kept := sess.SupportedBy[:0]
	for _, id := range sess.SupportedBy {
		if id != userID {
			kept = append(kept, id)
		}
	}
	sess.SupportedBy = kept
	sess.SupportCount = len(sess.SupportedBy)
	sess.UpdatedAt = time.Now()
	return cloneSession(sess), nil
}

func matchFilter(s *Session, f Filter) bool {
	if f.UserID != "" && s.UserID != f.UserID {
		return false
	}
	if f.Visibility != "" && s.Visibility != f.Visibility {
		return false
	}
	if !f.CreatedAfter.IsZero() && s.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && !s.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	return true
}

// sortByCreatedDesc sorts sessions by created_at DESC, then by ID ASC for
// tie-breaking. This provides stable ordering for cursor-based pagination.
func sortByCreatedDesc(sessions []*Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.After(sessions[j].CreatedAt) {
			return true
		}
		if sessions[i].CreatedAt.Before(sessions[j].CreatedAt) {
			return false
		}
		return sessions[i].ID < sessions[j].ID
	})
}

func cloneSession(s *Session) *Session {
	cp := *s
	if s.SupportedBy != nil {
		cp.SupportedBy = make([]string, len(s.SupportedBy))
		copy(cp.SupportedBy, s.SupportedBy)
	}
	return &cp
}
