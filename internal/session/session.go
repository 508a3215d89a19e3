// Package session provides models and stores for tracked activity sessions,
// the primary content unit of the feed.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/pacelog/pacelog/internal/validate"
)

// maxTitleLength bounds session titles in runes.
const maxTitleLength = 120

// Common errors for session operations.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidDuration = errors.New("duration must be >= 0")
)

// Visibility is the per-session access tier.
type Visibility string

// Visibility tiers. A private session is visible only to its owner; a
// followers session is visible to the owner and to the accounts that follow
// the owner.
const (
	VisibilityEveryone  Visibility = "everyone"
	VisibilityFollowers Visibility = "followers"
	VisibilityPrivate   Visibility = "private"
)

// Valid reports whether v is a known visibility tier.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityEveryone, VisibilityFollowers, VisibilityPrivate:
		return true
	}
	return false
}

// Session represents a logged unit of tracked activity.
//
// CreatedAt is the feed-recency ordering key; StartTime is when the activity
// occurred (a session can be logged after the fact, so the two can differ).
type Session struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	// ActivityID references an activity/category. Legacy records stored this
	// under category_id; readers must accept either, preferring ActivityID.
	ActivityID string `json:"activity_id,omitempty"`
	CategoryID string `json:"category_id,omitempty"`

	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	// DurationSeconds is non-negative. Zero is a valid duration (logged but
	// the timer never started), not an error.
	DurationSeconds int `json:"duration_seconds"`

	StartTime time.Time `json:"start_time"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Visibility Visibility `json:"visibility"`

	// SupportedBy is the source of truth for engagement; SupportCount is a
	// derived cache recomputed on every mutation and never trusted on read.
	SupportedBy  []string `json:"supported_by,omitempty"`
	SupportCount int      `json:"support_count"`

	// CommentCount is maintained by the comment subsystem; read-only here.
	CommentCount int `json:"comment_count"`
}

// EffectiveActivityID returns the activity reference, falling back to the
// legacy category_id field when activity_id is unset. Empty means unknown,
// which callers must tolerate.
func (s *Session) EffectiveActivityID() string {
	if s.ActivityID != "" {
		return s.ActivityID
	}
	return s.CategoryID
}

// IsSupportedBy reports whether userID is in the session's support set.
func (s *Session) IsSupportedBy(userID string) bool {
	for _, id := range s.SupportedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// VisibleTo reports whether the session may be shown to viewerID.
// viewerFollows is the set of user ids the viewer follows; a followers-only
// session is visible when the viewer follows the session owner.
func (s *Session) VisibleTo(viewerID string, viewerFollows map[string]struct{}) bool {
	if s.UserID == viewerID {
		return true
	}
	switch s.Visibility {
	case VisibilityEveryone:
		return true
	case VisibilityFollowers:
		_, follows := viewerFollows[s.UserID]
		return follows
	default:
		return false
	}
}

// Validate checks invariants that hold for every stored session.
func (s *Session) Validate() error {
	if s.DurationSeconds < 0 {
		return ErrInvalidDuration
	}
	if s.Visibility != "" && !s.Visibility.Valid() {
		return errors.New("unknown visibility: " + string(s.Visibility))
	}
	if _, err := validate.String(s.Title, validate.StringConstraints{MaxLength: maxTitleLength, AllowEmpty: true}); err != nil {
		return fmt.Errorf("title: %w", err)
	}
	if _, err := validate.Description(s.Description); err != nil {
		return fmt.Errorf("description: %w", err)
	}
	return nil
}
