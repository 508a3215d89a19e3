// Package feed assembles paginated, permission-filtered session feeds.
//
// The backing store can only filter by simple equality and ranges, so modes
// whose predicate needs dynamic set membership (authored by anyone the viewer
// follows, active group members, ...) over-fetch raw candidates and filter
// client-side, paginating on the surviving records.
package feed

import (
	"errors"

	"github.com/pacelog/pacelog/internal/activity"
	"github.com/pacelog/pacelog/internal/session"
	"github.com/pacelog/pacelog/internal/user"
)

// Common errors for feed assembly.
var (
	// ErrNotAuthenticated is returned when no viewer identity is available.
	// A feed cannot be permission-filtered without a viewer.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrStoreUnavailable is returned when a read failed even after the
	// transparent retry. Callers may retry the whole request later.
	ErrStoreUnavailable = errors.New("session store unavailable")

	// ErrUnknownMode is returned for an unrecognized feed mode.
	ErrUnknownMode = errors.New("unknown feed mode")

	// ErrMissingTarget is returned when a mode requires a target (group or
	// user id) that was not supplied.
	ErrMissingTarget = errors.New("feed mode requires a target id")
)

// Mode names a selection strategy for feed candidates.
type Mode string

// Feed modes.
const (
	// ModeFollowing: sessions authored by accounts the viewer follows.
	ModeFollowing Mode = "following"
	// ModeRecent: sessions authored by the viewer and accounts they follow.
	ModeRecent Mode = "recent"
	// ModeAll: all sessions visible to the viewer.
	ModeAll Mode = "all"
	// ModeTrending: public sessions created within the last 7 days.
	ModeTrending Mode = "trending"
	// ModeGroup: sessions authored by active members of a group.
	ModeGroup Mode = "group"
	// ModeGroupUnfollowed: sessions authored by active group members the
	// viewer does not already follow (discovery surface).
	ModeGroupUnfollowed Mode = "group-members-unfollowed"
	// ModeUser: sessions authored by a specific target user.
	ModeUser Mode = "user"
)

// Valid reports whether m is a known feed mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeFollowing, ModeRecent, ModeAll, ModeTrending, ModeGroup, ModeGroupUnfollowed, ModeUser:
		return true
	}
	return false
}

// Query describes one feed page request.
type Query struct {
	Mode     Mode
	PageSize int
	// Cursor is opaque to callers: round-trip the previous page's NextCursor
	// verbatim, or leave empty for the first page.
	Cursor string

	// TargetUserID is required for ModeUser.
	TargetUserID string
	// GroupID is required for ModeGroup and ModeGroupUnfollowed.
	GroupID string
	// IsOwnProfile widens ModeUser to all visibility tiers (a user always
	// sees their own sessions).
	IsOwnProfile bool
}

// Item is a session annotated for the viewer: author and activity summaries
// populated, support state resolved.
type Item struct {
	Session  *session.Session   `json:"session"`
	Author   *user.User         `json:"author"`
	Activity *activity.Activity `json:"activity,omitempty"`

	// IsSupported reports whether the viewer is in the session's support set.
	IsSupported bool `json:"is_supported"`
}

// Page is one assembled feed page. NextCursor is present iff HasMore.
//
// A page may carry fewer than PageSize items with HasMore still true when
// client-side filtering discarded most of an over-fetched batch; HasMore is
// authoritative and a short page never means end-of-feed.
type Page struct {
	Items      []Item `json:"items"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
}
