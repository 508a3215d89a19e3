package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pacelog/pacelog/internal/feed"
	"github.com/pacelog/pacelog/internal/middleware"
)

// FeedHandlers holds dependencies for feed HTTP handlers.
type FeedHandlers struct {
	assembler *feed.Assembler
	logger    *slog.Logger
}

// NewFeedHandlers creates a new FeedHandlers instance.
func NewFeedHandlers(assembler *feed.Assembler, logger *slog.Logger) *FeedHandlers {
	return &FeedHandlers{assembler: assembler, logger: logger}
}

// GetFeed handles GET /feed.
//
// Query parameters:
//   - mode: following (default), recent, all, trending, group,
//     group-members-unfollowed, user
//   - page_size: items per page (clamped server-side)
//   - cursor: opaque cursor from the previous page
//   - user_id: target user, required for mode=user
//   - group_id: target group, required for group modes
func (h *FeedHandlers) GetFeed(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	if viewerID == "" {
		WriteError(w, r, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	q := feed.Query{
		Mode:         feed.ModeFollowing,
		Cursor:       r.URL.Query().Get("cursor"),
		TargetUserID: r.URL.Query().Get("user_id"),
		GroupID:      r.URL.Query().Get("group_id"),
	}
	if mode := r.URL.Query().Get("mode"); mode != "" {
		q.Mode = feed.Mode(mode)
	}
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 0 {
			WriteError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "page_size must be a non-negative integer")
			return
		}
		q.PageSize = size
	}
	q.IsOwnProfile = q.Mode == feed.ModeUser && q.TargetUserID == viewerID

	page, err := h.assembler.Assemble(r.Context(), viewerID, q)
	if err != nil {
		h.writeFeedError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, page)
}

func (h *FeedHandlers) writeFeedError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, feed.ErrNotAuthenticated):
		WriteError(w, r, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
	case errors.Is(err, feed.ErrUnknownMode):
		WriteError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Unknown feed mode")
	case errors.Is(err, feed.ErrMissingTarget):
		WriteError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Missing user_id or group_id for requested mode")
	default:
		h.logger.Error("feed assembly failed", "error", err)
		WriteError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to assemble feed")
	}
}
