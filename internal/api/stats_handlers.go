package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pacelog/pacelog/internal/middleware"
	"github.com/pacelog/pacelog/internal/session"
	"github.com/pacelog/pacelog/internal/stats"
)

// sessionFetchBatch is the page size used when loading a user's full history.
const sessionFetchBatch = 500

// comparisonWindows maps the comparison query parameter to a window length.
var comparisonWindows = map[string]time.Duration{
	"week":  7 * 24 * time.Hour,
	"month": 30 * 24 * time.Hour,
	"year":  365 * 24 * time.Hour,
}

// StatsHandlers holds dependencies for statistics HTTP handlers.
type StatsHandlers struct {
	sessions session.Store
	logger   *slog.Logger
	now      func() time.Time
}

// NewStatsHandlers creates a new StatsHandlers instance.
func NewStatsHandlers(store session.Store, logger *slog.Logger) *StatsHandlers {
	return &StatsHandlers{sessions: store, logger: logger, now: time.Now}
}

// GetStats handles GET /stats.
//
// Query parameters:
//   - comparison: week (default), month, year — the period-over-period window
//
// Statistics are recomputed from raw sessions on every call.
func (h *StatsHandlers) GetStats(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	if viewerID == "" {
		WriteError(w, r, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	comparison := comparisonWindows["week"]
	if raw := r.URL.Query().Get("comparison"); raw != "" {
		window, ok := comparisonWindows[raw]
		if !ok {
			WriteError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "comparison must be one of week, month, year")
			return
		}
		comparison = window
	}

	sessions, err := fetchAllSessions(r.Context(), h.sessions, viewerID)
	if err != nil {
		h.logger.Error("failed to load sessions for stats", "error", err, "user_id", viewerID)
		WriteError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to compute statistics")
		return
	}

	WriteJSON(w, http.StatusOK, stats.Compute(sessions, h.now(), comparison))
}

// fetchAllSessions pages through the store collecting every session owned by
// userID. Statistics and charts need the full history, not one feed page.
func fetchAllSessions(ctx context.Context, store session.Store, userID string) ([]*session.Session, error) {
	var all []*session.Session
	cursor := ""
	for {
		batch, hasMore, err := store.List(ctx, session.Query{
			Filter: session.Filter{UserID: userID},
			Limit:  sessionFetchBatch,
			Cursor: cursor,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if !hasMore || len(batch) == 0 {
			return all, nil
		}
		cursor = batch[len(batch)-1].ID
	}
}
