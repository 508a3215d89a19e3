package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pacelog/pacelog/internal/chart"
	"github.com/pacelog/pacelog/internal/middleware"
	"github.com/pacelog/pacelog/internal/session"
)

// ChartHandlers holds dependencies for chart HTTP handlers.
type ChartHandlers struct {
	sessions session.Store
	logger   *slog.Logger
	now      func() time.Time
}

// NewChartHandlers creates a new ChartHandlers instance.
func NewChartHandlers(store session.Store, logger *slog.Logger) *ChartHandlers {
	return &ChartHandlers{sessions: store, logger: logger, now: time.Now}
}

// GetChart handles GET /stats/chart.
//
// Query parameters:
//   - period: 7D (default), 2W, 4W, 3M, 1Y
//   - format: json (default) or png
//
// The bucket sequence always has the period's full bucket count; empty
// buckets carry zeros rather than being omitted.
func (h *ChartHandlers) GetChart(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	if viewerID == "" {
		WriteError(w, r, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	period := chart.Period7D
	if raw := r.URL.Query().Get("period"); raw != "" {
		period = chart.Period(raw)
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "png" {
		WriteError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "format must be json or png")
		return
	}

	sessions, err := fetchAllSessions(r.Context(), h.sessions, viewerID)
	if err != nil {
		h.logger.Error("failed to load sessions for chart", "error", err, "user_id", viewerID)
		WriteError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to build chart")
		return
	}

	buckets, err := chart.Bucketize(sessions, period, h.now())
	if err != nil {
		if errors.Is(err, chart.ErrUnknownPeriod) {
			WriteError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "period must be one of 7D, 2W, 4W, 3M, 1Y")
			return
		}
		h.logger.Error("failed to bucketize sessions", "error", err, "user_id", viewerID)
		WriteError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to build chart")
		return
	}

	if format == "png" {
		w.Header().Set("Content-Type", "image/png")
		if err := chart.RenderPNG(buckets, w); err != nil {
			// Headers are already written; log and bail.
			h.logger.Error("failed to render chart PNG", "error", err, "user_id", viewerID)
		}
		return
	}

	WriteJSON(w, http.StatusOK, struct {
		Period  chart.Period   `json:"period"`
		Buckets []chart.Bucket `json:"buckets"`
	}{Period: period, Buckets: buckets})
}
