// Package stats computes derived rolling statistics from raw session records.
//
// Everything here is a pure function of a session list plus a reference "now";
// nothing is cached or persisted. Stats are recomputed on every call.
package stats

import (
	"math"
	"time"

	"github.com/pacelog/pacelog/internal/session"
)

// PeriodMetrics are the aggregates over one comparison window.
type PeriodMetrics struct {
	TotalHours         float64 `json:"total_hours"`
	SessionCount       int     `json:"session_count"`
	AvgDurationMinutes int     `json:"avg_duration_minutes"`
	ActiveDays         int     `json:"active_days"`
}

// PeriodChange holds period-over-period percent changes. A nil field means
// the prior period had no data to compare against; it must be rendered as
// "no comparison available", never as 0% or infinity.
type PeriodChange struct {
	TotalHours         *float64 `json:"total_hours,omitempty"`
	SessionCount       *float64 `json:"session_count,omitempty"`
	AvgDurationMinutes *float64 `json:"avg_duration_minutes,omitempty"`
	ActiveDays         *float64 `json:"active_days,omitempty"`
}

// PeriodStats is the full derived-statistics result for one user.
type PeriodStats struct {
	// Lifetime and current-week totals.
	TotalHours       float64 `json:"total_hours"`
	WeeklyHours      float64 `json:"weekly_hours"`
	WeekSessionCount int     `json:"week_session_count"`

	// CurrentStreakDays counts consecutive calendar days ending today with at
	// least one session. Zero when nothing was logged today.
	CurrentStreakDays int `json:"current_streak_days"`

	// Period covers [now-L, now]; Change compares it against [now-2L, now-L).
	Period PeriodMetrics `json:"period"`
	Change PeriodChange  `json:"change"`
}

// Compute derives rolling statistics from sessions at reference time now.
// comparison is the window length L for period-over-period change.
//
// Sessions are bucketed by CreatedAt (when the record was logged), matching
// feed recency rather than StartTime.
func Compute(sessions []*session.Session, now time.Time, comparison time.Duration) PeriodStats {
	stats := PeriodStats{}

	weekStart := WeekStart(now)
	for _, s := range sessions {
		stats.TotalHours += hours(s.DurationSeconds)
		if !s.CreatedAt.Before(weekStart) && !s.CreatedAt.After(now) {
			stats.WeeklyHours += hours(s.DurationSeconds)
			stats.WeekSessionCount++
		}
	}

	stats.CurrentStreakDays = CurrentStreak(sessions, now)

	current := metricsInWindow(sessions, now.Add(-comparison), now, true)
	previous := metricsInWindow(sessions, now.Add(-2*comparison), now.Add(-comparison), false)
	stats.Period = current
	stats.Change = PeriodChange{
		TotalHours:         PercentChange(current.TotalHours, previous.TotalHours),
		SessionCount:       PercentChange(float64(current.SessionCount), float64(previous.SessionCount)),
		AvgDurationMinutes: PercentChange(float64(current.AvgDurationMinutes), float64(previous.AvgDurationMinutes)),
		ActiveDays:         PercentChange(float64(current.ActiveDays), float64(previous.ActiveDays)),
	}
	return stats
}

// WeekStart returns the most recent Sunday 00:00 in now's location.
// The Sunday week boundary is a fixed convention, not configurable.
func WeekStart(now time.Time) time.Time {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return today.AddDate(0, 0, -int(today.Weekday()))
}

// CurrentStreak counts consecutive calendar days ending today (in now's
// location) with at least one session. A session logged today counts even
// with zero duration; the streak is zero when nothing was logged today,
// however long the prior run was.
func CurrentStreak(sessions []*session.Session, now time.Time) int {
	days := make(map[string]struct{}, len(sessions))
	loc := now.Location()
	for _, s := range sessions {
		days[dayKey(s.CreatedAt.In(loc))] = struct{}{}
	}

	streak := 0
	for day := now; ; day = day.AddDate(0, 0, -1) {
		if _, ok := days[dayKey(day)]; !ok {
			break
		}
		streak++
	}
	return streak
}

// PercentChange returns the relative change between two adjacent windows as a
// percentage, or nil when the previous window is zero. Division by a zero
// base is an expected input, not an error, and the nil must propagate to
// display untouched.
func PercentChange(current, previous float64) *float64 {
	if previous == 0 {
		return nil
	}
	v := (current - previous) / previous * 100
	return &v
}

// AvgDurationMinutes returns sum/count in minutes rounded to nearest, zero
// when count is zero.
func AvgDurationMinutes(totalSeconds, count int) int {
	if count == 0 {
		return 0
	}
	return int(math.Round(float64(totalSeconds) / float64(count) / 60))
}

// metricsInWindow aggregates sessions with CreatedAt in the window.
// inclusiveEnd selects [start, end]; otherwise [start, end).
func metricsInWindow(sessions []*session.Session, start, end time.Time, inclusiveEnd bool) PeriodMetrics {
	var totalSeconds, count int
	days := make(map[string]struct{})
	for _, s := range sessions {
		if s.CreatedAt.Before(start) {
			continue
		}
		if inclusiveEnd {
			if s.CreatedAt.After(end) {
				continue
			}
		} else if !s.CreatedAt.Before(end) {
			continue
		}
		totalSeconds += s.DurationSeconds
		count++
		days[dayKey(s.CreatedAt.In(end.Location()))] = struct{}{}
	}
	return PeriodMetrics{
		TotalHours:         hours(totalSeconds),
		SessionCount:       count,
		AvgDurationMinutes: AvgDurationMinutes(totalSeconds, count),
		ActiveDays:         len(days),
	}
}

func hours(seconds int) float64 {
	return float64(seconds) / 3600
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
