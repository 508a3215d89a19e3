// Package chart turns session lists into labeled time-series buckets for
// chart-rendering views. Bucketize is a pure function of the sessions and a
// reference "now"; rendering is layered on top.
package chart

import (
	"errors"
	"fmt"
	"time"

	"github.com/pacelog/pacelog/internal/session"
	"github.com/pacelog/pacelog/internal/stats"
)

// ErrUnknownPeriod is returned for an unrecognized period name.
var ErrUnknownPeriod = errors.New("unknown chart period")

// Period names a chart time range.
type Period string

// Chart periods.
const (
	Period7D Period = "7D"
	Period2W Period = "2W"
	Period4W Period = "4W"
	Period3M Period = "3M"
	Period1Y Period = "1Y"
)

// Bucket is one labeled point of a chart time series.
type Bucket struct {
	Label              string  `json:"label"`
	Hours              float64 `json:"hours"`
	SessionCount       int     `json:"session_count"`
	AvgDurationMinutes int     `json:"avg_duration_minutes"`
}

// Bucketize aggregates sessions into the period's buckets, chronological
// ascending with now anchoring the most recent bucket. The result always has
// exactly the period's bucket count; buckets without sessions carry zeroed
// metrics rather than being omitted.
//
// Day buckets match on calendar-date equality, week buckets on contiguous
// seven-day spans anchored to now (not calendar weeks), month buckets on
// month+year equality. Sessions are assigned by CreatedAt.
func Bucketize(sessions []*session.Session, period Period, now time.Time) ([]Bucket, error) {
	switch period {
	case Period7D:
		return dayBuckets(sessions, 7, now, false), nil
	case Period2W:
		return dayBuckets(sessions, 14, now, true), nil
	case Period4W:
		return weekBuckets(sessions, 4, now), nil
	case Period3M:
		// One bucket per natural unit, like every other period.
		return monthBuckets(sessions, 3, now), nil
	case Period1Y:
		return monthBuckets(sessions, 12, now), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}
}

func dayBuckets(sessions []*session.Session, count int, now time.Time, withDayOfMonth bool) []Bucket {
	loc := now.Location()
	buckets := make([]Bucket, 0, count)

	for offset := count - 1; offset >= 0; offset-- {
		day := now.AddDate(0, 0, -offset)
		y, m, d := day.Date()

		var totalSeconds, n int
		for _, s := range sessions {
			cy, cm, cd := s.CreatedAt.In(loc).Date()
			if cy == y && cm == m && cd == d {
				totalSeconds += s.DurationSeconds
				n++
			}
		}

		label := day.Format("Mon")
		if withDayOfMonth {
			label = day.Format("Mon 2")
		}
		buckets = append(buckets, newBucket(label, totalSeconds, n))
	}
	return buckets
}

func weekBuckets(sessions []*session.Session, count int, now time.Time) []Bucket {
	loc := now.Location()

	// Contiguous seven-day spans anchored to now, not calendar weeks. The
	// most recent span is [startOfDay(now-6d), now]; every older span ends
	// the instant the next one starts, so the spans tile the window with no
	// gap at the day-start boundaries.
	starts := make([]time.Time, count)
	starts[0] = startOfDay(now.AddDate(0, 0, -6), loc)
	for offset := 1; offset < count; offset++ {
		starts[offset] = starts[offset-1].AddDate(0, 0, -7)
	}

	buckets := make([]Bucket, 0, count)
	for offset := count - 1; offset >= 0; offset-- {
		start := starts[offset]

		var totalSeconds, n int
		for _, s := range sessions {
			at := s.CreatedAt.In(loc)
			if at.Before(start) {
				continue
			}
			if offset > 0 {
				if !at.Before(starts[offset-1]) {
					continue
				}
			} else if at.After(now) {
				continue
			}
			totalSeconds += s.DurationSeconds
			n++
		}

		label := fmt.Sprintf("Week %d", count-offset)
		buckets = append(buckets, newBucket(label, totalSeconds, n))
	}
	return buckets
}

func monthBuckets(sessions []*session.Session, count int, now time.Time) []Bucket {
	loc := now.Location()
	buckets := make([]Bucket, 0, count)

	for offset := count - 1; offset >= 0; offset-- {
		// time.Date normalizes out-of-range months, so January minus one
		// lands in December of the prior year.
		anchor := time.Date(now.Year(), now.Month()-time.Month(offset), 1, 0, 0, 0, 0, loc)

		var totalSeconds, n int
		for _, s := range sessions {
			at := s.CreatedAt.In(loc)
			if at.Year() == anchor.Year() && at.Month() == anchor.Month() {
				totalSeconds += s.DurationSeconds
				n++
			}
		}

		buckets = append(buckets, newBucket(anchor.Format("Jan"), totalSeconds, n))
	}
	return buckets
}

func newBucket(label string, totalSeconds, count int) Bucket {
	return Bucket{
		Label:              label,
		Hours:              float64(totalSeconds) / 3600,
		SessionCount:       count,
		AvgDurationMinutes: stats.AvgDurationMinutes(totalSeconds, count),
	}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
