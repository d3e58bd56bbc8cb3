package domain

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// HighRiskThreshold is the heat index at or above which an hour counts as a
// high-risk hour.
const HighRiskThreshold = HighThreshold

// Default windows used by the snapshot assembler.
const (
	ForwardHorizon = 24 * time.Hour
	LookbackWindow = 24 * time.Hour
)

// PeakInForwardWindow returns the reading with the highest heat index whose
// timestamp lies in [now, now+horizon]. When no reading falls inside the window
// it falls back to the trailing horizon-hours readings of the series, so any
// available history yields an answer. Ties resolve to the earliest entry.
// Returns nil only when the series has no usable readings.
//
// The series is expected in ascending timestamp order, as the loaders produce it.
func PeakInForwardWindow(series []HeatStressReading, now time.Time, horizon time.Duration) *HeatStressReading {
	usable := withTimestamps(series)
	if len(usable) == 0 {
		return nil
	}

	var window []HeatStressReading
	for _, r := range usable {
		if InForwardWindow(r.Timestamp, now, horizon) {
			window = append(window, r)
		}
	}
	if len(window) == 0 {
		window = trailing(usable, hoursIn(horizon))
	}

	best := 0
	for i := 1; i < len(window); i++ {
		if window[i].HeatIndexC > window[best].HeatIndexC {
			best = i
		}
	}
	peak := window[best]
	return &peak
}

// InForwardWindow reports whether t lies in [now, now+horizon].
func InForwardWindow(t, now time.Time, horizon time.Duration) bool {
	return !t.Before(now) && !t.After(now.Add(horizon))
}

// CountAboveThreshold counts readings with a timestamp in [now-lookback, now]
// and a heat index at or above threshold.
func CountAboveThreshold(series []HeatStressReading, now time.Time, lookback time.Duration, threshold float64) int {
	start := now.Add(-lookback)
	count := 0
	for _, r := range withTimestamps(series) {
		if r.Timestamp.Before(start) || r.Timestamp.After(now) {
			continue
		}
		if r.HeatIndexC >= threshold {
			count++
		}
	}
	return count
}

// MeanHeatIndex is the arithmetic mean heat index of the series, or nil when
// the series is empty.
func MeanHeatIndex(series []HeatStressReading) *float64 {
	values := make([]float64, 0, len(series))
	for _, r := range withTimestamps(series) {
		values = append(values, r.HeatIndexC)
	}
	return mean(values)
}

// MeanObserved is the mean of the known observed values, or nil when none
// are known.
func MeanObserved(points []DailyBaselinePoint) *float64 {
	values := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Observed != nil {
			values = append(values, *p.Observed)
		}
	}
	return mean(values)
}

// SelectForecastWindow picks up to n points for display. Points dated today or
// later take priority; when there are none, the most recent n past points are
// used instead. Points must be sorted by ascending date.
func SelectForecastWindow(points []ForecastPoint, today time.Time, n int) []ForecastPoint {
	if n <= 0 || len(points) == 0 {
		return []ForecastPoint{}
	}

	day := CalendarDay(today)
	var upcoming []ForecastPoint
	for _, p := range points {
		if !p.Date.Before(day) {
			upcoming = append(upcoming, p)
		}
	}

	var out []ForecastPoint
	if len(upcoming) > 0 {
		if len(upcoming) > n {
			upcoming = upcoming[:n]
		}
		out = upcoming
	} else {
		out = trailing(points, n)
	}
	return append([]ForecastPoint(nil), out...)
}

// CalendarDay returns midnight UTC of t's calendar date in t's own location.
// Daily datasets are keyed on these values.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func withTimestamps(series []HeatStressReading) []HeatStressReading {
	out := make([]HeatStressReading, 0, len(series))
	for _, r := range series {
		if r.Timestamp.IsZero() {
			continue
		}
		out = append(out, r)
	}
	return out
}

func trailing[T any](items []T, n int) []T {
	if n >= len(items) {
		return items
	}
	return items[len(items)-n:]
}

func hoursIn(d time.Duration) int {
	h := int(d / time.Hour)
	if h < 1 {
		return 1
	}
	return h
}

// MeanOf is the arithmetic mean of values, or nil when values is empty.
func MeanOf(values []float64) *float64 {
	return mean(values)
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	m := stat.Mean(values, nil)
	return &m
}
