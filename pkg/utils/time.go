package utils

import (
	"errors"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

var ErrInvertedRange = errors.New("start is after end")

// ParseUserTime accepts RFC3339 or a bare YYYY-MM-DD date. A bare date used
// as an upper bound covers the whole day, up to 23:59:59.
func ParseUserTime(value string, upperBound bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}

	day, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, expected RFC3339 or YYYY-MM-DD", value)
	}
	if upperBound {
		return day.Add(24*time.Hour - time.Second), nil
	}
	return day, nil
}

// TimeRange is an optional pair of bounds; a zero bound is open.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// ParseTimeRange parses both bounds, leaving empty values open, and rejects
// a start that falls after the end.
func ParseTimeRange(start, end string) (TimeRange, error) {
	var r TimeRange
	var err error
	if start != "" {
		if r.Start, err = ParseUserTime(start, false); err != nil {
			return TimeRange{}, fmt.Errorf("start_time: %w", err)
		}
	}
	if end != "" {
		if r.End, err = ParseUserTime(end, true); err != nil {
			return TimeRange{}, fmt.Errorf("end_time: %w", err)
		}
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.Start.After(r.End) {
		return TimeRange{}, ErrInvertedRange
	}
	return r, nil
}
