package utils

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout      = "2006-01-02"
	TimeOfDayLayout = "15:04:05"
)

// SplitTimestamp breaks a timestamp into the date and time-of-day strings the
// reporting tables carry alongside the full timestamp.
func SplitTimestamp(t time.Time) (date string, timeOfDay string) {
	return t.Format(DateLayout), t.Format(TimeOfDayLayout)
}

// ParseExecutionTimestamp parses the Date/Time column of a statement row.
// Flex statements separate date and time with a semicolon
// ("2024-03-04;09:31:02"); backtest files use a space. Fractional seconds,
// when present, are cut off. The result is UTC so date and time-of-day
// round-trip without conversion.
func ParseExecutionTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if len(s) > 19 {
		s = s[:19]
	}
	s = strings.Replace(s, ";", " ", 1)

	t, err := time.ParseInLocation(DateLayout+" "+TimeOfDayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse execution timestamp %q: %w", raw, err)
	}
	return t, nil
}

// HoursBetween returns the elapsed time from start to end in hours.
func HoursBetween(start, end time.Time) float64 {
	return end.Sub(start).Seconds() / 3600
}
