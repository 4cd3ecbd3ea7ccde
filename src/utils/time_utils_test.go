package utils

import (
	"testing"
	"time"
)

func TestSplitTimestamp(t *testing.T) {
	ts := time.Date(2024, 3, 4, 9, 31, 2, 0, time.UTC)

	date, timeOfDay := SplitTimestamp(ts)
	if date != "2024-03-04" {
		t.Fatalf("date mismatch. got=%s want=2024-03-04", date)
	}
	if timeOfDay != "09:31:02" {
		t.Fatalf("time of day mismatch. got=%s want=09:31:02", timeOfDay)
	}
}

func TestParseExecutionTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 4, 9, 31, 2, 0, time.UTC)

	tests := []struct {
		name string
		raw  string
	}{
		{name: "flex semicolon", raw: "2024-03-04;09:31:02"},
		{name: "backtest space", raw: "2024-03-04 09:31:02"},
		{name: "fractional seconds cut off", raw: "2024-03-04 09:31:02.123456"},
		{name: "surrounding whitespace", raw: " 2024-03-04;09:31:02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExecutionTimestamp(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(want) {
				t.Fatalf("timestamp mismatch. got=%v want=%v", got, want)
			}
		})
	}

	t.Run("garbage input", func(t *testing.T) {
		if _, err := ParseExecutionTimestamp("not a timestamp"); err == nil {
			t.Fatal("expected error for unparseable timestamp")
		}
	})
}

func TestHoursBetween(t *testing.T) {
	start := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)

	if got := HoursBetween(start, end); got != 1.5 {
		t.Fatalf("hours mismatch. got=%v want=1.5", got)
	}
}
