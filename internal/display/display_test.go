package display

import (
	"testing"
	"time"
)

func TestHumanizeDate(t *testing.T) {
	// Wednesday, day 122 of the year: aligned week 18 spans Apr 29 to May 5.
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	testCases := []struct {
		date     string
		expected string
	}{
		{"2024-05-01", "Today"},
		{"2024-05-02", "Tomorrow"},
		{"2024-04-30", "Yesterday"},
		{"2024-05-04", "Saturday"},
		{"2024-04-29", "Monday"},
		{"2024-04-24", "Last Wednesday"},
		{"2024-05-08", "Next Wednesday"},
		{"2024-05-20", "May 20, 2024"},
		{"2023-05-01", "May 1, 2023"},
		{"garbage", "garbage"},
	}

	for _, tc := range testCases {
		t.Run(tc.date, func(t *testing.T) {
			if got := HumanizeDate(tc.date, now); got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestHumanizeTime(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 30, 0, time.UTC)

	testCases := []struct {
		time     string
		expected string
	}{
		{"09:00", "Now"},
		{"09:15", "In 14m"},
		{"08:45", "15m ago"},
		{"10:30", "10:30"},
		{"07:00", "07:00"},
		{"25:00", "25:00"},
	}

	for _, tc := range testCases {
		t.Run(tc.time, func(t *testing.T) {
			if got := HumanizeTime(tc.time, now); got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}
