package domain

import (
	"errors"
	"testing"
	"time"
)

func TestDescribePriority(t *testing.T) {
	testCases := []struct {
		priority int
		expected string
	}{
		{0, "Low"},
		{1, "Normal"},
		{2, "Urgent"},
		{3, "Normal"},
		{-1, "Normal"},
		{42, "Normal"},
	}

	for _, tc := range testCases {
		if got := DescribePriority(tc.priority); got != tc.expected {
			t.Errorf("DescribePriority(%d) = %q, expected %q", tc.priority, got, tc.expected)
		}
	}
}

func TestNominalTime(t *testing.T) {
	loc := time.FixedZone("test", 2*60*60)

	t.Run("valid date and time", func(t *testing.T) {
		r := Reminder{ID: 1, Date: "2025-03-14", Time: "09:30"}
		got, err := r.NominalTime(loc)
		if err != nil {
			t.Fatalf("NominalTime() returned an unexpected error: %v", err)
		}
		expected := time.Date(2025, 3, 14, 9, 30, 0, 0, loc)
		if !got.Equal(expected) {
			t.Errorf("Expected %v, but got %v", expected, got)
		}
	})

	t.Run("malformed time", func(t *testing.T) {
		r := Reminder{ID: 2, Date: "2025-03-14", Time: "9.30"}
		if _, err := r.NominalTime(loc); !errors.Is(err, ErrInvalidReminder) {
			t.Errorf("Expected ErrInvalidReminder, but got %v", err)
		}
	})
}

func TestReminderValidate(t *testing.T) {
	testCases := []struct {
		name    string
		r       Reminder
		wantErr bool
	}{
		{"valid", Reminder{Date: "2025-01-02", Time: "08:00", Title: "Stand-up"}, false},
		{"out of range priority is allowed", Reminder{Date: "2025-01-02", Time: "08:00", Title: "x", Priority: 7}, false},
		{"missing title", Reminder{Date: "2025-01-02", Time: "08:00"}, true},
		{"bad date", Reminder{Date: "02/01/2025", Time: "08:00", Title: "x"}, true},
		{"bad time", Reminder{Date: "2025-01-02", Time: "25:00", Title: "x"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.r.Validate()
			if tc.wantErr && !errors.Is(err, ErrInvalidReminder) {
				t.Errorf("Expected ErrInvalidReminder, but got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error, but got %v", err)
			}
		})
	}
}

func TestPayloadHasRepeat(t *testing.T) {
	p := Payload{RepeatIntervalMinutes: 5, MaxRepeatCount: 3, Count: 1}
	if !p.HasRepeat() {
		t.Error("Expected first delivery of a 3-count repeat to have a follow-up")
	}
	p.Count = 3
	if p.HasRepeat() {
		t.Error("Expected no follow-up after the last delivery")
	}
	if (Payload{MaxRepeatCount: 3, Count: 1}).HasRepeat() {
		t.Error("Expected no follow-up without a repeat interval")
	}
}

func TestAuthErrorIs(t *testing.T) {
	err := error(&AuthError{Source: "work", RecoveryURL: "https://example.com/consent"})
	if !errors.Is(err, ErrAuthorizationRequired) {
		t.Error("Expected AuthError to match ErrAuthorizationRequired")
	}
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.RecoveryURL == "" {
		t.Error("Expected AuthError to carry its recovery URL")
	}
}
