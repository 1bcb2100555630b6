package domain

import (
	"fmt"
	"strings"
)

// Settings controls how reminders of one priority are announced.
// A nil RepeatIntervalMinutes means the notification is not repeated.
type Settings struct {
	Priority              int    `json:"priority"`
	AdvanceMinutes        int    `json:"advance_minutes" validate:"min=0,max=10080"`
	RepeatIntervalMinutes *int   `json:"repeat_interval_minutes,omitempty" validate:"omitempty,min=1,max=1440"`
	MaxRepeatCount        int    `json:"max_repeat_count" validate:"min=1,max=100"`
	SoundRef              string `json:"sound_ref,omitempty"`
}

// DefaultSettings is applied when no settings row exists for a priority.
func DefaultSettings(priority int) Settings {
	return Settings{
		Priority:       priority,
		AdvanceMinutes: 0,
		MaxRepeatCount: 1,
	}
}

// SuggestedSettings are the presets offered when a priority is first
// configured.
func SuggestedSettings(priority int) Settings {
	switch priority {
	case PriorityNormal:
		return Settings{Priority: priority, AdvanceMinutes: 5, RepeatIntervalMinutes: intPtr(15), MaxRepeatCount: 2}
	case PriorityUrgent:
		return Settings{Priority: priority, AdvanceMinutes: 15, RepeatIntervalMinutes: intPtr(5), MaxRepeatCount: 3}
	default:
		return DefaultSettings(priority)
	}
}

// RepeatInterval returns the repeat interval in minutes, or 0 when unset.
func (s Settings) RepeatInterval() int {
	if s.RepeatIntervalMinutes == nil {
		return 0
	}
	return *s.RepeatIntervalMinutes
}

// Describe renders a short summary such as "5min before | Repeat every 15min | 2 times".
func (s Settings) Describe() string {
	var parts []string
	if s.AdvanceMinutes > 0 {
		parts = append(parts, fmt.Sprintf("%dmin before", s.AdvanceMinutes))
	}
	if s.RepeatIntervalMinutes != nil {
		parts = append(parts, fmt.Sprintf("Repeat every %dmin", *s.RepeatIntervalMinutes))
		if s.MaxRepeatCount > 1 {
			parts = append(parts, fmt.Sprintf("%d times", s.MaxRepeatCount))
		}
	}
	if s.SoundRef != "" {
		parts = append(parts, "Custom sound")
	}
	if len(parts) == 0 {
		return "On time"
	}
	return strings.Join(parts, " | ")
}

func intPtr(v int) *int {
	return &v
}
