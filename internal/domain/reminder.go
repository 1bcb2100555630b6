package domain

import (
	"fmt"
	"time"
)

// Priority levels. Stored as plain integers; anything outside this set is
// displayed as Normal.
const (
	PriorityLow    = 0
	PriorityNormal = 1
	PriorityUrgent = 2
)

// Layouts for the wall-clock fields of a Reminder.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Reminder is a user-visible task due at a local date and time.
// ExternalID links it to a remote calendar event and is empty for reminders
// that only exist locally.
type Reminder struct {
	ID         int64     `json:"id"`
	Date       string    `json:"date" validate:"required,datetime=2006-01-02"`
	Time       string    `json:"time" validate:"required,datetime=15:04"`
	Title      string    `json:"title" validate:"required,max=500"`
	Priority   int       `json:"priority"`
	Completed  bool      `json:"completed"`
	Sound      bool      `json:"sound"`
	ExternalID string    `json:"external_id,omitempty" validate:"max=1024"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsLocalOnly reports whether the reminder has no remote calendar counterpart.
func (r Reminder) IsLocalOnly() bool {
	return r.ExternalID == ""
}

// NominalTime returns the reminder's date and time as an instant in loc.
func (r Reminder) NominalTime(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, r.Date+" "+r.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: reminder %d has unparseable date/time %q %q", ErrInvalidReminder, r.ID, r.Date, r.Time)
	}
	return t, nil
}

// DescribePriority maps a priority value to its display label.
func DescribePriority(priority int) string {
	switch priority {
	case PriorityLow:
		return "Low"
	case PriorityUrgent:
		return "Urgent"
	default:
		return "Normal"
	}
}

// Payload is the metadata attached to a wake-up. It carries everything the
// notification layer needs so no further lookups are required when it fires.
type Payload struct {
	ReminderID            int64     `json:"reminder_id"`
	Title                 string    `json:"title"`
	Sound                 bool      `json:"sound"`
	Date                  string    `json:"date"`
	Time                  string    `json:"time"`
	Priority              int       `json:"priority"`
	RepeatIntervalMinutes int       `json:"repeat_interval_minutes,omitempty"`
	MaxRepeatCount        int       `json:"max_repeat_count"`
	SoundRef              string    `json:"sound_ref,omitempty"`
	Count                 int       `json:"count"`
	FireAt                time.Time `json:"fire_at"`
}

// HasRepeat reports whether another delivery should follow this one.
func (p Payload) HasRepeat() bool {
	return p.RepeatIntervalMinutes > 0 && p.Count < p.MaxRepeatCount
}
