package calendar

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/conorfennell/wristreminder/internal/domain"
)

const (
	untitled      = "Untitled event"
	maxTitleRunes = 500
)

// Event is a single occurrence read from a remote calendar. Recurring events
// are expanded before they reach this type.
type Event struct {
	ExternalID   string
	Title        string
	Start        time.Time
	AllDay       bool
	LastModified time.Time
}

// Window bounds which events a source returns. Until only limits the
// expansion of recurring events.
type Window struct {
	Since time.Time
	Until time.Time
}

// Result is what a source produced for one fetch.
type Result struct {
	Events []Event
	// Skipped counts events that could not be parsed.
	Skipped int
	// FromCache is set when the remote reported no changes.
	FromCache bool
}

// Source is a remote calendar that can be listed.
type Source interface {
	Name() string
	ListEvents(ctx context.Context, w Window) (Result, error)
}

// Reminder converts the event into a reminder in loc. All-day events are due
// at midnight. Imported reminders are Normal priority with sound on.
func (e Event) Reminder(loc *time.Location) domain.Reminder {
	if loc == nil {
		loc = time.Local
	}
	start := e.Start.In(loc)
	clock := start.Format(domain.TimeLayout)
	if e.AllDay {
		start = time.Date(e.Start.Year(), e.Start.Month(), e.Start.Day(), 0, 0, 0, 0, loc)
		clock = "00:00"
	}

	title := e.Title
	if title == "" {
		title = untitled
	}
	if utf8.RuneCountInString(title) > maxTitleRunes {
		title = string([]rune(title)[:maxTitleRunes])
	}

	return domain.Reminder{
		Date:       start.Format(domain.DateLayout),
		Time:       clock,
		Title:      title,
		Priority:   domain.PriorityNormal,
		Sound:      true,
		ExternalID: e.ExternalID,
		UpdatedAt:  e.LastModified,
	}
}
