// Package notify delivers due reminders and re-arms repeating ones.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jmhodges/clock"

	"github.com/conorfennell/wristreminder/internal/display"
	"github.com/conorfennell/wristreminder/internal/domain"
)

const heading = "It's time!"

// Notification is what the user sees when a reminder fires.
type Notification struct {
	ReminderID int64
	Heading    string
	Title      string
	When       string
	Priority   string
	Sound      bool
	SoundRef   string
	Count      int
	MaxCount   int
}

// Sink presents a notification to the user.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// Reminders is the part of the reminder service delivery needs. Rearm must
// register the repeat through the same serialization point as every other
// change to the reminder.
type Reminders interface {
	Get(ctx context.Context, id int64) (domain.Reminder, error)
	Rearm(ctx context.Context, next domain.Payload) error
}

// Deliverer is the wake-up handler. It renders the payload to every sink and,
// while repeats remain, asks the reminder service to register the next
// delivery under the same key so that cancelling the reminder also stops its
// repeats.
type Deliverer struct {
	reminders Reminders
	sinks     []Sink
	clk       clock.Clock
	loc       *time.Location
}

// NewDeliverer creates a Deliverer.
func NewDeliverer(reminders Reminders, clk clock.Clock, loc *time.Location, sinks ...Sink) *Deliverer {
	if clk == nil {
		clk = clock.New()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Deliverer{reminders: reminders, sinks: sinks, clk: clk, loc: loc}
}

// HandleWakeup delivers one wake-up.
func (d *Deliverer) HandleWakeup(ctx context.Context, p domain.Payload) {
	r, err := d.reminders.Get(ctx, p.ReminderID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		slog.Info("Dropping wake-up for deleted reminder", "id", p.ReminderID)
		return
	case err != nil:
		slog.Warn("Failed to look up reminder, delivering anyway", "id", p.ReminderID, "error", err)
	case r.Completed:
		slog.Info("Dropping wake-up for completed reminder", "id", p.ReminderID)
		return
	}

	now := d.clk.Now().In(d.loc)
	n := Render(p, now)
	for _, s := range d.sinks {
		if err := s.Notify(ctx, n); err != nil {
			slog.Error("Failed to deliver notification", "id", p.ReminderID, "error", err)
		}
	}

	if !p.HasRepeat() {
		return
	}
	next := p
	next.Count++
	next.FireAt = now.Add(time.Duration(p.RepeatIntervalMinutes) * time.Minute)
	if err := d.reminders.Rearm(ctx, next); err != nil {
		slog.Error("Failed to register repeat", "id", p.ReminderID, "count", next.Count, "error", err)
		return
	}
	slog.Debug("Repeat requested", "id", p.ReminderID, "count", next.Count, "at", next.FireAt)
}

// Render builds the notification for a payload as seen at now.
func Render(p domain.Payload, now time.Time) Notification {
	return Notification{
		ReminderID: p.ReminderID,
		Heading:    heading,
		Title:      p.Title,
		When:       display.HumanizeTime(p.Time, now),
		Priority:   domain.DescribePriority(p.Priority),
		Sound:      p.Sound,
		SoundRef:   p.SoundRef,
		Count:      p.Count,
		MaxCount:   p.MaxRepeatCount,
	}
}

// LogSink writes notifications to the structured log.
type LogSink struct{}

func (LogSink) Notify(_ context.Context, n Notification) error {
	slog.Info(n.Heading,
		"id", n.ReminderID,
		"title", n.Title,
		"when", n.When,
		"priority", n.Priority,
		"sound", n.Sound,
		"delivery", n.Count,
		"of", n.MaxCount,
	)
	return nil
}
