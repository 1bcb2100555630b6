package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/conorfennell/wristreminder/internal/alarm"
	"github.com/conorfennell/wristreminder/internal/domain"
)

// Handle identifies a registered wake-up. The zero Handle means nothing was
// registered.
type Handle struct {
	Key string
	At  time.Time
}

// IsZero reports whether no wake-up was registered.
func (h Handle) IsZero() bool {
	return h.Key == ""
}

// Scheduler turns reminders into wake-ups on an alarm facility.
type Scheduler struct {
	alarms alarm.Facility
	loc    *time.Location
}

// New returns a Scheduler that interprets reminder dates and times in loc.
func New(alarms alarm.Facility, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{alarms: alarms, loc: loc}
}

// Location returns the zone reminder wall-clock fields are interpreted in.
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// Key returns the de-duplication key for a reminder id.
func Key(reminderID int64) string {
	return strconv.FormatInt(reminderID, 10)
}

// FireInstant computes when a reminder should fire: its nominal date and time
// in loc, moved earlier by the advance notice when one is set.
func FireInstant(r domain.Reminder, s domain.Settings, loc *time.Location) (time.Time, error) {
	at, err := r.NominalTime(loc)
	if err != nil {
		return time.Time{}, err
	}
	if s.AdvanceMinutes > 0 {
		at = at.Add(-time.Duration(s.AdvanceMinutes) * time.Minute)
	}
	return at, nil
}

// BuildPayload assembles the wake-up metadata for the first delivery.
func BuildPayload(r domain.Reminder, s domain.Settings, at time.Time) domain.Payload {
	return domain.Payload{
		ReminderID:            r.ID,
		Title:                 r.Title,
		Sound:                 r.Sound,
		Date:                  r.Date,
		Time:                  r.Time,
		Priority:              r.Priority,
		RepeatIntervalMinutes: s.RepeatInterval(),
		MaxRepeatCount:        s.MaxRepeatCount,
		SoundRef:              s.SoundRef,
		Count:                 1,
		FireAt:                at,
	}
}

// Schedule registers a wake-up for r. Completed reminders are skipped and
// yield a zero Handle. A nil settings means the priority has no settings row
// and the defaults apply. Instants already in the past are registered as-is
// and fire on the facility's next pass.
func (s *Scheduler) Schedule(ctx context.Context, r domain.Reminder, settings *domain.Settings) (Handle, error) {
	if r.Completed {
		slog.Debug("Skipping completed reminder", "id", r.ID)
		return Handle{}, nil
	}
	if !s.alarms.CanScheduleExact() {
		return Handle{}, fmt.Errorf("failed to schedule reminder %d: %w", r.ID, domain.ErrPermissionDenied)
	}

	cfg := domain.DefaultSettings(r.Priority)
	if settings != nil {
		cfg = *settings
	}

	at, err := FireInstant(r, cfg, s.loc)
	if err != nil {
		return Handle{}, err
	}

	key := Key(r.ID)
	if err := s.alarms.RegisterOneShot(ctx, at, key, BuildPayload(r, cfg, at)); err != nil {
		return Handle{}, fmt.Errorf("failed to register wake-up for reminder %d: %w", r.ID, err)
	}
	slog.Debug("Scheduled reminder", "id", r.ID, "at", at, "advance_minutes", cfg.AdvanceMinutes)
	return Handle{Key: key, At: at}, nil
}

// Repeat registers the next delivery of an already fired wake-up under the
// reminder's key.
func (s *Scheduler) Repeat(ctx context.Context, next domain.Payload) error {
	if err := s.alarms.RegisterOneShot(ctx, next.FireAt, Key(next.ReminderID), next); err != nil {
		return fmt.Errorf("failed to register repeat %d for reminder %d: %w", next.Count, next.ReminderID, err)
	}
	return nil
}

// Cancel removes any pending wake-up for the reminder. Cancelling something
// that is not pending is not an error.
func (s *Scheduler) Cancel(ctx context.Context, reminderID int64) error {
	err := s.alarms.Cancel(ctx, Key(reminderID))
	if errors.Is(err, domain.ErrNotFound) {
		slog.Debug("No pending wake-up to cancel", "id", reminderID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to cancel wake-up for reminder %d: %w", reminderID, err)
	}
	return nil
}
