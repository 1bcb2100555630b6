package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/conorfennell/wristreminder/internal/domain"
	"github.com/conorfennell/wristreminder/internal/scheduler"
)

// Store is the persistence the service needs. *storage.DB satisfies it.
type Store interface {
	Insert(ctx context.Context, r domain.Reminder) (int64, error)
	Update(ctx context.Context, r domain.Reminder) error
	Upsert(ctx context.Context, r domain.Reminder) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (domain.Reminder, error)
	GetAll(ctx context.Context) ([]domain.Reminder, error)
	GetPending(ctx context.Context) ([]domain.Reminder, error)
	SetCompleted(ctx context.Context, id int64, completed bool) error
	GetSettings(ctx context.Context, priority int) (*domain.Settings, error)
	UpsertSettings(ctx context.Context, s domain.Settings) error
}

// Service executes every reminder mutation through a per-id lock so that
// cancelling the old wake-up, writing the new state and registering the new
// wake-up happen as one step relative to other mutations of the same id.
type Service struct {
	store Store
	sched *scheduler.Scheduler
	locks *idLocks
}

// NewService creates a new reminder service.
func NewService(store Store, sched *scheduler.Scheduler) *Service {
	return &Service{
		store: store,
		sched: sched,
		locks: newIDLocks(),
	}
}

// Create stores a new reminder, schedules it and returns the generated id.
// The reminder stays stored when scheduling fails; the id is returned
// alongside the error in that case.
func (s *Service) Create(ctx context.Context, r domain.Reminder) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	r.ID = 0
	r.UpdatedAt = time.Time{}

	id, err := s.store.Insert(ctx, r)
	if err != nil {
		return 0, err
	}
	r.ID = id

	unlock := s.locks.lock(id)
	defer unlock()

	slog.Info("Reminder created", "id", id, "date", r.Date, "time", r.Time, "priority", domain.DescribePriority(r.Priority))
	if err := s.schedule(ctx, r); err != nil {
		return id, err
	}
	return id, nil
}

// Update overwrites a reminder and moves its wake-up. The old wake-up is
// only cancelled once the new state is stored.
func (s *Service) Update(ctx context.Context, r domain.Reminder) error {
	if err := r.Validate(); err != nil {
		return err
	}

	unlock := s.locks.lock(r.ID)
	defer unlock()

	if err := s.store.Update(ctx, r); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Info("Update targeted a missing reminder", "id", r.ID)
		}
		return err
	}
	if err := s.sched.Cancel(ctx, r.ID); err != nil {
		return err
	}
	return s.schedule(ctx, r)
}

// SetCompleted marks a reminder done, cancelling its wake-up, or reopens it
// and schedules it again.
func (s *Service) SetCompleted(ctx context.Context, id int64, completed bool) error {
	unlock := s.locks.lock(id)
	defer unlock()

	if err := s.store.SetCompleted(ctx, id, completed); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Info("Completion toggle targeted a missing reminder", "id", id)
		}
		return err
	}
	if err := s.sched.Cancel(ctx, id); err != nil {
		return err
	}
	if completed {
		return nil
	}

	r, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.schedule(ctx, r)
}

// Delete removes a reminder and cancels its wake-up.
func (s *Service) Delete(ctx context.Context, id int64) error {
	unlock := s.locks.lock(id)
	defer unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Info("Delete targeted a missing reminder", "id", id)
		}
		return err
	}
	if err := s.sched.Cancel(ctx, id); err != nil {
		return err
	}
	slog.Info("Reminder deleted", "id", id)
	return nil
}

// Rearm registers the next repeat of a delivered wake-up. It runs under the
// reminder's lock and drops the repeat unless the stored reminder is still
// pending and matches the payload. An edit registers its own wake-up.
func (s *Service) Rearm(ctx context.Context, next domain.Payload) error {
	unlock := s.locks.lock(next.ReminderID)
	defer unlock()

	r, err := s.store.Get(ctx, next.ReminderID)
	if errors.Is(err, domain.ErrNotFound) {
		slog.Debug("Dropping repeat for deleted reminder", "id", next.ReminderID)
		return nil
	}
	if err != nil {
		return err
	}
	if r.Completed || !matchesPayload(r, next) {
		slog.Debug("Dropping repeat for changed reminder", "id", next.ReminderID, "completed", r.Completed)
		return nil
	}
	return s.sched.Repeat(ctx, next)
}

func matchesPayload(r domain.Reminder, p domain.Payload) bool {
	return r.Time == p.Time &&
		r.Title == p.Title &&
		r.Priority == p.Priority &&
		r.Sound == p.Sound &&
		r.Date == p.Date
}

// Get returns a single reminder.
func (s *Service) Get(ctx context.Context, id int64) (domain.Reminder, error) {
	return s.store.Get(ctx, id)
}

// List returns every reminder ordered by date and time.
func (s *Service) List(ctx context.Context) ([]domain.Reminder, error) {
	return s.store.GetAll(ctx)
}

// Settings returns the stored settings for a priority, or the defaults when
// none have been saved.
func (s *Service) Settings(ctx context.Context, priority int) (domain.Settings, error) {
	stored, err := s.store.GetSettings(ctx, priority)
	if err != nil {
		return domain.Settings{}, err
	}
	if stored == nil {
		return domain.DefaultSettings(priority), nil
	}
	return *stored, nil
}

// SaveSettings stores the settings for a priority and reschedules the pending
// reminders that use it.
func (s *Service) SaveSettings(ctx context.Context, settings domain.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := s.store.UpsertSettings(ctx, settings); err != nil {
		return err
	}

	pending, err := s.store.GetPending(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, r := range pending {
		if r.Priority != settings.Priority {
			continue
		}
		if err := s.reschedule(ctx, r.ID); err != nil {
			errs = append(errs, err)
		}
	}
	slog.Info("Settings saved", "priority", domain.DescribePriority(settings.Priority), "summary", settings.Describe())
	return errors.Join(errs...)
}

// RescheduleAll registers a wake-up for every pending reminder. It is run at
// start-up since the alarm facility does not survive a restart.
func (s *Service) RescheduleAll(ctx context.Context) (int, error) {
	pending, err := s.store.GetPending(ctx)
	if err != nil {
		return 0, err
	}
	var errs []error
	scheduled := 0
	for _, r := range pending {
		if err := ctx.Err(); err != nil {
			return scheduled, err
		}
		if err := s.reschedule(ctx, r.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		scheduled++
	}
	slog.Info("Rescheduled pending reminders", "count", scheduled, "failed", len(errs))
	return scheduled, errors.Join(errs...)
}

// reschedule reloads a reminder under its lock and registers it again.
func (s *Service) reschedule(ctx context.Context, id int64) error {
	unlock := s.locks.lock(id)
	defer unlock()

	r, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.sched.Cancel(ctx, id); err != nil {
		return err
	}
	return s.schedule(ctx, r)
}

func (s *Service) schedule(ctx context.Context, r domain.Reminder) error {
	settings, err := s.store.GetSettings(ctx, r.Priority)
	if err != nil {
		return fmt.Errorf("failed to load settings for reminder %d: %w", r.ID, err)
	}
	_, err = s.sched.Schedule(ctx, r, settings)
	return err
}
