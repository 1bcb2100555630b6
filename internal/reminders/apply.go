package reminders

import (
	"context"
	"errors"
	"log/slog"

	"github.com/conorfennell/wristreminder/internal/domain"
)

// Outcome describes what Apply did with one reconciled reminder.
type Outcome int

const (
	// OutcomeImported means a remote event without a local counterpart was stored.
	OutcomeImported Outcome = iota
	// OutcomeUpdated means the remote copy overwrote the local row.
	OutcomeUpdated
	// OutcomeKept means the local row was at least as new and was left alone.
	OutcomeKept
	// OutcomeSkipped means the local row disappeared before it could be applied.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeImported:
		return "imported"
	case OutcomeUpdated:
		return "updated"
	case OutcomeKept:
		return "kept"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Apply writes one reconciled reminder and re-registers its wake-up. A
// failed write leaves both the row and its wake-up untouched.
//
// A reminder with ID 0 is a newly imported remote event. Otherwise the stored
// row is re-read under the id lock and only overwritten when r is strictly
// newer, so an edit that lands after the reconcile snapshot is never lost.
func (s *Service) Apply(ctx context.Context, r domain.Reminder) (Outcome, error) {
	if r.ID == 0 {
		id, err := s.store.Insert(ctx, r)
		if err != nil {
			return OutcomeSkipped, err
		}
		r.ID = id

		unlock := s.locks.lock(id)
		defer unlock()
		slog.Debug("Imported calendar event", "id", id, "external_id", r.ExternalID)
		return OutcomeImported, s.schedule(ctx, r)
	}

	unlock := s.locks.lock(r.ID)
	defer unlock()

	current, err := s.store.Get(ctx, r.ID)
	if errors.Is(err, domain.ErrNotFound) {
		slog.Info("Reconciled reminder was deleted meanwhile", "id", r.ID, "external_id", r.ExternalID)
		return OutcomeSkipped, nil
	}
	if err != nil {
		return OutcomeSkipped, err
	}

	outcome := OutcomeKept
	if r.UpdatedAt.After(current.UpdatedAt) {
		if err := s.store.Upsert(ctx, r); err != nil {
			return OutcomeSkipped, err
		}
		current = r
		outcome = OutcomeUpdated
		slog.Debug("Remote copy won", "id", r.ID, "external_id", r.ExternalID)
	}

	if err := s.sched.Cancel(ctx, r.ID); err != nil {
		return outcome, err
	}
	return outcome, s.schedule(ctx, current)
}
