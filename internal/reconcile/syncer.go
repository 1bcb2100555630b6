package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"
	"github.com/robfig/cron/v3"

	"github.com/conorfennell/wristreminder/internal/calendar"
	"github.com/conorfennell/wristreminder/internal/domain"
	"github.com/conorfennell/wristreminder/internal/reminders"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultLookback = 365 * 24 * time.Hour
	DefaultHorizon  = 2 * 365 * 24 * time.Hour
)

// Applier is the part of the reminder service a sync needs.
type Applier interface {
	List(ctx context.Context) ([]domain.Reminder, error)
	Apply(ctx context.Context, r domain.Reminder) (reminders.Outcome, error)
}

// Conflict records an entry where both sides had the same timestamp and the
// local copy was kept.
type Conflict struct {
	ReminderID int64  `json:"reminder_id"`
	ExternalID string `json:"external_id"`
}

// Result summarises one sync run.
type Result struct {
	RunID     string     `json:"run_id"`
	Started   time.Time  `json:"started"`
	Finished  time.Time  `json:"finished"`
	Fetched   int        `json:"fetched"`
	Malformed int        `json:"malformed"`
	Imported  int        `json:"imported"`
	Updated   int        `json:"updated"`
	Kept      int        `json:"kept"`
	Skipped   int        `json:"skipped"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
}

// Syncer pulls events from the configured calendar sources and reconciles
// them with the local reminders. Runs are serialized.
type Syncer struct {
	sources  []calendar.Source
	svc      Applier
	loc      *time.Location
	timeout  time.Duration
	lookback time.Duration
	horizon  time.Duration
	clk      clock.Clock

	mu   sync.Mutex
	cron *cron.Cron
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLocation sets the zone events are converted into.
func WithLocation(loc *time.Location) Option {
	return func(s *Syncer) { s.loc = loc }
}

// WithTimeout bounds the fetch phase of a run.
func WithTimeout(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithWindow sets how far back and forward events are read.
func WithWindow(lookback, horizon time.Duration) Option {
	return func(s *Syncer) {
		if lookback > 0 {
			s.lookback = lookback
		}
		if horizon > 0 {
			s.horizon = horizon
		}
	}
}

func WithClock(clk clock.Clock) Option {
	return func(s *Syncer) { s.clk = clk }
}

// NewSyncer creates a Syncer over the given sources.
func NewSyncer(svc Applier, sources []calendar.Source, opts ...Option) *Syncer {
	s := &Syncer{
		sources:  sources,
		svc:      svc,
		loc:      time.Local,
		timeout:  DefaultTimeout,
		lookback: DefaultLookback,
		horizon:  DefaultHorizon,
		clk:      clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one sync. Any source failure aborts the run before local
// state is touched. Once applying starts, each merged entry is written as
// one unit; a cancelled context stops before the next unit.
func (s *Syncer) Run(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := Result{RunID: uuid.NewString(), Started: s.clk.Now()}
	log := slog.With("run_id", res.RunID)
	log.Info("Starting calendar sync", "sources", len(s.sources))

	remote, err := s.fetch(ctx, &res)
	if err != nil {
		log.Warn("Calendar sync aborted", "error", err)
		return res, err
	}

	local, err := s.svc.List(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to load local reminders: %w", err)
	}

	var errs []error
	for _, d := range Plan(local, remote) {
		if err := ctx.Err(); err != nil {
			log.Warn("Calendar sync interrupted", "error", err)
			return res, err
		}
		if d.Tie {
			res.Conflicts = append(res.Conflicts, Conflict{ReminderID: d.Reminder.ID, ExternalID: d.Reminder.ExternalID})
		}

		outcome, err := s.svc.Apply(ctx, d.Reminder)
		if err != nil {
			log.Error("Failed to apply reconciled reminder", "id", d.Reminder.ID, "external_id", d.Reminder.ExternalID, "error", err)
			errs = append(errs, err)
		}
		switch outcome {
		case reminders.OutcomeImported:
			res.Imported++
		case reminders.OutcomeUpdated:
			res.Updated++
		case reminders.OutcomeKept:
			res.Kept++
		default:
			res.Skipped++
		}
	}

	res.Finished = s.clk.Now()
	log.Info("Calendar sync complete",
		"fetched", res.Fetched,
		"imported", res.Imported,
		"updated", res.Updated,
		"kept", res.Kept,
		"skipped", res.Skipped,
		"malformed", res.Malformed,
		"conflicts", len(res.Conflicts),
	)
	return res, errors.Join(errs...)
}

// fetch reads every source under the run timeout and converts the events
// into reminders. Events that do not produce a valid reminder are counted
// as malformed.
func (s *Syncer) fetch(ctx context.Context, res *Result) ([]domain.Reminder, error) {
	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.clk.Now()
	w := calendar.Window{Since: now.Add(-s.lookback), Until: now.Add(s.horizon)}

	var remote []domain.Reminder
	for _, src := range s.sources {
		events, err := src.ListEvents(fctx, w)
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
				err = fmt.Errorf("calendar source %s: %w: %v", src.Name(), domain.ErrTimeout, err)
			}
			return nil, err
		}
		res.Malformed += events.Skipped
		for _, ev := range events.Events {
			r := ev.Reminder(s.loc)
			if err := r.Validate(); err != nil {
				slog.Warn("Skipping malformed calendar event", "source", src.Name(), "external_id", ev.ExternalID, "error", err)
				res.Malformed++
				continue
			}
			remote = append(remote, r)
		}
		res.Fetched += len(events.Events)
		slog.Debug("Calendar source read", "source", src.Name(), "events", len(events.Events), "cached", events.FromCache)
	}
	return remote, nil
}

// Schedule runs the sync on a cron schedule until Stop is called.
func (s *Syncer) Schedule(ctx context.Context, spec string) error {
	c := cron.New(cron.WithLocation(s.loc))
	_, err := c.AddFunc(spec, func() {
		if _, err := s.Run(ctx); err != nil {
			slog.Error("Scheduled calendar sync failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to parse sync schedule %q: %w", spec, err)
	}
	s.cron = c
	c.Start()
	slog.Info("Calendar sync scheduled", "cron", spec)
	return nil
}

// Stop halts the cron schedule and waits for a running sync to finish.
func (s *Syncer) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
