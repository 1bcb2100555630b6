package alarm

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmhodges/clock"

	"github.com/conorfennell/wristreminder/internal/domain"
)

// DefaultTick is how often Run checks for due wake-ups.
const DefaultTick = time.Second

// Facility is the platform primitive the scheduler registers wake-ups with.
type Facility interface {
	// RegisterOneShot arranges for payload to be delivered at the given
	// instant. Registering a key that is already pending replaces it.
	RegisterOneShot(ctx context.Context, at time.Time, key string, payload domain.Payload) error
	// Cancel removes a pending wake-up. Unknown keys yield domain.ErrNotFound.
	Cancel(ctx context.Context, key string) error
	// CanScheduleExact reports whether precise wake-ups are permitted.
	CanScheduleExact() bool
}

// Handler is invoked with the payload of every wake-up that becomes due.
type Handler func(ctx context.Context, payload domain.Payload)

// Entry is a pending wake-up.
type Entry struct {
	Key     string
	At      time.Time
	Payload domain.Payload
}

// Queue is an in-process Facility backed by a min-heap ordered by fire instant.
type Queue struct {
	mu      sync.Mutex
	clk     clock.Clock
	exact   bool
	tick    time.Duration
	handler Handler
	pending wakeupHeap
	byKey   map[string]*wakeup
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock sets the clock used to decide which wake-ups are due.
func WithClock(clk clock.Clock) Option {
	return func(q *Queue) { q.clk = clk }
}

// WithTick sets the polling interval of Run.
func WithTick(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.tick = d
		}
	}
}

// WithExactPermission sets whether precise scheduling is allowed.
func WithExactPermission(allowed bool) Option {
	return func(q *Queue) { q.exact = allowed }
}

// NewQueue returns an empty queue with exact scheduling permitted.
func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		clk:   clock.New(),
		exact: true,
		tick:  DefaultTick,
		byKey: make(map[string]*wakeup),
	}
	heap.Init(&q.pending)
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Handle sets the function that receives due wake-ups.
func (q *Queue) Handle(h Handler) {
	q.mu.Lock()
	q.handler = h
	q.mu.Unlock()
}

// SetExactPermission changes the precise scheduling permission at runtime.
func (q *Queue) SetExactPermission(allowed bool) {
	q.mu.Lock()
	q.exact = allowed
	q.mu.Unlock()
}

func (q *Queue) CanScheduleExact() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.exact
}

func (q *Queue) RegisterOneShot(ctx context.Context, at time.Time, key string, payload domain.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("failed to register wake-up: empty key")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.exact {
		return domain.ErrPermissionDenied
	}

	if w, ok := q.byKey[key]; ok {
		w.at = at
		w.payload = payload
		heap.Fix(&q.pending, w.index)
		return nil
	}
	w := &wakeup{key: key, at: at, payload: payload}
	heap.Push(&q.pending, w)
	q.byKey[key] = w
	return nil
}

func (q *Queue) Cancel(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	w, ok := q.byKey[key]
	if !ok {
		return fmt.Errorf("wake-up %q: %w", key, domain.ErrNotFound)
	}
	heap.Remove(&q.pending, w.index)
	delete(q.byKey, key)
	return nil
}

// Pending returns the queued wake-ups ordered by fire instant.
func (q *Queue) Pending() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	cp := make(wakeupHeap, len(q.pending))
	for i, w := range q.pending {
		c := *w
		cp[i] = &c
	}
	entries := make([]Entry, 0, len(cp))
	for cp.Len() > 0 {
		w := heap.Pop(&cp).(*wakeup)
		entries = append(entries, Entry{Key: w.key, At: w.at, Payload: w.payload})
	}
	return entries
}

// FireDue removes every wake-up whose instant has passed and hands it to the
// handler. The handler runs without the queue lock held so it may register
// follow-up wake-ups. It returns the number of wake-ups dispatched.
func (q *Queue) FireDue(ctx context.Context) int {
	q.mu.Lock()
	now := q.clk.Now()
	var due []*wakeup
	for q.pending.Len() > 0 {
		next := q.pending[0]
		if next.at.After(now) {
			break
		}
		heap.Pop(&q.pending)
		delete(q.byKey, next.key)
		due = append(due, next)
	}
	h := q.handler
	q.mu.Unlock()

	for _, w := range due {
		if h == nil {
			slog.Warn("Dropping wake-up with no handler", "key", w.key)
			continue
		}
		slog.Debug("Firing wake-up", "key", w.key, "at", w.at)
		h(ctx, w.payload)
	}
	return len(due)
}

// Run dispatches due wake-ups until ctx is cancelled. Ticks come from the
// queue's clock.
func (q *Queue) Run(ctx context.Context) {
	timer := q.clk.NewTimer(q.tick)
	defer timer.Stop()

	slog.Info("Alarm queue started", "tick", q.tick)
	q.FireDue(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Alarm queue stopped")
			return
		case <-timer.C:
			q.FireDue(ctx)
			timer.Reset(q.tick)
		}
	}
}
