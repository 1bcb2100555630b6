package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmhodges/clock"

	"github.com/conorfennell/wristreminder/internal/alarm"
	"github.com/conorfennell/wristreminder/internal/domain"
)

func newTestScheduler(t *testing.T) (*Scheduler, *alarm.Queue, clock.FakeClock) {
	t.Helper()
	clk := clock.NewFake()
	clk.Set(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	q := alarm.NewQueue(alarm.WithClock(clk))
	return New(q, time.UTC), q, clk
}

func TestFireInstant(t *testing.T) {
	r := domain.Reminder{ID: 1, Date: "2024-05-01", Time: "10:00"}
	testCases := []struct {
		name     string
		advance  int
		expected time.Time
	}{
		{"on time", 0, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"advance notice", 15, time.Date(2024, 5, 1, 9, 45, 0, 0, time.UTC)},
		{"negative advance ignored", -5, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"crosses midnight", 11 * 60, time.Date(2024, 4, 30, 23, 0, 0, 0, time.UTC)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FireInstant(r, domain.Settings{AdvanceMinutes: tc.advance, MaxRepeatCount: 1}, time.UTC)
			if err != nil {
				t.Fatalf("FireInstant failed: %v", err)
			}
			if !got.Equal(tc.expected) {
				t.Errorf("Expected %v, but got %v", tc.expected, got)
			}
		})
	}

	t.Run("malformed time", func(t *testing.T) {
		_, err := FireInstant(domain.Reminder{Date: "2024-05-01", Time: "25:99"}, domain.DefaultSettings(1), time.UTC)
		if !errors.Is(err, domain.ErrInvalidReminder) {
			t.Errorf("Expected ErrInvalidReminder, got %v", err)
		}
	})
}

func TestScheduleCompletedIsNoop(t *testing.T) {
	s, q, _ := newTestScheduler(t)
	h, err := s.Schedule(context.Background(), domain.Reminder{ID: 3, Date: "2024-05-01", Time: "10:00", Completed: true}, nil)
	if err != nil {
		t.Fatalf("Expected no error for a completed reminder, got %v", err)
	}
	if !h.IsZero() {
		t.Errorf("Expected a zero handle, got %+v", h)
	}
	if len(q.Pending()) != 0 {
		t.Error("Expected no wake-up for a completed reminder")
	}
}

func TestSchedulePayloadAndDefaults(t *testing.T) {
	s, q, _ := newTestScheduler(t)
	r := domain.Reminder{ID: 12, Date: "2024-05-01", Time: "10:00", Title: "Pills", Priority: domain.PriorityUrgent, Sound: true}

	h, err := s.Schedule(context.Background(), r, nil)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if h.Key != "12" {
		t.Errorf("Expected key 12, got %q", h.Key)
	}

	pending := q.Pending()
	if len(pending) != 1 {
		t.Fatalf("Expected 1 pending wake-up, got %d", len(pending))
	}
	p := pending[0].Payload
	if !pending[0].At.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected default settings to fire on time, got %v", pending[0].At)
	}
	if p.Title != "Pills" || !p.Sound || p.Time != "10:00" || p.Priority != domain.PriorityUrgent {
		t.Errorf("Unexpected payload: %+v", p)
	}
	if p.MaxRepeatCount != 1 || p.RepeatIntervalMinutes != 0 || p.Count != 1 {
		t.Errorf("Expected default repeat settings in payload, got %+v", p)
	}

	urgent := domain.SuggestedSettings(domain.PriorityUrgent)
	urgent.SoundRef = "siren"
	if _, err := s.Schedule(context.Background(), r, &urgent); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	pending = q.Pending()
	if len(pending) != 1 {
		t.Fatalf("Expected rescheduling to replace the wake-up, got %d pending", len(pending))
	}
	p = pending[0].Payload
	if p.RepeatIntervalMinutes != 5 || p.MaxRepeatCount != 3 || p.SoundRef != "siren" {
		t.Errorf("Unexpected payload after reschedule: %+v", p)
	}
	if !pending[0].At.Equal(time.Date(2024, 5, 1, 9, 45, 0, 0, time.UTC)) {
		t.Errorf("Expected 15 minute advance, got %v", pending[0].At)
	}
}

func TestSchedulePastInstantAccepted(t *testing.T) {
	s, q, _ := newTestScheduler(t)
	r := domain.Reminder{ID: 5, Date: "2024-04-01", Time: "08:00", Title: "Late"}
	if _, err := s.Schedule(context.Background(), r, nil); err != nil {
		t.Fatalf("Expected a past instant to be accepted, got %v", err)
	}
	var fired int
	q.Handle(func(ctx context.Context, p domain.Payload) { fired++ })
	q.FireDue(context.Background())
	if fired != 1 {
		t.Errorf("Expected the past wake-up to fire immediately, fired %d", fired)
	}
}

func TestSchedulePermissionDenied(t *testing.T) {
	q := alarm.NewQueue(alarm.WithExactPermission(false))
	s := New(q, time.UTC)
	_, err := s.Schedule(context.Background(), domain.Reminder{ID: 1, Date: "2024-05-01", Time: "10:00"}, nil)
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied, got %v", err)
	}
}

func TestCancelIdempotent(t *testing.T) {
	s, q, _ := newTestScheduler(t)
	ctx := context.Background()
	s.Schedule(ctx, domain.Reminder{ID: 8, Date: "2024-05-02", Time: "10:00"}, nil)

	for i := 0; i < 2; i++ {
		if err := s.Cancel(ctx, 8); err != nil {
			t.Errorf("Cancel %d returned %v", i+1, err)
		}
	}
	if len(q.Pending()) != 0 {
		t.Error("Expected no pending wake-ups after cancel")
	}
}
