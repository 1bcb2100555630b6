package reconcile

import (
	"testing"
	"time"

	"github.com/conorfennell/wristreminder/internal/domain"
)

func at(hour int) time.Time {
	return time.Date(2024, 5, 1, hour, 0, 0, 0, time.UTC)
}

func TestMerge(t *testing.T) {
	testCases := []struct {
		name     string
		local    []domain.Reminder
		remote   []domain.Reminder
		expected []domain.Reminder
	}{
		{
			name:     "local-only passes through",
			local:    []domain.Reminder{{ID: 1, Title: "Mine", UpdatedAt: at(9)}},
			remote:   nil,
			expected: []domain.Reminder{{ID: 1, Title: "Mine", UpdatedAt: at(9)}},
		},
		{
			name:     "remote-only is imported",
			local:    nil,
			remote:   []domain.Reminder{{ID: 7, Title: "Theirs", ExternalID: "e1", UpdatedAt: at(9)}},
			expected: []domain.Reminder{{ID: 0, Title: "Theirs", ExternalID: "e1", UpdatedAt: at(9)}},
		},
		{
			name:     "newer remote wins and keeps local id",
			local:    []domain.Reminder{{ID: 3, Title: "Old", ExternalID: "e1", UpdatedAt: at(9)}},
			remote:   []domain.Reminder{{Title: "New", ExternalID: "e1", UpdatedAt: at(10)}},
			expected: []domain.Reminder{{ID: 3, Title: "New", ExternalID: "e1", UpdatedAt: at(10)}},
		},
		{
			name:     "older remote loses",
			local:    []domain.Reminder{{ID: 3, Title: "Edited", ExternalID: "e1", UpdatedAt: at(11)}},
			remote:   []domain.Reminder{{Title: "Stale", ExternalID: "e1", UpdatedAt: at(10)}},
			expected: []domain.Reminder{{ID: 3, Title: "Edited", ExternalID: "e1", UpdatedAt: at(11)}},
		},
		{
			name:     "tie keeps local",
			local:    []domain.Reminder{{ID: 3, Title: "Local", ExternalID: "e1", UpdatedAt: at(10)}},
			remote:   []domain.Reminder{{Title: "Remote", ExternalID: "e1", UpdatedAt: at(10)}},
			expected: []domain.Reminder{{ID: 3, Title: "Local", ExternalID: "e1", UpdatedAt: at(10)}},
		},
		{
			name:     "remote without a timestamp keeps local",
			local:    []domain.Reminder{{ID: 3, Title: "Done", ExternalID: "e1", Completed: true, UpdatedAt: at(9)}},
			remote:   []domain.Reminder{{Title: "Reopened", ExternalID: "e1"}},
			expected: []domain.Reminder{{ID: 3, Title: "Done", ExternalID: "e1", Completed: true, UpdatedAt: at(9)}},
		},
		{
			name:  "duplicate remotes collapse to newest",
			local: nil,
			remote: []domain.Reminder{
				{Title: "First", ExternalID: "e1", UpdatedAt: at(9)},
				{Title: "Second", ExternalID: "e1", UpdatedAt: at(12)},
				{Title: "Third", ExternalID: "e1", UpdatedAt: at(10)},
			},
			expected: []domain.Reminder{{Title: "Second", ExternalID: "e1", UpdatedAt: at(12)}},
		},
		{
			name: "synced local without remote counterpart is kept",
			local: []domain.Reminder{
				{ID: 1, Title: "Mine", UpdatedAt: at(9)},
				{ID: 2, Title: "Gone upstream", ExternalID: "e9", UpdatedAt: at(9)},
			},
			remote: []domain.Reminder{{Title: "New", ExternalID: "e2", UpdatedAt: at(9)}},
			expected: []domain.Reminder{
				{ID: 1, Title: "Mine", UpdatedAt: at(9)},
				{ID: 2, Title: "Gone upstream", ExternalID: "e9", UpdatedAt: at(9)},
				{Title: "New", ExternalID: "e2", UpdatedAt: at(9)},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Merge(tc.local, tc.remote)
			if len(got) != len(tc.expected) {
				t.Fatalf("Expected %d entries, got %d: %+v", len(tc.expected), len(got), got)
			}
			for i := range got {
				if got[i] != tc.expected[i] {
					t.Errorf("Entry %d: expected %+v, got %+v", i, tc.expected[i], got[i])
				}
			}
		})
	}
}

func TestMergeOneEntryPerExternalID(t *testing.T) {
	local := []domain.Reminder{
		{ID: 1, ExternalID: "a", UpdatedAt: at(9)},
		{ID: 2, ExternalID: "a", UpdatedAt: at(11)},
		{ID: 3, ExternalID: "b", UpdatedAt: at(9)},
	}
	remote := []domain.Reminder{
		{ExternalID: "a", UpdatedAt: at(10)},
		{ExternalID: "b", UpdatedAt: at(10)},
		{ExternalID: "c", UpdatedAt: at(10)},
		{ExternalID: "c", UpdatedAt: at(8)},
	}

	counts := make(map[string]int)
	for _, r := range Merge(local, remote) {
		counts[r.ExternalID]++
	}
	for _, id := range []string{"a", "b", "c"} {
		if counts[id] != 1 {
			t.Errorf("Expected exactly one entry for %s, got %d", id, counts[id])
		}
	}

	for _, d := range Plan(local, remote) {
		if d.Reminder.ExternalID == "a" && d.Reminder.ID != 2 {
			t.Errorf("Expected the newest local duplicate to win, got id %d", d.Reminder.ID)
		}
	}
}

func TestPlanFlagsTies(t *testing.T) {
	local := []domain.Reminder{{ID: 4, ExternalID: "e1", UpdatedAt: at(10)}}
	remote := []domain.Reminder{{ExternalID: "e1", UpdatedAt: at(10)}, {ExternalID: "e2", UpdatedAt: at(10)}}

	plan := Plan(local, remote)
	if len(plan) != 2 {
		t.Fatalf("Expected 2 decisions, got %d", len(plan))
	}
	if !plan[0].Tie || plan[0].Remote {
		t.Errorf("Expected a local tie decision, got %+v", plan[0])
	}
	if plan[1].Tie || !plan[1].Remote {
		t.Errorf("Expected a remote import decision, got %+v", plan[1])
	}
}
