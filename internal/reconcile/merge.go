package reconcile

import "github.com/conorfennell/wristreminder/internal/domain"

// Decision is one entry of a merge together with how it was reached.
type Decision struct {
	Reminder domain.Reminder
	// Tie is set when local and remote carried the same timestamp and the
	// local copy was kept.
	Tie bool
	// Remote is set when the entry originates from the remote set.
	Remote bool
}

// Merge combines the local reminders with the remote ones.
//
// Local-only reminders pass through unchanged. A remote reminder whose
// ExternalID is unknown locally is included as an import (ID 0). When both
// sides share an ExternalID the remote copy wins only if its UpdatedAt is
// strictly newer; it then carries the local ID so writing it overwrites the
// existing row.
func Merge(local, remote []domain.Reminder) []domain.Reminder {
	decisions := Plan(local, remote)
	merged := make([]domain.Reminder, len(decisions))
	for i, d := range decisions {
		merged[i] = d.Reminder
	}
	return merged
}

// Plan is Merge with the per-entry detail kept. The result lists local-only
// reminders first in their original order, then one entry per ExternalID in
// order of first appearance.
func Plan(local, remote []domain.Reminder) []Decision {
	var out []Decision
	var order []string
	seen := make(map[string]bool)
	locals := make(map[string]domain.Reminder)
	remotes := newestByExternalID(remote)

	for _, r := range local {
		if r.IsLocalOnly() {
			out = append(out, Decision{Reminder: r})
			continue
		}
		if !seen[r.ExternalID] {
			seen[r.ExternalID] = true
			order = append(order, r.ExternalID)
		}
		if existing, ok := locals[r.ExternalID]; !ok || r.UpdatedAt.After(existing.UpdatedAt) {
			locals[r.ExternalID] = r
		}
	}
	for _, r := range remote {
		if r.ExternalID == "" || seen[r.ExternalID] {
			continue
		}
		seen[r.ExternalID] = true
		order = append(order, r.ExternalID)
	}

	for _, id := range order {
		l, hasLocal := locals[id]
		r, hasRemote := remotes[id]
		switch {
		case !hasRemote:
			out = append(out, Decision{Reminder: l})
		case !hasLocal:
			r.ID = 0
			out = append(out, Decision{Reminder: r, Remote: true})
		case r.UpdatedAt.After(l.UpdatedAt):
			r.ID = l.ID
			out = append(out, Decision{Reminder: r, Remote: true})
		default:
			out = append(out, Decision{Reminder: l, Tie: r.UpdatedAt.Equal(l.UpdatedAt)})
		}
	}
	return out
}

// newestByExternalID collapses duplicate remote entries to the newest one.
// Entries without an ExternalID cannot be matched and are dropped.
func newestByExternalID(remote []domain.Reminder) map[string]domain.Reminder {
	byID := make(map[string]domain.Reminder, len(remote))
	for _, r := range remote {
		if r.ExternalID == "" {
			continue
		}
		if existing, ok := byID[r.ExternalID]; !ok || r.UpdatedAt.After(existing.UpdatedAt) {
			byID[r.ExternalID] = r
		}
	}
	return byID
}
