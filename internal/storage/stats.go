package storage

import (
	"context"
	"fmt"
)

// DateCount is the number of reminders on one date.
type DateCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// PriorityCount is the number of reminders with one priority.
type PriorityCount struct {
	Priority int `json:"priority"`
	Count    int `json:"count"`
}

// CountByCompletion returns the number of completed and pending reminders.
func (db *DB) CountByCompletion(ctx context.Context) (completed, pending int, err error) {
	err = db.queryRow(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN completed = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN completed = ? THEN 0 ELSE 1 END), 0)
		FROM reminders
	`, true, true).Scan(&completed, &pending)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count reminders by completion: %w", err)
	}
	return completed, pending, nil
}

// CountOnDate returns how many reminders fall on date and how many of those are completed.
func (db *DB) CountOnDate(ctx context.Context, date string) (total, completed int, err error) {
	err = db.queryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN completed = ? THEN 1 ELSE 0 END), 0)
		FROM reminders WHERE date = ?
	`, true, date).Scan(&total, &completed)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count reminders on %s: %w", date, err)
	}
	return total, completed, nil
}

// CompletedPerDate returns completed counts grouped by date for dates in [from, to].
// Dates without completions are absent.
func (db *DB) CompletedPerDate(ctx context.Context, from, to string) ([]DateCount, error) {
	rows, err := db.query(ctx, `
		SELECT date, COUNT(*)
		FROM reminders
		WHERE completed = ? AND date >= ? AND date <= ?
		GROUP BY date
		ORDER BY date ASC
	`, true, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to count completions per date: %w", err)
	}
	defer rows.Close()

	var counts []DateCount
	for rows.Next() {
		var dc DateCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan date count row: %w", err)
		}
		counts = append(counts, dc)
	}
	return counts, rows.Err()
}

// CompletedPerPriority returns completed counts grouped by priority.
func (db *DB) CompletedPerPriority(ctx context.Context) ([]PriorityCount, error) {
	rows, err := db.query(ctx, `
		SELECT priority, COUNT(*)
		FROM reminders
		WHERE completed = ?
		GROUP BY priority
		ORDER BY priority ASC
	`, true)
	if err != nil {
		return nil, fmt.Errorf("failed to count completions per priority: %w", err)
	}
	defer rows.Close()

	var counts []PriorityCount
	for rows.Next() {
		var pc PriorityCount
		if err := rows.Scan(&pc.Priority, &pc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan priority count row: %w", err)
		}
		counts = append(counts, pc)
	}
	return counts, rows.Err()
}
