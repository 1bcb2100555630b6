package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/wristreminder/internal/domain"
)

// GetSettings retrieves the settings row for a priority.
// It returns nil, nil when the priority has never been configured.
func (db *DB) GetSettings(ctx context.Context, priority int) (*domain.Settings, error) {
	var s domain.Settings
	var repeat sql.NullInt64
	row := db.queryRow(ctx, `
		SELECT priority, advance_minutes, repeat_interval, max_reminders, sound_ref
		FROM reminder_settings WHERE priority = ?
	`, priority)

	err := row.Scan(&s.Priority, &s.AdvanceMinutes, &repeat, &s.MaxRepeatCount, &s.SoundRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get settings for priority %d: %w", priority, err)
	}
	if repeat.Valid {
		v := int(repeat.Int64)
		s.RepeatIntervalMinutes = &v
	}
	return &s, nil
}

// UpsertSettings creates or replaces the settings row for s.Priority.
func (db *DB) UpsertSettings(ctx context.Context, s domain.Settings) error {
	var repeat sql.NullInt64
	if s.RepeatIntervalMinutes != nil {
		repeat = sql.NullInt64{Int64: int64(*s.RepeatIntervalMinutes), Valid: true}
	}
	_, err := db.exec(ctx, `
		INSERT INTO reminder_settings (priority, advance_minutes, repeat_interval, max_reminders, sound_ref)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (priority) DO UPDATE SET
			advance_minutes = excluded.advance_minutes,
			repeat_interval = excluded.repeat_interval,
			max_reminders = excluded.max_reminders,
			sound_ref = excluded.sound_ref
	`, s.Priority, s.AdvanceMinutes, repeat, s.MaxRepeatCount, s.SoundRef)
	if err != nil {
		return fmt.Errorf("failed to upsert settings for priority %d: %w", s.Priority, err)
	}
	return nil
}
