package storage

import (
	"strconv"
	"strings"
)

const sqliteSchema = `
-- One row per reminder. date/time are kept as text so ordering by
-- (date, time) matches calendar order.
CREATE TABLE IF NOT EXISTS reminders (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date TEXT NOT NULL,
    time TEXT NOT NULL,
    title TEXT NOT NULL,
    priority INTEGER NOT NULL DEFAULT 1,
    completed INTEGER NOT NULL DEFAULT 0,
    sound INTEGER NOT NULL DEFAULT 1,
    external_id TEXT NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL -- unix milliseconds
);

CREATE INDEX IF NOT EXISTS idx_reminders_date_time ON reminders(date, time);
CREATE INDEX IF NOT EXISTS idx_reminders_external_id ON reminders(external_id);

-- At most one settings row per priority level.
CREATE TABLE IF NOT EXISTS reminder_settings (
    priority INTEGER PRIMARY KEY,
    advance_minutes INTEGER NOT NULL DEFAULT 0,
    repeat_interval INTEGER,
    max_reminders INTEGER NOT NULL DEFAULT 1,
    sound_ref TEXT NOT NULL DEFAULT ''
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS reminders (
    id BIGSERIAL PRIMARY KEY,
    date TEXT NOT NULL,
    time TEXT NOT NULL,
    title TEXT NOT NULL,
    priority INTEGER NOT NULL DEFAULT 1,
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    sound BOOLEAN NOT NULL DEFAULT TRUE,
    external_id TEXT NOT NULL DEFAULT '',
    updated_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reminders_date_time ON reminders(date, time);
CREATE INDEX IF NOT EXISTS idx_reminders_external_id ON reminders(external_id);

CREATE TABLE IF NOT EXISTS reminder_settings (
    priority INTEGER PRIMARY KEY,
    advance_minutes INTEGER NOT NULL DEFAULT 0,
    repeat_interval INTEGER,
    max_reminders INTEGER NOT NULL DEFAULT 1,
    sound_ref TEXT NOT NULL DEFAULT ''
);
`

// dialect captures the few differences between the supported drivers.
type dialect struct {
	driver      string
	schema      string
	dollarBinds bool
}

var dialects = map[string]dialect{
	"sqlite": {driver: "sqlite", schema: sqliteSchema},
	"pgx":    {driver: "pgx", schema: postgresSchema, dollarBinds: true},
}

// rebind rewrites '?' placeholders to $1..$n for drivers that need it.
func (d dialect) rebind(query string) string {
	if !d.dollarBinds {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
