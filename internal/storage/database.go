package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Registers the pgx driver
	"github.com/jmhodges/clock"
	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/conorfennell/wristreminder/internal/domain"
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn    *sql.DB
	dialect dialect
	clk     clock.Clock
}

// Option configures a DB.
type Option func(*DB)

// WithClock overrides the clock used to stamp mutations.
func WithClock(clk clock.Clock) Option {
	return func(db *DB) { db.clk = clk }
}

// Open creates a new database connection and ensures the schema is up to date.
// driver is "sqlite" or "pgx".
func Open(driver, dsn string, opts ...Option) (*DB, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if d.driver == "sqlite" {
		// A single connection serialises writers and keeps ":memory:" databases
		// from splitting across pooled connections.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := conn.Exec(d.schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	db := &DB{conn: conn, dialect: d, clk: clock.New()}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.conn.ExecContext(ctx, db.dialect.rebind(query), args...)
}

func (db *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.conn.QueryContext(ctx, db.dialect.rebind(query), args...)
}

func (db *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.conn.QueryRowContext(ctx, db.dialect.rebind(query), args...)
}

func (db *DB) nowMillis() int64 {
	return db.clk.Now().UnixMilli()
}

const reminderColumns = `id, date, time, title, priority, completed, sound, external_id, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (domain.Reminder, error) {
	var r domain.Reminder
	var updated int64
	err := row.Scan(
		&r.ID,
		&r.Date,
		&r.Time,
		&r.Title,
		&r.Priority,
		&r.Completed,
		&r.Sound,
		&r.ExternalID,
		&updated,
	)
	if err != nil {
		return domain.Reminder{}, err
	}
	r.UpdatedAt = time.UnixMilli(updated)
	return r, nil
}

// Insert stores a new reminder and returns its generated ID.
// A zero UpdatedAt is stamped with the current time; a non-zero one (such as
// the last-modified time of an imported calendar event) is kept.
func (db *DB) Insert(ctx context.Context, r domain.Reminder) (int64, error) {
	updated := r.UpdatedAt.UnixMilli()
	if r.UpdatedAt.IsZero() {
		updated = db.nowMillis()
	}

	var id int64
	err := db.queryRow(ctx, `
		INSERT INTO reminders (date, time, title, priority, completed, sound, external_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`,
		r.Date,
		r.Time,
		r.Title,
		r.Priority,
		r.Completed,
		r.Sound,
		r.ExternalID,
		updated,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert reminder %q: %w", r.Title, err)
	}
	return id, nil
}

// Update overwrites an existing reminder. updated_at is bumped to the current
// time, or one millisecond past the stored value when the clock has not moved
// forward, so it strictly increases.
func (db *DB) Update(ctx context.Context, r domain.Reminder) error {
	now := db.nowMillis()
	res, err := db.exec(ctx, `
		UPDATE reminders
		SET date = ?, time = ?, title = ?, priority = ?, completed = ?, sound = ?, external_id = ?,
		    updated_at = CASE WHEN ? > updated_at THEN ? ELSE updated_at + 1 END
		WHERE id = ?
	`,
		r.Date,
		r.Time,
		r.Title,
		r.Priority,
		r.Completed,
		r.Sound,
		r.ExternalID,
		now, now,
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update reminder %d: %w", r.ID, err)
	}
	return expectOneRow(res, r.ID)
}

// SetCompleted toggles the completion flag of a reminder.
func (db *DB) SetCompleted(ctx context.Context, id int64, completed bool) error {
	now := db.nowMillis()
	res, err := db.exec(ctx, `
		UPDATE reminders
		SET completed = ?, updated_at = CASE WHEN ? > updated_at THEN ? ELSE updated_at + 1 END
		WHERE id = ?
	`, completed, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to set completion for reminder %d: %w", id, err)
	}
	return expectOneRow(res, id)
}

// Upsert writes a reminder by primary key, keeping its UpdatedAt as given.
// It is used when applying reconciled calendar state, where the timestamp
// comes from the winning side of the merge.
func (db *DB) Upsert(ctx context.Context, r domain.Reminder) error {
	if r.ID == 0 {
		return fmt.Errorf("failed to upsert reminder %q: missing id", r.Title)
	}
	_, err := db.exec(ctx, `
		INSERT INTO reminders (id, date, time, title, priority, completed, sound, external_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			date = excluded.date,
			time = excluded.time,
			title = excluded.title,
			priority = excluded.priority,
			completed = excluded.completed,
			sound = excluded.sound,
			external_id = excluded.external_id,
			updated_at = excluded.updated_at
	`,
		r.ID,
		r.Date,
		r.Time,
		r.Title,
		r.Priority,
		r.Completed,
		r.Sound,
		r.ExternalID,
		r.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert reminder %d: %w", r.ID, err)
	}
	return nil
}

// Delete removes a reminder by its ID.
func (db *DB) Delete(ctx context.Context, id int64) error {
	res, err := db.exec(ctx, `
		DELETE FROM reminders
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder %d: %w", id, err)
	}
	return expectOneRow(res, id)
}

// Get retrieves a reminder by its ID.
func (db *DB) Get(ctx context.Context, id int64) (domain.Reminder, error) {
	row := db.queryRow(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id)
	r, err := scanReminder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Reminder{}, fmt.Errorf("reminder %d: %w", id, domain.ErrNotFound)
		}
		return domain.Reminder{}, fmt.Errorf("failed to get reminder %d: %w", id, err)
	}
	return r, nil
}

// GetAll retrieves every reminder ordered by date and time.
func (db *DB) GetAll(ctx context.Context) ([]domain.Reminder, error) {
	return db.list(ctx, `SELECT `+reminderColumns+` FROM reminders ORDER BY date ASC, time ASC, id ASC`)
}

// GetPending retrieves reminders that are not completed, ordered by date and time.
func (db *DB) GetPending(ctx context.Context) ([]domain.Reminder, error) {
	return db.list(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE completed = ? ORDER BY date ASC, time ASC, id ASC`, false)
}

func (db *DB) list(ctx context.Context, query string, args ...any) ([]domain.Reminder, error) {
	rows, err := db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	var reminders []domain.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder row: %w", err)
		}
		reminders = append(reminders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminder rows: %w", err)
	}
	return reminders, nil
}

func expectOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for reminder %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("reminder %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
