package calendar

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrations string

const eventColumns = `id, user_id, calendar_id, external_event_id, title, start_date, end_date, timezone,
	all_day, transparency, recurring_event_id, meeting_id, is_meeting, is_external_meeting,
	is_pre_event, is_post_event, is_break, for_event_id, pre_event_id, post_event_id,
	modifiable, priority, deleted, updated_at`

// SQLiteStore is a durable Store backed by a single SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (and migrates) the store at path. Use ":memory:" for a
// throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("calendar: sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("calendar: create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("calendar: open sqlite: %w", err)
	}
	// One writer; transactions serialize through this connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("calendar: %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("calendar: migrate: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// GetEvent implements Store.
func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (*Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("calendar: get event %s: %w", id, err)
	}
	return &ev, nil
}

// CreateEvent implements Store.
func (s *SQLiteStore) CreateEvent(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		return errors.New("calendar: event has no id")
	}
	if err := upsertEvent(ctx, s.db, ev, s.now()); err != nil {
		return fmt.Errorf("calendar: create event %s: %w", ev.ID, err)
	}
	return nil
}

// ApplyEventChange implements Store. The change runs in one transaction.
func (s *SQLiteStore) ApplyEventChange(ctx context.Context, change EventChange) (err error) {
	if err := change.validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("calendar: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := s.now()
	var targetID string

	switch {
	case change.Create != nil:
		ev := change.Patch.ApplyTo(*change.Create)
		if err = upsertEvent(ctx, tx, ev, now); err != nil {
			return fmt.Errorf("calendar: create event %s: %w", ev.ID, err)
		}
		targetID = ev.ID
	case change.Target != nil:
		query := `SELECT id FROM events WHERE external_event_id = ?`
		args := []any{change.Target.ExternalEventID}
		if change.Target.CalendarID != "" {
			query += ` AND calendar_id = ?`
			args = append(args, change.Target.CalendarID)
		}
		if err = tx.QueryRowContext(ctx, query+` ORDER BY id LIMIT 1`, args...).Scan(&targetID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				err = fmt.Errorf("%w: external event %s", ErrNotFound, change.Target.ExternalEventID)
				return err
			}
			return fmt.Errorf("calendar: resolve external event: %w", err)
		}
		if err = patchEvent(ctx, tx, targetID, change.Patch, now); err != nil {
			return err
		}
	default:
		targetID = change.EventID
		if err = patchEvent(ctx, tx, targetID, change.Patch, now); err != nil {
			return err
		}
	}

	for _, b := range change.Buffers {
		if b.ID == "" {
			err = fmt.Errorf("calendar: buffer for %s has no id", targetID)
			return err
		}
		if err = upsertEvent(ctx, tx, b, now); err != nil {
			return fmt.Errorf("calendar: upsert buffer %s: %w", b.ID, err)
		}
	}

	if change.ReplaceReminders {
		if _, err = tx.ExecContext(ctx, `DELETE FROM reminders WHERE event_id = ?`, targetID); err != nil {
			return fmt.Errorf("calendar: clear reminders: %w", err)
		}
		for _, r := range change.Reminders {
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO reminders(id, event_id, user_id, minutes, reminder_date, timezone, use_default)
				 VALUES(?,?,?,?,?,?,?)
				 ON CONFLICT(id) DO UPDATE SET event_id=excluded.event_id, minutes=excluded.minutes,
				   reminder_date=excluded.reminder_date, timezone=excluded.timezone, use_default=excluded.use_default`,
				r.ID, targetID, r.UserID, r.Minutes, formatTime(r.ReminderDate), r.Timezone, r.UseDefault,
			); err != nil {
				return fmt.Errorf("calendar: insert reminder %s: %w", r.ID, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("calendar: commit: %w", err)
	}
	return nil
}

// ListEvents implements EventLister.
func (s *SQLiteStore) ListEvents(ctx context.Context, userID string, start, end time.Time) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE user_id = ? AND deleted = 0 AND start_date < ? AND end_date > ?
		 ORDER BY start_date, id`,
		userID, formatTime(end), formatTime(start),
	)
	if err != nil {
		return nil, fmt.Errorf("calendar: list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("calendar: scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Reminders returns the reminders stored for an event.
func (s *SQLiteStore) Reminders(ctx context.Context, eventID string) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_id, user_id, minutes, reminder_date, timezone, use_default
		 FROM reminders WHERE event_id = ? ORDER BY minutes, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("calendar: list reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var r Reminder
		var date string
		if err := rows.Scan(&r.ID, &r.EventID, &r.UserID, &r.Minutes, &date, &r.Timezone, &r.UseDefault); err != nil {
			return nil, err
		}
		r.ReminderDate = parseTime(date, r.Timezone)
		out = append(out, r)
	}
	return out, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertEvent(ctx context.Context, db execer, ev Event, now time.Time) error {
	transparency := ev.Transparency
	if transparency == "" {
		transparency = Opaque
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO events(`+eventColumns+`)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   user_id=excluded.user_id, calendar_id=excluded.calendar_id,
		   external_event_id=excluded.external_event_id, title=excluded.title,
		   start_date=excluded.start_date, end_date=excluded.end_date, timezone=excluded.timezone,
		   all_day=excluded.all_day, transparency=excluded.transparency,
		   recurring_event_id=excluded.recurring_event_id, meeting_id=excluded.meeting_id,
		   is_meeting=excluded.is_meeting, is_external_meeting=excluded.is_external_meeting,
		   is_pre_event=excluded.is_pre_event, is_post_event=excluded.is_post_event,
		   is_break=excluded.is_break, for_event_id=excluded.for_event_id,
		   pre_event_id=excluded.pre_event_id, post_event_id=excluded.post_event_id,
		   modifiable=excluded.modifiable, priority=excluded.priority,
		   deleted=excluded.deleted, updated_at=excluded.updated_at`,
		ev.ID, ev.UserID, ev.CalendarID, ev.ExternalEventID, ev.Title,
		formatTime(ev.StartDate), formatTime(ev.EndDate), ev.Timezone,
		ev.AllDay, string(transparency), ev.RecurringEventID, ev.MeetingID,
		ev.IsMeeting, ev.IsExternalMeeting, ev.IsPreEvent, ev.IsPostEvent, ev.IsBreak,
		ev.ForEventID, ev.PreEventID, ev.PostEventID, ev.Modifiable, ev.Priority,
		ev.Deleted, formatTime(now),
	)
	return err
}

// patchEvent updates only the columns set in p.
func patchEvent(ctx context.Context, tx *sql.Tx, id string, p EventPatch, now time.Time) error {
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(now)}
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.StartDate != nil {
		add("start_date", formatTime(*p.StartDate))
	}
	if p.EndDate != nil {
		add("end_date", formatTime(*p.EndDate))
	}
	if p.Timezone != nil {
		add("timezone", *p.Timezone)
	}
	if p.RecurringEventID != nil {
		add("recurring_event_id", *p.RecurringEventID)
	}
	if p.PreEventID != nil {
		add("pre_event_id", *p.PreEventID)
	}
	if p.PostEventID != nil {
		add("post_event_id", *p.PostEventID)
	}
	args = append(args, id)

	res, err := tx.ExecContext(ctx, `UPDATE events SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("calendar: patch event %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("calendar: patch event %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (Event, error) {
	var ev Event
	var start, end, updated, transparency string
	err := row.Scan(
		&ev.ID, &ev.UserID, &ev.CalendarID, &ev.ExternalEventID, &ev.Title,
		&start, &end, &ev.Timezone, &ev.AllDay, &transparency,
		&ev.RecurringEventID, &ev.MeetingID, &ev.IsMeeting, &ev.IsExternalMeeting,
		&ev.IsPreEvent, &ev.IsPostEvent, &ev.IsBreak, &ev.ForEventID,
		&ev.PreEventID, &ev.PostEventID, &ev.Modifiable, &ev.Priority,
		&ev.Deleted, &updated,
	)
	if err != nil {
		return Event{}, err
	}
	ev.Transparency = Transparency(transparency)
	ev.StartDate = parseTime(start, ev.Timezone)
	ev.EndDate = parseTime(end, ev.Timezone)
	ev.UpdatedAt = parseTime(updated, "")
	return ev, nil
}

// Fixed-width UTC layout: string order is time order.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(storedTimeLayout)
}

func parseTime(s, zone string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	if zone != "" {
		if loc, err := time.LoadLocation(zone); err == nil {
			return t.In(loc)
		}
	}
	return t
}
