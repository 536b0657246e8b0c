package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLite has no timestamp type; times are stored as fixed-width UTC text so
// that ORDER BY and range comparisons on the column stay chronological.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    event_time  TEXT NOT NULL,
    user_id     TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_user_id_event_time
    ON events (user_id, event_time);
`

func InitSQLiteSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	return nil
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored time %q: %w", s, err)
	}

	return t, nil
}

type sqliteRepository struct {
	tracer  trace.Tracer
	metrics *DBMetrics
	db      *sql.DB
	clock   Clock
}

func NewSQLiteRepository(db *sql.DB, clock Clock) Repository {
	return &sqliteRepository{
		tracer:  otel.GetTracerProvider().Tracer("taskmanager/core"),
		metrics: NewDBMetrics("sqlite"),
		db:      db,
		clock:   clock,
	}
}

func (r *sqliteRepository) SaveEvent(ctx context.Context, event *Event) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "save_event", start, err) }()

	ctx, span := r.tracer.Start(ctx, "sqliteRepository.SaveEvent")
	defer span.End()

	saved := Event{
		Id:          uuid.NewString(),
		Title:       event.Title,
		Description: event.Description,
		EventTime:   event.EventTime.UTC(),
		UserId:      event.UserId,
		CreatedAt:   r.clock().UTC(),
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO events (id, title, description, event_time, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		saved.Id, saved.Title, saved.Description, formatSQLiteTime(saved.EventTime), saved.UserId, formatSQLiteTime(saved.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	return &saved, nil
}

func (r *sqliteRepository) GetEventById(ctx context.Context, id string) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "get_event_by_id", start, err) }()

	ctx, span := r.tracer.Start(ctx, "sqliteRepository.GetEventById")
	defer span.End()

	row := r.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", id)

	e, err := scanSQLiteEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get event by id %s: %w", id, ErrEventNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get event by id: %w", err)
	}

	return e, nil
}

func (r *sqliteRepository) ListEventsForUser(ctx context.Context, userId string) ([]Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "list_events_for_user", start, err) }()

	ctx, span := r.tracer.Start(ctx, "sqliteRepository.ListEventsForUser")
	defer span.End()

	events, err := r.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM events WHERE user_id = ? ORDER BY event_time", userId)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for user: %w", err)
	}

	return events, nil
}

func (r *sqliteRepository) ListUpcomingEvents(ctx context.Context, userId string, from time.Time) ([]Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "list_upcoming_events", start, err) }()

	ctx, span := r.tracer.Start(ctx, "sqliteRepository.ListUpcomingEvents")
	defer span.End()

	events, err := r.queryEvents(ctx,
		"SELECT "+eventColumns+" FROM events WHERE user_id = ? AND event_time >= ? ORDER BY event_time",
		userId, formatSQLiteTime(from))
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming events: %w", err)
	}

	return events, nil
}

func (r *sqliteRepository) UpdateEvent(ctx context.Context, event *Event) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "update_event", start, err) }()

	ctx, span := r.tracer.Start(ctx, "sqliteRepository.UpdateEvent")
	defer span.End()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE events SET title = ?, description = ?, event_time = ? WHERE id = ?",
		event.Title, event.Description, formatSQLiteTime(event.EventTime), event.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	if affected == 0 {
		err = ErrEventNotFound
		return nil, fmt.Errorf("failed to update event %s: %w", event.Id, err)
	}

	updated, err := scanSQLiteEvent(tx.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", event.Id))
	if err != nil {
		return nil, fmt.Errorf("failed to reload event: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return updated, nil
}

func (r *sqliteRepository) DeleteEvent(ctx context.Context, id string) error {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "delete_event", start, err) }()

	ctx, span := r.tracer.Start(ctx, "sqliteRepository.DeleteEvent")
	defer span.End()

	res, err := r.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	if affected == 0 {
		err = ErrEventNotFound
		return fmt.Errorf("failed to delete event %s: %w", id, err)
	}

	return nil
}

func (r *sqliteRepository) queryEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]Event, 0)

	for rows.Next() {
		e, err := scanSQLiteEvent(rows)
		if err != nil {
			return nil, err
		}

		events = append(events, *e)
	}

	return events, rows.Err()
}

type sqliteScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteEvent(row sqliteScanner) (*Event, error) {
	var (
		e         Event
		eventTime string
		createdAt string
	)

	err := row.Scan(&e.Id, &e.Title, &e.Description, &eventTime, &e.UserId, &createdAt)
	if err != nil {
		return nil, err
	}

	e.EventTime, err = parseSQLiteTime(eventTime)
	if err != nil {
		return nil, err
	}

	e.CreatedAt, err = parseSQLiteTime(createdAt)
	if err != nil {
		return nil, err
	}

	return &e, nil
}

/*

 */

type sqliteUserRepository struct {
	tracer  trace.Tracer
	metrics *DBMetrics
	db      *sql.DB
	clock   Clock
}

func NewSQLiteUserRepository(db *sql.DB, clock Clock) UserRepository {
	return &sqliteUserRepository{
		tracer:  otel.GetTracerProvider().Tracer("taskmanager/core"),
		metrics: NewDBMetrics("sqlite"),
		db:      db,
		clock:   clock,
	}
}

func (r *sqliteUserRepository) SaveUser(ctx context.Context, user *User) (*User, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "save_user", start, err) }()

	ctx, span := r.tracer.Start(ctx, "sqliteUserRepository.SaveUser")
	defer span.End()

	saved := User{
		Id:           uuid.NewString(),
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		CreatedAt:    r.clock().UTC(),
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)",
		saved.Id, saved.Username, saved.PasswordHash, formatSQLiteTime(saved.CreatedAt))

	if isSQLiteUniqueViolation(err) {
		return nil, fmt.Errorf("failed to save user %s: %w", user.Username, ErrUsernameTaken)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	return &saved, nil
}

func (r *sqliteUserRepository) GetUserById(ctx context.Context, id string) (*User, error) {
	return r.getUser(ctx, "get_user_by_id", "id", id)
}

func (r *sqliteUserRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return r.getUser(ctx, "get_user_by_username", "username", username)
}

func (r *sqliteUserRepository) getUser(ctx context.Context, op string, column string, value string) (*User, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, op, start, err) }()

	ctx, span := r.tracer.Start(ctx, "sqliteUserRepository."+op)
	defer span.End()

	row := r.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE "+column+" = ?", value)

	u, err := scanSQLiteUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get user by %s: %w", column, ErrUserNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}

	return u, nil
}

func (r *sqliteUserRepository) ListUsers(ctx context.Context) ([]User, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "list_users", start, err) }()

	ctx, span := r.tracer.Start(ctx, "sqliteUserRepository.ListUsers")
	defer span.End()

	rows, err := r.db.QueryContext(ctx, "SELECT id, username, password_hash, created_at FROM users ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)

	for rows.Next() {
		var u *User

		u, err = scanSQLiteUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}

		users = append(users, *u)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}

func isSQLiteUniqueViolation(err error) bool {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}

	switch liteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(liteErr.Error(), "UNIQUE")
	default:
		return false
	}
}

func scanSQLiteUser(row sqliteScanner) (*User, error) {
	var (
		u         User
		createdAt string
	)

	err := row.Scan(&u.Id, &u.Username, &u.PasswordHash, &createdAt)
	if err != nil {
		return nil, err
	}

	u.CreatedAt, err = parseSQLiteTime(createdAt)
	if err != nil {
		return nil, err
	}

	return &u, nil
}
