package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"taskmanager/pkg/resources"
)

const (
	pgUniqueViolation           = "23505"
	pgInvalidTextRepresentation = "22P02"
)

// isMissingRow reports whether err means the addressed row cannot exist. An id
// that is not a UUID fails the cast server side instead of matching nothing.
func isMissingRow(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}

	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextRepresentation
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id          UUID PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		event_time  TIMESTAMP NOT NULL,
		user_id     UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_user_id_event_time ON events (user_id, event_time)`,
}

func InitPostgresSchema(ctx context.Context, db resources.DBInstance) error {
	for _, stmt := range postgresSchema {
		_, err := db.Exec(ctx, stmt)
		if err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return nil
}

const eventColumns = "id, title, description, event_time, user_id, created_at"

type repository struct {
	tracer  trace.Tracer
	metrics *DBMetrics
	pool    resources.DBInstance
}

func NewRepository(pool resources.DBInstance) Repository {
	return &repository{
		tracer:  otel.GetTracerProvider().Tracer("taskmanager/core"),
		metrics: NewDBMetrics("postgres"),
		pool:    pool,
	}
}

func (r *repository) SaveEvent(ctx context.Context, event *Event) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "save_event", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.SaveEvent")
	defer span.End()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	var savedEvent Event

	err = tx.QueryRow(ctx,
		"INSERT INTO events (id, title, description, event_time, user_id) "+
			"VALUES ($1, $2, $3, $4, $5) "+
			"RETURNING "+eventColumns,
		uuid.NewString(), event.Title, event.Description, event.EventTime.UTC(), event.UserId).
		Scan(&savedEvent.Id, &savedEvent.Title, &savedEvent.Description, &savedEvent.EventTime, &savedEvent.UserId, &savedEvent.CreatedAt)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	err = tx.Commit(ctx)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &savedEvent, nil
}

func (r *repository) GetEventById(ctx context.Context, id string) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "get_event_by_id", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.GetEventById")
	defer span.End()

	var e Event

	err = r.pool.QueryRow(
		ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE id = $1`,
		id,
	).Scan(
		&e.Id,
		&e.Title,
		&e.Description,
		&e.EventTime,
		&e.UserId,
		&e.CreatedAt,
	)
	if isMissingRow(err) {
		err = ErrEventNotFound
		return nil, fmt.Errorf("failed to get event by id %s: %w", id, err)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get event by id: %w", err)
	}

	return &e, nil
}

func (r *repository) ListEventsForUser(ctx context.Context, userId string) ([]Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "list_events_for_user", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.ListEventsForUser")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE user_id = $1
		 ORDER BY event_time`,
		userId,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for user: %w", err)
	}

	events, err := collectEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for user: %w", err)
	}

	return events, nil
}

func (r *repository) ListUpcomingEvents(ctx context.Context, userId string, from time.Time) ([]Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "list_upcoming_events", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.ListUpcomingEvents")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE user_id = $1 AND event_time >= $2
		 ORDER BY event_time`,
		userId, from.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming events: %w", err)
	}

	events, err := collectEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming events: %w", err)
	}

	return events, nil
}

func (r *repository) UpdateEvent(ctx context.Context, event *Event) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "update_event", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.UpdateEvent")
	defer span.End()

	var updated Event

	err = r.pool.QueryRow(ctx,
		"UPDATE events SET title = $2, description = $3, event_time = $4 "+
			"WHERE id = $1 "+
			"RETURNING "+eventColumns,
		event.Id, event.Title, event.Description, event.EventTime.UTC()).
		Scan(&updated.Id, &updated.Title, &updated.Description, &updated.EventTime, &updated.UserId, &updated.CreatedAt)
	if isMissingRow(err) {
		err = ErrEventNotFound
		return nil, fmt.Errorf("failed to update event %s: %w", event.Id, err)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	return &updated, nil
}

func (r *repository) DeleteEvent(ctx context.Context, id string) error {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "delete_event", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.DeleteEvent")
	defer span.End()

	tag, err := r.pool.Exec(ctx, "DELETE FROM events WHERE id = $1", id)
	if isMissingRow(err) || (err == nil && tag.RowsAffected() == 0) {
		err = ErrEventNotFound
		return fmt.Errorf("failed to delete event %s: %w", id, err)
	}

	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	return nil
}

func collectEvents(rows pgx.Rows) ([]Event, error) {
	defer rows.Close()

	events := make([]Event, 0)

	for rows.Next() {
		var e Event

		err := rows.Scan(&e.Id, &e.Title, &e.Description, &e.EventTime, &e.UserId, &e.CreatedAt)
		if err != nil {
			return nil, err
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

/*

 */

type userRepository struct {
	tracer  trace.Tracer
	metrics *DBMetrics
	pool    resources.DBInstance
}

func NewUserRepository(pool resources.DBInstance) UserRepository {
	return &userRepository{
		tracer:  otel.GetTracerProvider().Tracer("taskmanager/core"),
		metrics: NewDBMetrics("postgres"),
		pool:    pool,
	}
}

func (r *userRepository) SaveUser(ctx context.Context, user *User) (*User, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "save_user", start, err) }()

	ctx, span := r.tracer.Start(ctx, "userRepository.SaveUser")
	defer span.End()

	var saved User

	err = r.pool.QueryRow(ctx,
		"INSERT INTO users (id, username, password_hash) "+
			"VALUES ($1, $2, $3) "+
			"RETURNING id, username, password_hash, created_at",
		uuid.NewString(), user.Username, user.PasswordHash).
		Scan(&saved.Id, &saved.Username, &saved.PasswordHash, &saved.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return nil, fmt.Errorf("failed to save user %s: %w", user.Username, ErrUsernameTaken)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	return &saved, nil
}

func (r *userRepository) GetUserById(ctx context.Context, id string) (*User, error) {
	return r.getUser(ctx, "get_user_by_id", "id", id)
}

func (r *userRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return r.getUser(ctx, "get_user_by_username", "username", username)
}

func (r *userRepository) getUser(ctx context.Context, op string, column string, value string) (*User, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, op, start, err) }()

	ctx, span := r.tracer.Start(ctx, "userRepository."+op)
	defer span.End()

	var u User

	err = r.pool.QueryRow(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE "+column+" = $1",
		value,
	).Scan(&u.Id, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if isMissingRow(err) {
		err = ErrUserNotFound
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}

	return &u, nil
}

func (r *userRepository) ListUsers(ctx context.Context) ([]User, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "list_users", start, err) }()

	ctx, span := r.tracer.Start(ctx, "userRepository.ListUsers")
	defer span.End()

	rows, err := r.pool.Query(ctx, "SELECT id, username, password_hash, created_at FROM users ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)

	for rows.Next() {
		var u User

		err = rows.Scan(&u.Id, &u.Username, &u.PasswordHash, &u.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}

		users = append(users, u)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}
