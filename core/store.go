package core

import (
	"context"
	"time"
)

// EventStore lists every event a user owns, ascending by event time.
type EventStore interface {
	ListEventsForUser(ctx context.Context, userId string) ([]Event, error)
}

type Repository interface {
	EventStore
	SaveEvent(ctx context.Context, event *Event) (*Event, error)
	GetEventById(ctx context.Context, id string) (*Event, error)
	ListUpcomingEvents(ctx context.Context, userId string, from time.Time) ([]Event, error)
	UpdateEvent(ctx context.Context, event *Event) (*Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

type UserRepository interface {
	SaveUser(ctx context.Context, user *User) (*User, error)
	GetUserById(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
}
