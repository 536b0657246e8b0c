package core

import "time"

type Clock func() time.Time

type Event struct {
	Id          string    `json:"id,omitempty"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	EventTime   time.Time `json:"event_time"`
	UserId      string    `json:"user_id,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

type NotificationKind string

const (
	NotificationUpcoming NotificationKind = "UPCOMING"
	NotificationStarting NotificationKind = "STARTING"
	NotificationExpired  NotificationKind = "EXPIRED"
)

// Notification is derived from an Event for a given instant and is never stored.
type Notification struct {
	EventId   string           `json:"event_id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	EventTime time.Time        `json:"event_time"`
}

type User struct {
	Id           string    `json:"id,omitempty"`
	Username     string    `json:"username,omitempty"`
	Password     string    `json:"password,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// Public drops the credentials before the user leaves the process.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}

	return &User{
		Id:        u.Id,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
}
