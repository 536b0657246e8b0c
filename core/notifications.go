package core

import (
	"fmt"
	"time"
)

// Windows are open intervals relative to the event time T.
const (
	UpcomingLead   = 5 * time.Minute  // (T-5m, T)
	StartingSpread = 1 * time.Minute  // (T-1m, T+1m)
	ExpiredDelay   = 10 * time.Minute // (T+10m, T+24h)
	ExpiredCutoff  = 24 * time.Hour
)

const eventTimeLayout = "2006-01-02 15:04"

// Classify returns the notifications active at now, in event order and, per
// event, in the order UPCOMING, STARTING, EXPIRED. Overlapping windows emit one
// notification each.
func Classify(events []Event, now time.Time) []Notification {
	notifications := make([]Notification, 0, len(events))

	for _, event := range events {
		if isUpcoming(event.EventTime, now) {
			notifications = append(notifications, newNotification(event, NotificationUpcoming,
				"Upcoming event", fmt.Sprintf("%s starts in 5 minutes", event.Title)))
		}

		if isStarting(event.EventTime, now) {
			notifications = append(notifications, newNotification(event, NotificationStarting,
				"Event started", fmt.Sprintf("%s is starting now", event.Title)))
		}

		if isExpired(event.EventTime, now) {
			notifications = append(notifications, newNotification(event, NotificationExpired,
				"Event expired", fmt.Sprintf("%s was due at %s", event.Title, event.EventTime.Format(eventTimeLayout))))
		}
	}

	return notifications
}

func isUpcoming(at time.Time, now time.Time) bool {
	return between(now, at.Add(-UpcomingLead), at)
}

func isStarting(at time.Time, now time.Time) bool {
	return between(now, at.Add(-StartingSpread), at.Add(StartingSpread))
}

func isExpired(at time.Time, now time.Time) bool {
	return between(now, at.Add(ExpiredDelay), at.Add(ExpiredCutoff))
}

func between(now time.Time, from time.Time, to time.Time) bool {
	return now.After(from) && now.Before(to)
}

func newNotification(event Event, kind NotificationKind, title string, message string) Notification {
	return Notification{
		EventId:   event.Id,
		Kind:      kind,
		Title:     title,
		Message:   message,
		EventTime: event.EventTime,
	}
}
