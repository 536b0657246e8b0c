package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

type Notifier interface {
	PendingNotifications(ctx context.Context, userId string, now time.Time) ([]Notification, error)
}

type notifier struct {
	store   EventStore
	metrics *NotificationMetrics
}

func NewNotifier(store EventStore) Notifier {
	return &notifier{
		store:   store,
		metrics: NewNotificationMetrics(),
	}
}

// PendingNotifications classifies the user's events against now. Events
// without a scheduled time are rejected instead of being classified.
func (n *notifier) PendingNotifications(ctx context.Context, userId string, now time.Time) ([]Notification, error) {
	events, err := n.store.ListEventsForUser(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for user %s: %w", userId, err)
	}

	for _, event := range events {
		if event.EventTime.IsZero() {
			n.metrics.Violation(ctx)
			log.Ctx(ctx).Error().Str("user_id", userId).Str("event_id", event.Id).Msg("event without scheduled time")

			return nil, ErrEventWithoutTime(event.Id)
		}
	}

	notifications := Classify(events, now)
	n.metrics.Emitted(ctx, notifications)

	return notifications, nil
}
