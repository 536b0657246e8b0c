package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Sweeper runs the notifier for every known user. It only reports what is
// pending; delivery is left to whoever consumes the logs and metrics.
type Sweeper struct {
	users    UserRepository
	notifier Notifier
	clock    Clock
	workers  int
	timeout  time.Duration
	metrics  *NotificationMetrics
}

func NewSweeper(users UserRepository, notifier Notifier, clock Clock, workers int, timeout time.Duration) *Sweeper {
	if workers < 1 {
		workers = 1
	}

	return &Sweeper{
		users:    users,
		notifier: notifier,
		clock:    clock,
		workers:  workers,
		timeout:  timeout,
		metrics:  NewNotificationMetrics(),
	}
}

// Run satisfies cron.Job.
func (s *Sweeper) Run() {
	ctx := log.Logger.With().Str("component", "notification-sweep").Logger().WithContext(context.Background())

	if s.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	total, err := s.Sweep(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Int("notifications", total).Msg("notification sweep finished with failures")
		return
	}

	log.Ctx(ctx).Debug().Int("notifications", total).Msg("notification sweep finished")
}

// Sweep classifies every user's events against a single reading of the clock
// and returns how many notifications were pending. Users that fail are
// reported together in the returned error; the rest are still counted.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	start := time.Now()
	now := s.clock()

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		s.metrics.Swept(ctx, start, 0, err)
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	var (
		total atomic.Int64
		mu    sync.Mutex
		errs  []error
	)

	// Users are independent: one failing user does not cancel the others.
	var group errgroup.Group
	group.SetLimit(s.workers)

	for _, user := range users {
		group.Go(func() error {
			notifications, err := s.notifier.PendingNotifications(ctx, user.Id, now)
			if err != nil {
				log.Ctx(ctx).Error().Err(err).Str("user_id", user.Id).Msg("unable to compute notifications")

				mu.Lock()
				errs = append(errs, fmt.Errorf("user %s: %w", user.Id, err))
				mu.Unlock()

				return nil
			}

			for _, n := range notifications {
				log.Ctx(ctx).Info().
					Str("user_id", user.Id).
					Str("event_id", n.EventId).
					Str("kind", string(n.Kind)).
					Time("event_time", n.EventTime).
					Msg(n.Message)
			}

			total.Add(int64(len(notifications)))

			return nil
		})
	}

	_ = group.Wait()

	err = errors.Join(errs...)
	s.metrics.Swept(ctx, start, len(users), err)

	return int(total.Load()), err
}
