package servers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"taskmanager/pkg/resources"
)

// Start runs server in the background and reports a failed Run on errChan.
// The returned StopFn stops it within the given timeout, even when ctx is
// already cancelled.
func Start(ctx context.Context, name string, server Server, errChan chan<- error) resources.StopFn {
	go func() {
		err := server.Run(ctx)
		if err != nil {
			errChan <- err
		}
	}()

	return func(ctx context.Context, timeout time.Duration) {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		err := server.Stop(stopCtx)
		if err != nil {
			log.Ctx(ctx).Error().Str("stage", "shut down").Str("component", name).Err(err).Msg("unable to stop")
		}
	}
}
