package servers

import (
	"context"
	"sync"
	"time"

	"github.com/qmdx00/lifecycle"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type cronServer struct {
	name         string
	internal     CronServer
	closeChannel chan struct{}
	closeOnce    sync.Once
}

func BuildCronServer(name string, internal CronServer) (string, Server) {
	return name, NewCronServer(name, internal)
}

func NewCronServer(name string, internal CronServer) lifecycle.Server {
	return &cronServer{
		name:         name,
		internal:     internal,
		closeChannel: make(chan struct{}),
	}
}

func (server *cronServer) Run(ctx context.Context) error {
	log.Ctx(ctx).Info().Str("stage", "startup").Str("component", server.name).Msg("starting up")

	select {
	case <-server.closeChannel:
		return nil
	default:
	}

	server.internal.Start()
	<-server.closeChannel

	return nil
}

// Stop halts the scheduler and waits, bounded by ctx, for running jobs.
func (server *cronServer) Stop(ctx context.Context) error {
	log.Ctx(ctx).Info().Str("stage", "shut down").Str("component", server.name).Msg("stopping")

	jobsCtx := server.internal.Stop()
	server.closeOnce.Do(func() { close(server.closeChannel) })

	select {
	case <-jobsCtx.Done():
		log.Ctx(ctx).Info().Str("stage", "shut down").Str("component", server.name).Msg("stopped")
		return nil
	case <-ctx.Done():
		log.Ctx(ctx).Error().Str("stage", "shut down").Str("component", server.name).Err(ctx.Err()).Msg("running jobs did not finish")
		return ErrServerFailedToStop(server.name, ctx.Err())
	}
}

// NewScheduler returns a UTC cron that recovers panicking jobs and skips a
// tick while the previous run of the same job is still going.
func NewScheduler(ctx context.Context, name string) *cron.Cron {
	logger := cronLogger{logger: log.Ctx(ctx).With().Str("component", name).Logger()}

	return cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
