package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"taskmanager/core"
	"taskmanager/pkg/resources"
	"taskmanager/pkg/servers"
)

const stopTimeout = 15 * time.Second

func main() {
	name, version, env := "taskmanager", "1.0", "local"

	if value, ok := os.LookupEnv("APP_ENV"); ok {
		env = value
	}

	// 1. Config + logger
	cfg, err := resources.LoadConfig(name, version, env)
	if err != nil {
		log.Fatal().Err(err).Str("stage", "startup").Str("component", "main").Msg("unable to load configuration")
	}

	ctx := resources.ConfigureLogger(context.Background(), cfg)
	startupLogger := log.Ctx(ctx).With().Str("stage", "startup").Str("component", "main").Logger()
	shutdownLogger := log.Ctx(ctx).With().Str("stage", "shut down").Str("component", "main").Logger()

	startupLogger.Info().Msg("application starting up")
	defer shutdownLogger.Info().Msg("application stopped")

	hookFn := func(ctx context.Context) (context.Context, error) {
		log.Logger = log.Logger.Hook(resources.NewOTelLogHook(cfg))
		return log.Logger.WithContext(ctx), nil
	}

	// 2. Telemetry (traces/metrics/logs); zerolog keeps printing to stdout and
	// is mirrored to the OTel log pipeline
	ctx, stopFn, err := resources.Observe(ctx, cfg, hookFn)
	if err != nil {
		shutdownLogger.Fatal().Err(err).Msg(fmt.Sprintf("unable to setup otel telemetry: %v", err))
	}
	defer stopFn(ctx, stopTimeout)

	// 3. Storage
	clock := core.Clock(time.Now)

	var (
		repository core.Repository
		users      core.UserRepository
	)

	switch cfg.DBDriver {
	case resources.DriverSQLite:
		db, stopFn, err := resources.OpenSQLite(ctx, cfg)
		if err != nil {
			shutdownLogger.Fatal().Err(err).Msg("unable to open sqlite database")
		}
		defer stopFn(ctx, stopTimeout)

		err = core.InitSQLiteSchema(ctx, db)
		if err != nil {
			shutdownLogger.Fatal().Err(err).Msg("unable to create sqlite schema")
		}

		repository = core.NewSQLiteRepository(db, clock)
		users = core.NewSQLiteUserRepository(db, clock)
	default:
		pool, stopFn, err := resources.CreateDatabaseConnectionPool(ctx, cfg)
		if err != nil {
			shutdownLogger.Fatal().Err(err).Msg(fmt.Sprintf("unable to create database connection pool: %v", err))
		}
		defer stopFn(ctx, stopTimeout)

		err = core.InitPostgresSchema(ctx, pool)
		if err != nil {
			shutdownLogger.Fatal().Err(err).Msg("unable to create postgres schema")
		}

		repository = core.NewRepository(pool)
		users = core.NewUserRepository(pool)
	}

	// 4. Wiring
	notifier := core.NewNotifier(repository)
	tokens := core.NewTokens(cfg.AuthSecret, name, cfg.AuthTokenTTL, clock)
	handlers := core.NewHandlers(repository, users, notifier, tokens, clock)

	// 5. Daemons/servers setup
	gin.SetMode(gin.ReleaseMode)

	restHandler := gin.New()
	restHandler.Use(gin.Recovery())
	restHandler.Use(resources.TracerMiddleware(name))
	restHandler.Use(resources.MeterMiddleware(name))
	restHandler.Use(resources.LoggerMiddleware(*log.Ctx(ctx)))

	core.Register(restHandler, handlers, tokens)

	debugHandler := http.NewServeMux()
	debugHandler.HandleFunc("/debug/pprof/", pprof.Index)
	debugHandler.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	debugHandler.HandleFunc("/debug/pprof/profile", pprof.Profile)
	debugHandler.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	debugHandler.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// 6. Daemons/servers lifecycle
	errChan := make(chan error, 16)

	debugServer := resources.NewHttpServer("localhost", cfg.DebugPort, debugHandler)
	serverName, server := servers.BuildHttpServer("debug-server", debugServer)
	stopFn = servers.Start(ctx, serverName, server, errChan)
	defer stopFn(ctx, stopTimeout)

	restServer := resources.NewHttpServer(cfg.HTTPHost, cfg.HTTPPort, restHandler)
	serverName, server = servers.BuildHttpServer("rest-server", restServer)
	stopFn = servers.Start(ctx, serverName, server, errChan)
	defer stopFn(ctx, stopTimeout)

	if cfg.SweepEnabled {
		scheduler := servers.NewScheduler(ctx, "notification-sweep")

		sweeper := core.NewSweeper(users, notifier, clock, cfg.SweepWorkers, time.Minute)

		_, err = scheduler.AddJob(cfg.SweepSchedule, sweeper)
		if err != nil {
			shutdownLogger.Fatal().Err(err).Msg("unable to schedule notification sweep")
		}

		serverName, server = servers.BuildCronServer("sweep-server", scheduler)
		stopFn = servers.Start(ctx, serverName, server, errChan)
		defer stopFn(ctx, stopTimeout)
	}

	startupLogger.Info().Msg("application running")

	// 7. Wait for shutdown signal
	notifyCtx, cancelNotifyFn := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancelNotifyFn()

	select {
	case <-notifyCtx.Done():
		startupLogger.Info().Msg("application shutdown requested")
	case runErr := <-errChan:
		shutdownLogger.Error().Err(runErr).Msg("runtime error")
	}
}
