package resources

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// DBInstance is the slice of *pgxpool.Pool the repositories use; pgxmock
// pools satisfy it too.
type DBInstance interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ DBInstance = (*pgxpool.Pool)(nil)

type Closable interface {
	Close()
}

type StopFn func(ctx context.Context, timeout time.Duration)

func noopStop(context.Context, time.Duration) {}

func CreateDatabaseConnectionPool(ctx context.Context, cfg *Config) (*pgxpool.Pool, StopFn, error) {
	logger := log.Ctx(ctx).With().Str("stage", "startup").Str("component", "postgres").Logger()

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		logger.Error().Err(err).Msg("unable to parse database connection string")
		return nil, noopStop, fmt.Errorf("failed to parse database connection string: %w", err)
	}

	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Error().Err(err).Msg("unable to connect to database")
		return nil, noopStop, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		logger.Error().Err(err).Msg("unable to ping database")

		return nil, noopStop, fmt.Errorf("failed to ping database: %w", err)
	}

	err = otelpgx.RecordStats(pool)
	if err != nil {
		logger.Warn().Err(err).Msg("unable to record pool stats")
	}

	logger.Info().Str("host", cfg.DBHost).Str("database", cfg.DBName).Msg("connected")

	return pool, closeFn("postgres", pool), nil
}

func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func OpenSQLite(ctx context.Context, cfg *Config) (*sql.DB, StopFn, error) {
	logger := log.Ctx(ctx).With().Str("stage", "startup").Str("component", "sqlite").Logger()

	db, err := sql.Open("sqlite", sqliteDSN(cfg.DBPath))
	if err != nil {
		logger.Error().Err(err).Msg("unable to open database")
		return nil, noopStop, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()
		logger.Error().Err(err).Msg("unable to ping database")

		return nil, noopStop, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	logger.Info().Str("path", cfg.DBPath).Msg("connected")

	return db, closeFn("sqlite", closer(func() { _ = db.Close() })), nil
}

type closer func()

func (fn closer) Close() { fn() }

func closeFn(component string, closable Closable) StopFn {
	return func(ctx context.Context, timeout time.Duration) {
		logger := log.Ctx(ctx).With().Str("stage", "shut down").Str("component", component).Logger()
		logger.Info().Msg("stopping")

		done := make(chan struct{})

		go func() {
			closable.Close()
			close(done)
		}()

		select {
		case <-done:
			logger.Info().Msg("stopped")
		case <-time.After(timeout):
			logger.Warn().Dur("timeout", timeout).Msg("close timed out")
		}
	}
}

func NewHttpServer(host string, port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort(host, port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
