package resources

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Name    string
	Version string
	Env     string

	LogLevel zerolog.Level

	HTTPHost  string
	HTTPPort  string
	DebugPort string

	DBDriver   string
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	DBPath     string

	AuthSecret   string
	AuthTokenTTL time.Duration

	SweepEnabled  bool
	SweepSchedule string
	SweepWorkers  int

	OtelEnabled  bool
	OtelEndpoint string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_HOST", "localhost")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("DEBUG_PORT", "6060")
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "events")
	v.SetDefault("DB_PATH", "events.db")
	v.SetDefault("AUTH_SECRET", "")
	v.SetDefault("AUTH_TOKEN_TTL", "24h")
	v.SetDefault("SWEEP_ENABLED", true)
	v.SetDefault("SWEEP_SCHEDULE", "@every 1m")
	v.SetDefault("SWEEP_WORKERS", 4)
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_ENDPOINT", "localhost:4317")
}

// LoadConfig layers defaults, the optional CONFIG_FILE and the environment,
// in that order of precedence from lowest to highest.
func LoadConfig(name string, version string, env string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)

		err := v.ReadInConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(v.GetString("LOG_LEVEL")))
	if err != nil {
		return nil, fmt.Errorf("%w: LOG_LEVEL: %w", ErrInvalidConfig, err)
	}

	cfg := &Config{
		Name:          name,
		Version:       version,
		Env:           env,
		LogLevel:      level,
		HTTPHost:      v.GetString("HTTP_HOST"),
		HTTPPort:      v.GetString("HTTP_PORT"),
		DebugPort:     v.GetString("DEBUG_PORT"),
		DBDriver:      strings.ToLower(v.GetString("DB_DRIVER")),
		DBUser:        v.GetString("DB_USER"),
		DBPassword:    v.GetString("DB_PASSWORD"),
		DBHost:        v.GetString("DB_HOST"),
		DBPort:        v.GetString("DB_PORT"),
		DBName:        v.GetString("DB_NAME"),
		DBPath:        v.GetString("DB_PATH"),
		AuthSecret:    v.GetString("AUTH_SECRET"),
		AuthTokenTTL:  v.GetDuration("AUTH_TOKEN_TTL"),
		SweepEnabled:  v.GetBool("SWEEP_ENABLED"),
		SweepSchedule: v.GetString("SWEEP_SCHEDULE"),
		SweepWorkers:  v.GetInt("SWEEP_WORKERS"),
		OtelEnabled:   v.GetBool("OTEL_ENABLED"),
		OtelEndpoint:  v.GetString("OTEL_ENDPOINT"),
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) Validate() error {
	var errs []error

	switch cfg.DBDriver {
	case DriverPostgres:
		if cfg.DBHost == "" || cfg.DBName == "" || cfg.DBUser == "" {
			errs = append(errs, errors.New("DB_HOST, DB_NAME and DB_USER are required for postgres"))
		}
	case DriverSQLite:
		if cfg.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not supported", cfg.DBDriver))
	}

	if cfg.AuthSecret == "" {
		errs = append(errs, errors.New("AUTH_SECRET is required"))
	}

	if cfg.AuthTokenTTL <= 0 {
		errs = append(errs, errors.New("AUTH_TOKEN_TTL must be positive"))
	}

	if cfg.SweepWorkers < 1 {
		errs = append(errs, errors.New("SWEEP_WORKERS must be at least 1"))
	}

	if cfg.SweepEnabled {
		_, err := cron.ParseStandard(cfg.SweepSchedule)
		if err != nil {
			errs = append(errs, fmt.Errorf("SWEEP_SCHEDULE: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}

func (cfg *Config) PostgresURL() string {
	//nolint:nosprintfhostport
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

// ConfigureLogger installs the global zerolog logger and returns a context
// carrying it, so log.Ctx(ctx) works everywhere downstream.
func ConfigureLogger(ctx context.Context, cfg *Config) context.Context {
	zerolog.SetGlobalLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	log.Logger = zerolog.New(os.Stdout).With().
		Timestamp().
		Str("app", cfg.Name).
		Str("version", cfg.Version).
		Str("env", cfg.Env).
		Logger()

	return log.Logger.WithContext(ctx)
}
