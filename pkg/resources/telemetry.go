package resources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type HookFn func(ctx context.Context) (context.Context, error)

type shutdownFn func(ctx context.Context) error

// Observe installs the global tracer, meter and logger providers, all
// exporting over OTLP gRPC, then runs hookFn so it can bind to them. With
// telemetry disabled only hookFn runs.
func Observe(ctx context.Context, cfg *Config, hookFn HookFn) (context.Context, StopFn, error) {
	logger := log.Ctx(ctx).With().Str("stage", "startup").Str("component", "telemetry").Logger()

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.OtelEnabled {
		logger.Info().Msg("telemetry export disabled")

		ctx, err := hookFn(ctx)
		if err != nil {
			return ctx, noopStop, fmt.Errorf("failed to run telemetry hook: %w", err)
		}

		return ctx, noopStop, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.Name),
			attribute.String("service.version", cfg.Version),
			attribute.String("deployment.environment.name", cfg.Env),
		),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
	)
	if err != nil {
		return ctx, noopStop, fmt.Errorf("failed to create telemetry resource: %w", err)
	}

	var shutdowns []shutdownFn

	stopFn := func(ctx context.Context, timeout time.Duration) {
		stopLogger := log.Ctx(ctx).With().Str("stage", "shut down").Str("component", "telemetry").Logger()
		stopLogger.Info().Msg("stopping")

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		var errs []error
		for i := len(shutdowns) - 1; i >= 0; i-- {
			errs = append(errs, shutdowns[i](ctx))
		}

		err := errors.Join(errs...)
		if err != nil {
			stopLogger.Error().Err(err).Msg("failed to stop")
			return
		}

		stopLogger.Info().Msg("stopped")
	}

	failFn := func(err error) (context.Context, StopFn, error) {
		stopFn(ctx, 5*time.Second)
		return ctx, noopStop, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OtelEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return failFn(fmt.Errorf("failed to create the OTLP trace exporter: %w", err))
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	shutdowns = append(shutdowns, tracerProvider.Shutdown)

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OtelEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return failFn(fmt.Errorf("failed to create the OTLP metric exporter: %w", err))
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)
	shutdowns = append(shutdowns, meterProvider.Shutdown)

	logExporter, err := otlploggrpc.New(ctx,
		otlploggrpc.WithEndpoint(cfg.OtelEndpoint),
		otlploggrpc.WithInsecure(),
	)
	if err != nil {
		return failFn(fmt.Errorf("failed to create the OTLP log exporter: %w", err))
	}

	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(loggerProvider)
	shutdowns = append(shutdowns, loggerProvider.Shutdown)

	err = runtime.Start(runtime.WithMeterProvider(meterProvider))
	if err != nil {
		return failFn(fmt.Errorf("failed to start runtime metrics: %w", err))
	}

	ctx, err = hookFn(ctx)
	if err != nil {
		return failFn(fmt.Errorf("failed to run telemetry hook: %w", err))
	}

	logger.Info().Str("endpoint", cfg.OtelEndpoint).Msg("telemetry exporting")

	return ctx, stopFn, nil
}
