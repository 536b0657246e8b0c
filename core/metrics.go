package core

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type DBMetrics struct {
	system   string
	qTotal   metric.Int64Counter
	qErrors  metric.Int64Counter
	qLatency metric.Float64Histogram
}

func NewDBMetrics(system string) *DBMetrics {
	return newDBMetrics(otel.Meter("taskmanager/db"), system)
}

func newDBMetrics(meter metric.Meter, system string) *DBMetrics {
	qTotal, _ := meter.Int64Counter("db.query.total")
	qErrors, _ := meter.Int64Counter("db.query.errors.total")
	qLatency, _ := meter.Float64Histogram("db.query.duration.ms")

	return &DBMetrics{system: system, qTotal: qTotal, qErrors: qErrors, qLatency: qLatency}
}

func (m *DBMetrics) Observe(ctx context.Context, op string, start time.Time, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", m.system),
		attribute.String("db.operation", op),
	}

	m.qTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	ms := float64(time.Since(start).Milliseconds())
	m.qLatency.Record(ctx, ms, metric.WithAttributes(attrs...))

	if err != nil {
		m.qErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

type NotificationMetrics struct {
	emitted    metric.Int64Counter
	violations metric.Int64Counter
	sweeps     metric.Float64Histogram
}

func NewNotificationMetrics() *NotificationMetrics {
	meter := otel.Meter("taskmanager/notifications")

	emitted, _ := meter.Int64Counter("notifications.emitted.total",
		metric.WithDescription("Notifications produced by the classifier"))
	violations, _ := meter.Int64Counter("notifications.contract_violations.total",
		metric.WithDescription("Events rejected for missing a scheduled time"))
	sweeps, _ := meter.Float64Histogram("notifications.sweep.duration.ms",
		metric.WithDescription("Duration of a full notification sweep in milliseconds"))

	return &NotificationMetrics{emitted: emitted, violations: violations, sweeps: sweeps}
}

func (m *NotificationMetrics) Emitted(ctx context.Context, notifications []Notification) {
	for _, n := range notifications {
		m.emitted.Add(ctx, 1, metric.WithAttributes(attribute.String("notification.kind", string(n.Kind))))
	}
}

func (m *NotificationMetrics) Violation(ctx context.Context) {
	m.violations.Add(ctx, 1)
}

func (m *NotificationMetrics) Swept(ctx context.Context, start time.Time, users int, err error) {
	m.sweeps.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(
		attribute.Int("sweep.users", users),
		attribute.Bool("sweep.failed", err != nil),
	))
}
