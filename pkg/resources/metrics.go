package resources

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const HeaderRequestId = "X-Request-Id"

type HTTPMetrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

func NewHTTPMetrics(name string) *HTTPMetrics {
	meter := otel.Meter(name)

	requests, _ := meter.Int64Counter(
		"http.server.requests",
		metric.WithDescription("HTTP requests"),
	)
	latency, _ := meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
	)
	inFlight, _ := meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("HTTP requests being served"),
	)

	return &HTTPMetrics{requests: requests, latency: latency, inFlight: inFlight}
}

func (m *HTTPMetrics) Middleware() gin.HandlerFunc {
	return func(gctx *gin.Context) {
		ctx := gctx.Request.Context()
		start := time.Now()

		m.inFlight.Add(ctx, 1)
		defer m.inFlight.Add(ctx, -1)

		gctx.Next()

		route := gctx.FullPath()
		if route == "" {
			route = "unmatched"
		}

		status := gctx.Writer.Status()

		attrs := metric.WithAttributes(
			attribute.String("http.route", route),
			attribute.String("http.method", gctx.Request.Method),
			attribute.Int("http.status_code", status),
			attribute.String("http.status_class", strconv.Itoa(status/100)+"xx"),
		)

		m.requests.Add(ctx, 1, attrs)
		m.latency.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
	}
}

func MeterMiddleware(name string) gin.HandlerFunc {
	return NewHTTPMetrics(name).Middleware()
}

func TracerMiddleware(name string) gin.HandlerFunc {
	return otelgin.Middleware(name)
}

// LoggerMiddleware puts a request scoped child of logger in the request
// context and logs one line per request.
func LoggerMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		start := time.Now()

		requestId := gctx.GetHeader(HeaderRequestId)
		if requestId == "" {
			requestId = uuid.NewString()
		}

		gctx.Header(HeaderRequestId, requestId)

		reqLogger := logger.With().
			Str("component", "rest-server").
			Str("request_id", requestId).
			Logger()

		gctx.Request = gctx.Request.WithContext(reqLogger.WithContext(gctx.Request.Context()))

		gctx.Next()

		status := gctx.Writer.Status()

		event := reqLogger.Info()
		if status >= 500 {
			event = reqLogger.Error()
		}

		event.
			Str("method", gctx.Request.Method).
			Str("path", gctx.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request served")
	}
}
