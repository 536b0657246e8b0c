package resources

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/rs/zerolog"
	otelog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
)

type severity struct {
	level otelog.Severity
	text  string
}

var severities = map[zerolog.Level]severity{
	zerolog.TraceLevel: {otelog.SeverityTrace, "TRACE"},
	zerolog.DebugLevel: {otelog.SeverityDebug, "DEBUG"},
	zerolog.InfoLevel:  {otelog.SeverityInfo, "INFO"},
	zerolog.WarnLevel:  {otelog.SeverityWarn, "WARN"},
	zerolog.ErrorLevel: {otelog.SeverityError, "ERROR"},
	zerolog.FatalLevel: {otelog.SeverityFatal, "FATAL"},
	zerolog.PanicLevel: {otelog.SeverityFatal4, "FATAL"},
}

// fields zerolog writes itself; they map onto the record, not its attributes
var reservedFields = map[string]struct{}{
	zerolog.TimestampFieldName: {},
	zerolog.LevelFieldName:     {},
	zerolog.MessageFieldName:   {},
}

// OTelLogHook mirrors every zerolog event to the OTel log pipeline. Stdout
// output is unaffected.
type OTelLogHook struct {
	logger otelog.Logger
}

func NewOTelLogHook(cfg *Config) *OTelLogHook {
	return &OTelLogHook{
		logger: global.GetLoggerProvider().Logger(cfg.Name, otelog.WithInstrumentationVersion(cfg.Version)),
	}
}

func (h *OTelLogHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	fields, ok := eventFields(e)
	if !ok {
		fields = map[string]any{}
	}

	sev, found := severities[level]
	if !found {
		sev = severities[zerolog.InfoLevel]
	}

	var rec otelog.Record

	rec.SetTimestamp(timestampOf(fields))
	rec.SetObservedTimestamp(time.Now())
	rec.SetSeverity(sev.level)
	rec.SetSeverityText(sev.text)
	rec.SetBody(otelog.StringValue(msg))
	rec.AddAttributes(attributesOf(fields)...)

	h.logger.Emit(e.GetCtx(), rec)
}

// eventFields decodes the fields already written to the event. zerolog keeps
// them in an unexported buffer that is only closed when the event is sent.
func eventFields(e *zerolog.Event) (map[string]any, bool) {
	if e == nil {
		return nil, false
	}

	buf := reflect.ValueOf(e).Elem().FieldByName("buf")
	if !buf.IsValid() || buf.Kind() != reflect.Slice || buf.Type().Elem().Kind() != reflect.Uint8 {
		return nil, false
	}

	data := append([]byte(nil), buf.Bytes()...)
	if len(data) == 0 {
		return nil, false
	}

	if data[len(data)-1] != '}' {
		data = append(data, '}')
	}

	var fields map[string]any

	err := json.Unmarshal(data, &fields)
	if err != nil {
		return nil, false
	}

	return fields, true
}

func attributesOf(fields map[string]any) []otelog.KeyValue {
	kvs := make([]otelog.KeyValue, 0, len(fields))

	for k, v := range fields {
		if _, reserved := reservedFields[k]; reserved {
			continue
		}

		switch x := v.(type) {
		case string:
			kvs = append(kvs, otelog.String(k, x))
		case bool:
			kvs = append(kvs, otelog.Bool(k, x))
		case float64:
			if x == float64(int64(x)) {
				kvs = append(kvs, otelog.Int64(k, int64(x)))
			} else {
				kvs = append(kvs, otelog.Float64(k, x))
			}
		default:
			kvs = append(kvs, otelog.String(k, fmt.Sprintf("%v", x)))
		}
	}

	return kvs
}

func timestampOf(fields map[string]any) time.Time {
	s, ok := fields[zerolog.TimestampFieldName].(string)
	if !ok {
		return time.Now()
	}

	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Now()
	}

	return ts
}
