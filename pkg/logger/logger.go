// Package logger provides the structured logger shared by every component.
// It wraps logrus behind a small interface with typed field constructors so
// call sites never build logrus.Fields by hand.
package logger

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// CorrelationIDHeader is the HTTP header carrying the request correlation ID.
	CorrelationIDHeader = "X-Correlation-ID"
	// CorrelationIDFieldKey is the field key used for correlation ID in log entries
	CorrelationIDFieldKey = "correlation_id"
)

type contextKey string

const correlationIDContextKey contextKey = "correlation_id"

// LogField represents a structured log field with concrete types
type LogField struct {
	Key   string
	Value string
}

// Logger is the logging contract used across the service.
type Logger interface {
	Info(msg string, fields ...LogField)
	Error(msg string, fields ...LogField)
	Debug(msg string, fields ...LogField)
	Warn(msg string, fields ...LogField)
	WithFields(fields ...LogField) Logger
	WithCorrelationID(id string) Logger
}

// Config represents logger configuration
type Config struct {
	Level   Level
	Format  string
	Service string
	Output  io.Writer // defaults to os.Stdout
}

type logger struct {
	logrus *logrus.Logger
	fields []LogField
}

// NewLogger creates a new logger instance with the given configuration
func NewLogger(config Config) Logger {
	l := logrus.New()

	if config.Format == "text" {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}

	if config.Output != nil {
		l.SetOutput(config.Output)
	} else {
		l.SetOutput(os.Stdout)
	}

	l.SetLevel(config.Level.logrusLevel())

	var fields []LogField
	if config.Service != "" {
		fields = []LogField{{Key: "service", Value: config.Service}}
	}

	return &logger{logrus: l, fields: fields}
}

// NewNop returns a logger that discards everything. Handy in tests and CLI
// commands that print their own output.
func NewNop() Logger {
	return NewLogger(Config{Level: ErrorLevel, Output: io.Discard})
}

// WithFields returns a new logger with additional fields (immutable)
func (l *logger) WithFields(fields ...LogField) Logger {
	merged := make([]LogField, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &logger{logrus: l.logrus, fields: merged}
}

// WithCorrelationID returns a new logger with correlation ID field
func (l *logger) WithCorrelationID(id string) Logger {
	return l.WithFields(CorrelationIDField(id))
}

func (l *logger) Info(msg string, fields ...LogField) {
	l.log(logrus.InfoLevel, msg, fields...)
}

func (l *logger) Error(msg string, fields ...LogField) {
	l.log(logrus.ErrorLevel, msg, fields...)
}

func (l *logger) Debug(msg string, fields ...LogField) {
	l.log(logrus.DebugLevel, msg, fields...)
}

func (l *logger) Warn(msg string, fields ...LogField) {
	l.log(logrus.WarnLevel, msg, fields...)
}

func (l *logger) log(level logrus.Level, msg string, fields ...LogField) {
	if !l.logrus.IsLevelEnabled(level) {
		return
	}

	entryFields := make(logrus.Fields, len(l.fields)+len(fields))
	for _, f := range l.fields {
		entryFields[f.Key] = f.Value
	}
	for _, f := range fields {
		entryFields[f.Key] = f.Value
	}

	l.logrus.WithFields(entryFields).Log(level, msg)
}

// StringField returns a LogField for a string value.
func StringField(key, value string) LogField {
	return LogField{Key: key, Value: value}
}

// IntField returns a LogField for an integer value.
func IntField(key string, value int) LogField {
	return LogField{Key: key, Value: strconv.Itoa(value)}
}

// Int64Field returns a LogField for an int64 value.
func Int64Field(key string, value int64) LogField {
	return LogField{Key: key, Value: strconv.FormatInt(value, 10)}
}

// Float64Field returns a LogField for a float64 value.
func Float64Field(key string, value float64) LogField {
	return LogField{Key: key, Value: strconv.FormatFloat(value, 'f', -1, 64)}
}

// BoolField returns a LogField for a boolean value.
func BoolField(key string, value bool) LogField {
	return LogField{Key: key, Value: strconv.FormatBool(value)}
}

// Field creates a log field with automatic type conversion for less common types
func Field[T any](key string, value T) LogField {
	return LogField{Key: key, Value: convertValue(value)}
}

func convertValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case time.Duration:
		return v.String()
	case error:
		if v == nil {
			return "<nil>"
		}
		return v.Error()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// DurationField returns a LogField for a time.Duration value.
func DurationField(key string, value time.Duration) LogField {
	return LogField{Key: key, Value: value.String()}
}

// ErrorField returns a LogField for an error value.
func ErrorField(err error) LogField {
	if err == nil {
		return LogField{Key: "error", Value: "<nil>"}
	}
	return LogField{Key: "error", Value: err.Error()}
}

// CorrelationIDField returns a LogField for a correlation ID.
func CorrelationIDField(id string) LogField {
	return StringField(CorrelationIDFieldKey, id)
}

// ThreadIDField returns a LogField for a conversation thread ID.
func ThreadIDField(id string) LogField {
	return StringField("thread_id", id)
}

// SearchIDField returns a LogField for a search request ID.
func SearchIDField(id string) LogField {
	return StringField("search_id", id)
}

// QueryField returns a LogField for a user query. Long queries are truncated.
func QueryField(query string) LogField {
	const maxLen = 200
	if len(query) > maxLen {
		query = query[:maxLen] + "..."
	}
	return StringField("query", query)
}

// HTTPMethodField returns a LogField for an HTTP method.
func HTTPMethodField(method string) LogField {
	return StringField("http_method", method)
}

// HTTPPathField returns a LogField for an HTTP path.
func HTTPPathField(path string) LogField {
	return StringField("http_path", path)
}

// HTTPStatusField returns a LogField for an HTTP status code.
func HTTPStatusField(status int) LogField {
	return IntField("http_status", status)
}

// ClientIPField returns a LogField for a client IP address.
func ClientIPField(ip string) LogField {
	return StringField("client_ip", ip)
}

// WithCorrelationIDContext adds correlation ID to context
func WithCorrelationIDContext(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDContextKey, correlationID)
}

// GetCorrelationIDFromContext retrieves correlation ID from context
func GetCorrelationIDFromContext(ctx context.Context) string {
	if correlationID, ok := ctx.Value(correlationIDContextKey).(string); ok {
		return correlationID
	}
	return ""
}

// EnsureHTTPCorrelationID ensures HTTP request has a correlation ID, generating one if needed.
// Client supplied IDs are only honoured when they parse as UUIDs.
func EnsureHTTPCorrelationID(r *http.Request) (*http.Request, string) {
	correlationID := r.Header.Get(CorrelationIDHeader)
	if _, err := uuid.Parse(correlationID); correlationID == "" || err != nil {
		correlationID = uuid.New().String()
		r.Header.Set(CorrelationIDHeader, correlationID)
	}

	ctx := WithCorrelationIDContext(r.Context(), correlationID)
	return r.WithContext(ctx), correlationID
}

// FromContext returns baseLogger enriched with the correlation ID stored in ctx, if any.
func FromContext(ctx context.Context, baseLogger Logger) Logger {
	if correlationID := GetCorrelationIDFromContext(ctx); correlationID != "" {
		return baseLogger.WithCorrelationID(correlationID)
	}
	return baseLogger
}
