package observability

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/Youmanvi/ticketreserve/internal/infrastructure/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const TraceIDKey = "trace_id"

type traceIDCtxKey struct{}

// LogSink persists structured log records next to the console output.
type LogSink interface {
	WriteLog(record *LogRecord) error
}

type Logger struct {
	*zerolog.Logger
	sink LogSink
}

// NewLogger creates a new structured logger based on configuration
func NewLogger(cfg *config.ObservabilityConfig) *Logger {
	return NewLoggerWithWriter(cfg, os.Stdout)
}

// NewLoggerWithWriter is NewLogger with an explicit output.
func NewLoggerWithWriter(cfg *config.ObservabilityConfig, out io.Writer) *Logger {
	output := out

	logLevel := parseLogLevel(cfg.LogLevel)
	zerolog.SetGlobalLevel(logLevel)

	if cfg.LogFormat == "text" {
		output = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(output).
		Level(logLevel).
		With().
		Timestamp().
		Logger()

	return &Logger{Logger: &logger}
}

// NewNopLogger discards everything. Used by tests.
func NewNopLogger() *Logger {
	logger := zerolog.Nop()
	return &Logger{Logger: &logger}
}

func (l *Logger) derive(zl zerolog.Logger) *Logger {
	return &Logger{Logger: &zl, sink: l.sink}
}

// WithSink returns a logger that also persists records written through
// WriteLogRecord.
func (l *Logger) WithSink(sink LogSink) *Logger {
	return &Logger{Logger: l.Logger, sink: sink}
}

// WriteLogRecord persists a record if a sink is configured. Sink failures are
// logged and otherwise ignored.
func (l *Logger) WriteLogRecord(record *LogRecord) {
	if l.sink == nil || record == nil {
		return
	}
	if err := l.sink.WriteLog(record); err != nil {
		l.Logger.Warn().Err(err).Msg("failed to persist log record")
	}
}

// WithTraceID returns a new logger with trace ID attached
func (l *Logger) WithTraceID(ctx context.Context, traceID string) *Logger {
	return l.derive(l.With().Str(TraceIDKey, traceID).Logger())
}

// WithOrderID returns a new logger with order ID
func (l *Logger) WithOrderID(orderID int64) *Logger {
	return l.derive(l.With().Int64("order_id", orderID).Logger())
}

// WithMemberID returns a new logger with member ID
func (l *Logger) WithMemberID(memberID int64) *Logger {
	return l.derive(l.With().Int64("member_id", memberID).Logger())
}

// WithActivityName returns a new logger with activity name
func (l *Logger) WithActivityName(activityName string) *Logger {
	return l.derive(l.With().Str("activity", activityName).Logger())
}

// WithError returns a new logger with error attached
func (l *Logger) WithError(err error) *Logger {
	return l.derive(l.With().Err(err).Logger())
}

// Info logs an info level message
func (l *Logger) Info(msg string) {
	l.Logger.Info().Msg(msg)
}

// Warn logs a warn level message
func (l *Logger) Warn(msg string) {
	l.Logger.Warn().Msg(msg)
}

// Error logs an error level message
func (l *Logger) Error(msg string, err error) {
	l.Logger.Error().Err(err).Msg(msg)
}

// Debug logs a debug level message
func (l *Logger) Debug(msg string) {
	l.Logger.Debug().Msg(msg)
}

// ContextWithTraceID stores a trace ID for downstream log correlation.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDCtxKey{}, traceID)
}

// TraceIDFromContext returns the active span's trace ID, then one stored by
// ContextWithTraceID, or "".
func TraceIDFromContext(ctx context.Context) string {
	if id := spanTraceID(ctx); id != "" {
		return id
	}
	if traceID, ok := ctx.Value(traceIDCtxKey{}).(string); ok {
		return traceID
	}
	return ""
}

// parseLogLevel converts string to zerolog level
func parseLogLevel(levelStr string) zerolog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// GetGlobalLogger returns the global logger
func GetGlobalLogger() *Logger {
	logger := log.Logger
	return &Logger{Logger: &logger}
}
