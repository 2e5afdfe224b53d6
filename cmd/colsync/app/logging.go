package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/studykit/colsync/internal/config"
)

const (
	defaultLogMaxSizeMB  = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAgeDays = 28
)

// logLevel is the level chosen at startup, before any configuration is read
var logLevel = new(slog.LevelVar)

// ParseLogLevel maps a level name to a slog.Level. An empty name is info.
func ParseLogLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// traceHandler wraps an slog.Handler to automatically inject OpenTelemetry
// trace_id and span_id into every log record, enabling log-trace correlation.
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		r.AddAttrs(
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}

func newLogHandler(w io.Writer, format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return &traceHandler{Handler: slog.NewJSONHandler(w, opts)}
	}
	return &traceHandler{Handler: slog.NewTextHandler(w, opts)}
}

// SetupLogging installs the default logger
func SetupLogging(w io.Writer, format string, level slog.Level) {
	logLevel.Set(level)
	slog.SetDefault(slog.New(newLogHandler(w, format, logLevel)))
}

// configureLogging applies the logging section once the configuration is loaded.
// The --debug flag wins over the configured level.
func configureLogging(c config.LoggingConfig, debug bool) func() error {
	if c.Level != "" {
		if level, ok := ParseLogLevel(c.Level); ok {
			logLevel.Set(level)
		}
	}
	if debug {
		logLevel.Set(slog.LevelDebug)
	}

	var w io.Writer = os.Stderr
	closer := func() error { return nil }
	if c.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    orDefault(c.MaxSizeMB, defaultLogMaxSizeMB),
			MaxBackups: orDefault(c.MaxBackups, defaultLogMaxBackups),
			MaxAge:     orDefault(c.MaxAgeDays, defaultLogMaxAgeDays),
		}
		w, closer = rotator, rotator.Close
	}
	if c.File != "" || c.Format != "" {
		slog.SetDefault(slog.New(newLogHandler(w, c.Format, logLevel)))
	}
	return closer
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
