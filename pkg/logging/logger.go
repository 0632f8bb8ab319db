// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging provides trace-correlated structured logging for
// Beacon components.
//
// The logger wraps Go's standard library slog package and enriches
// every record with the identifiers of the active span, so an
// external log processor can join logs and traces on trace_id:
//
//	logger.Info(ctx, "request completed", "status", 200)
//	// {"time":"...","level":"INFO","msg":"request completed",
//	//  "service":"beacon","status":200,
//	//  "trace_id":"4bf9...","span_id":"00f0..."}
//
// Correlation is read-only and best-effort: when no span is active in
// the calling context (the common case outside traced requests), the
// record is emitted unchanged. Log calls never fail the operation
// they describe.
//
// # Log Levels
//
// Four levels are supported, matching slog conventions and ordered by
// severity: Debug < Info < Warn < Error. The core passes severity
// through; filtering beyond the minimum level belongs to the sink.
//
// # Destinations
//
//   - Default: stderr (text for humans, JSON with Config.JSON)
//   - Optional: file logging with automatic directory creation
//   - Optional: asynchronous export via the LogExporter interface
//
// # Thread Safety
//
// Logger is safe for concurrent use. The underlying slog.Logger is
// thread-safe and mutable state is protected by a mutex.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/beacon/pkg/tracing"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level represents log severity.
//
// Levels follow the slog convention: Debug < Info < Warn < Error.
// Setting a minimum level filters out all logs below it.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for normal operational messages.
	LevelInfo

	// LevelWarn is for potentially problematic situations the system
	// can continue through.
	LevelWarn

	// LevelError is for failed operations; the system continues.
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps "debug", "info", "warn", "error" to a Level.
//
// Matching is case-insensitive; "warning" is accepted as an alias.
// Unrecognized values fall back to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// toSlogLevel bridges Level to the standard library.
func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures Logger behavior.
//
// All fields have sensible defaults. A zero-value Config creates a
// logger that writes Info+ messages to stderr in text format.
type Config struct {
	// Level sets the minimum log level. Default: LevelInfo.
	Level Level

	// LogDir enables file logging to the specified directory.
	//
	// When set, logs are written to both stderr and a file named
	// "{Service}_{YYYY-MM-DD}.log" in JSON format. Supports ~ for
	// home directory expansion. Default: "" (disabled).
	LogDir string

	// Service is included in every record as the "service" attribute.
	// Default: "" (no service attribute).
	Service string

	// JSON switches stderr output to JSON. File logs are always JSON
	// regardless, as they are intended for machine processing.
	// Default: false.
	JSON bool

	// Quiet disables stderr output; logs go only to file and exporter.
	// Default: false.
	Quiet bool

	// Exporter optionally receives every record asynchronously, for
	// forwarding to external log systems. Export failures are silently
	// ignored to not disrupt normal logging. Default: nil.
	Exporter LogExporter
}

// =============================================================================
// Export Interface
// =============================================================================

// LogExporter receives emitted records for forwarding to an external
// system (object storage, Loki, an OTLP collector).
//
// Implementations should buffer internally, batch uploads, and drop
// rather than block under backpressure. Flush is called during
// graceful shutdown and should send all buffered entries; Close is
// called after Flush and releases resources.
type LogExporter interface {
	// Export sends one entry. Called asynchronously per record with a
	// short-deadline context; errors are not propagated.
	Export(ctx context.Context, entry LogEntry) error

	// Flush sends all buffered entries before returning.
	Flush(ctx context.Context) error

	// Close releases resources after Flush.
	Close() error
}

// LogEntry is one structured record as handed to a LogExporter.
type LogEntry struct {
	// Timestamp when the record was created.
	Timestamp time.Time

	// Level of the record.
	Level Level

	// Message is the primary log message.
	Message string

	// Service identifies the component (from Config.Service).
	Service string

	// TraceID correlates the record with a trace; empty when no span
	// was active at the call site.
	TraceID string

	// SpanID identifies the active span; empty when none was active.
	SpanID string

	// Attrs contains the remaining key-value metadata.
	Attrs map[string]any
}

// =============================================================================
// Logger
// =============================================================================

// Logger provides trace-correlated structured logging with
// multi-destination output.
//
// Every log method takes a context; when that context carries an
// active span, the emitted record includes trace_id and span_id read
// at the moment the call executes. Records are emitted synchronously
// to the sink and never buffered.
//
// Always call Close when file logging or an exporter is configured:
//
//	logger := logging.New(config)
//	defer logger.Close()
type Logger struct {
	slog     *slog.Logger
	config   Config
	file     *os.File
	exporter LogExporter
	mu       sync.Mutex
}

// New creates a Logger with the given configuration.
//
// Sets up all destinations: stderr (unless Quiet), file (if LogDir is
// set), exporter (if configured). The returned Logger must be closed
// with Close to release resources.
func New(config Config) *Logger {
	var handlers []slog.Handler

	opts := &slog.HandlerOptions{
		Level: config.Level.toSlogLevel(),
	}

	if !config.Quiet {
		var stderrHandler slog.Handler
		if config.JSON {
			stderrHandler = slog.NewJSONHandler(os.Stderr, opts)
		} else {
			stderrHandler = slog.NewTextHandler(os.Stderr, opts)
		}
		handlers = append(handlers, stderrHandler)
	}

	logger := &Logger{
		config:   config,
		exporter: config.Exporter,
	}

	if config.LogDir != "" {
		logDir := expandPath(config.LogDir)
		if err := os.MkdirAll(logDir, 0750); err == nil {
			serviceName := config.Service
			if serviceName == "" {
				serviceName = "beacon"
			}
			filename := fmt.Sprintf("%s_%s.log", serviceName, time.Now().Format("2006-01-02"))
			logPath := filepath.Join(logDir, filename)

			file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
			if err == nil {
				logger.file = file
				handlers = append(handlers, slog.NewJSONHandler(file, opts))
			}
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(os.Stderr, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{
			slog.String("service", config.Service),
		})
	}

	logger.slog = slog.New(handler)
	return logger
}

// Default returns a stderr-only logger at Info level for the
// "beacon" service.
func Default() *Logger {
	return New(Config{
		Level:   LevelInfo,
		Service: "beacon",
	})
}

// Debug logs a message at Debug level with trace correlation.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.log(ctx, LevelDebug, msg, args...)
}

// Info logs a message at Info level with trace correlation.
//
// Example:
//
//	logger.Info(ctx, "request completed",
//	    "route", route,
//	    "duration_ms", elapsed.Milliseconds(),
//	)
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.log(ctx, LevelInfo, msg, args...)
}

// Warn logs a message at Warn level with trace correlation.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.log(ctx, LevelWarn, msg, args...)
}

// Error logs a message at Error level with trace correlation.
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.log(ctx, LevelError, msg, args...)
}

// With returns a new Logger carrying additional bound attributes.
//
// The parent logger is not modified; file handle and exporter are
// shared.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:     l.slog.With(args...),
		config:   l.config,
		file:     l.file,
		exporter: l.exporter,
	}
}

// Slog returns the underlying slog.Logger for features this wrapper
// does not expose. Records logged through it skip trace correlation.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close flushes the exporter, then syncs and closes the log file.
//
// Returns the first error encountered.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error

	if l.exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.exporter.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush exporter: %w", err))
		}
		if err := l.exporter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close exporter: %w", err))
		}
	}

	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync log file: %w", err))
		}
		if err := l.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log file: %w", err))
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// log attaches span identifiers and writes to all destinations.
func (l *Logger) log(ctx context.Context, level Level, msg string, args ...any) {
	var traceID, spanID string
	if span := tracing.SpanFromContext(ctx); span != nil {
		traceID, spanID = span.TraceID, span.SpanID
		args = append(args, "trace_id", traceID, "span_id", spanID)
	}

	switch level {
	case LevelDebug:
		l.slog.Debug(msg, args...)
	case LevelInfo:
		l.slog.Info(msg, args...)
	case LevelWarn:
		l.slog.Warn(msg, args...)
	case LevelError:
		l.slog.Error(msg, args...)
	}

	if l.exporter != nil && level >= l.config.Level {
		entry := LogEntry{
			Timestamp: time.Now(),
			Level:     level,
			Message:   msg,
			Service:   l.config.Service,
			TraceID:   traceID,
			SpanID:    spanID,
			Attrs:     argsToMap(args),
		}
		// Async export so the log call never blocks on the exporter.
		go func() {
			exportCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = l.exporter.Export(exportCtx, entry)
		}()
	}
}

// =============================================================================
// Multi-Handler (Internal)
// =============================================================================

// multiHandler fans out records to multiple slog handlers, enabling
// simultaneous stderr and file output with different formats.
type multiHandler struct {
	handlers []slog.Handler
}

// Enabled returns true if any handler is enabled for the level.
func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle sends the record to all enabled handlers.
func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WithAttrs returns a new handler with additional attributes.
func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

// WithGroup returns a new handler with a group name.
func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// =============================================================================
// Helper Functions
// =============================================================================

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// argsToMap converts slog-style key-value args to a map for export.
func argsToMap(args []any) map[string]any {
	result := make(map[string]any)
	for i := 0; i < len(args)-1; i += 2 {
		if key, ok := args[i].(string); ok {
			result[key] = args[i+1]
		}
	}
	return result
}

// =============================================================================
// Built-in Exporters
// =============================================================================

// NopExporter discards all entries. Useful when export is disabled.
type NopExporter struct{}

// Export discards the entry.
func (e *NopExporter) Export(ctx context.Context, entry LogEntry) error { return nil }

// Flush is a no-op.
func (e *NopExporter) Flush(ctx context.Context) error { return nil }

// Close is a no-op.
func (e *NopExporter) Close() error { return nil }

var _ LogExporter = (*NopExporter)(nil)

// BufferedExporter collects entries in memory.
//
// Useful in tests to verify emitted records and their correlation:
//
//	exporter := logging.NewBufferedExporter()
//	logger := logging.New(logging.Config{Exporter: exporter, Quiet: true})
//
//	logger.Info(ctx, "test message", "key", "value")
//
//	entries := exporter.Entries()
type BufferedExporter struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewBufferedExporter creates an empty BufferedExporter.
func NewBufferedExporter() *BufferedExporter {
	return &BufferedExporter{
		entries: make([]LogEntry, 0, 100),
	}
}

// Export adds the entry to the buffer.
func (e *BufferedExporter) Export(ctx context.Context, entry LogEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, entry)
	return nil
}

// Flush is a no-op; entries are already in memory.
func (e *BufferedExporter) Flush(ctx context.Context) error { return nil }

// Close is a no-op.
func (e *BufferedExporter) Close() error { return nil }

// Entries returns a copy of all collected entries.
func (e *BufferedExporter) Entries() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]LogEntry, len(e.entries))
	copy(result, e.entries)
	return result
}

var _ LogExporter = (*BufferedExporter)(nil)
