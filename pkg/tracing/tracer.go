// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tracing

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ctxKey is the private context key type for the active span.
type ctxKey struct{}

// remoteCtxKey is the private context key type for a span context
// extracted from an incoming request (see propagation.go).
type remoteCtxKey struct{}

const (
	defaultQueueSize     = 2048
	defaultBatchSize     = 64
	defaultFlushInterval = 200 * time.Millisecond
)

// Config controls tracer behavior.
//
// All fields have sensible defaults; a zero-value Config produces a
// tracer that logs and drops finished spans.
type Config struct {
	// ServiceName is attached to every exported span's resource metadata.
	ServiceName string

	// Exporter receives batches of finished spans. When nil, finished
	// spans are logged at debug level and dropped.
	Exporter Exporter

	// QueueSize bounds the number of finished spans waiting for export.
	// Spans beyond the bound are dropped and counted. Default: 2048.
	QueueSize int

	// BatchSize is the maximum batch handed to the exporter. Default: 64.
	BatchSize int

	// FlushInterval is how long a partial batch may wait before being
	// exported. Default: 200ms.
	FlushInterval time.Duration

	// Logger receives export-failure and drop diagnostics.
	// Default: slog.Default().
	Logger *slog.Logger
}

// Tracer creates spans, tracks the active span per context, and runs
// the asynchronous export pipeline.
//
// Thread Safety: Safe for concurrent use.
type Tracer struct {
	serviceName string
	exporter    Exporter
	log         *slog.Logger

	queue chan *Span
	stop  chan struct{}
	done  chan struct{}

	batchSize     int
	flushInterval time.Duration

	dropped  atomic.Uint64
	stopOnce sync.Once
}

// NewTracer creates a tracer and starts its export worker.
//
// Description:
//
//	The worker collects finished spans into batches and hands them to
//	the configured exporter. Call Shutdown to flush and stop it.
//
// Inputs:
//
//	cfg - Tracer configuration. Zero value is valid.
//
// Outputs:
//
//	*Tracer - Ready for use.
//
// Example:
//
//	tracer := tracing.NewTracer(tracing.Config{
//	    ServiceName: "beacon",
//	    Exporter:    exporter,
//	})
//	defer tracer.Shutdown(context.Background())
func NewTracer(cfg Config) *Tracer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Exporter == nil {
		cfg.Exporter = newLogExporter(cfg.Logger)
	}

	t := &Tracer{
		serviceName:   cfg.ServiceName,
		exporter:      cfg.Exporter,
		log:           cfg.Logger,
		queue:         make(chan *Span, cfg.QueueSize),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
	}
	go t.exportLoop()
	return t
}

// StartSpan opens a span and establishes it as the active span of the
// returned context.
//
// Description:
//
//	The new span is a child of the context's active span. When no span
//	is active, an extracted remote span context (see Extract) is used
//	as the parent; failing that, the span becomes a root and mints a
//	fresh 128-bit trace ID.
//
//	The parent context still carries the parent span, so the previous
//	span becomes active again wherever the parent context is used.
//	Nesting behaves like a stack without any shared mutable cell.
//
// Inputs:
//
//	ctx - Parent context. Must not be nil; context.Background() is fine.
//	name - Span name, e.g. "GET /v1/items" or "store.Lookup".
//	attrs - Optional initial attributes.
//
// Outputs:
//
//	context.Context - Derived context carrying the new span.
//	*Span - The created span. Caller must call End exactly once per
//	        logical completion; extra calls are harmless.
//
// Thread Safety: Safe for concurrent use.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...Attribute) (context.Context, *Span) {
	span := &Span{
		SpanID:      newSpanID(),
		Name:        name,
		ServiceName: t.serviceName,
		StartTime:   time.Now(),
		status:      StatusUnset,
		tracer:      t,
	}

	if parent := SpanFromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		span.ParentSpanID = parent.SpanID
	} else if remote := remoteFromContext(ctx); remote.valid() {
		span.TraceID = remote.TraceID
		span.ParentSpanID = remote.SpanID
	} else {
		span.TraceID = newTraceID()
	}

	if len(attrs) > 0 {
		span.attributes = make(map[string]any, len(attrs))
		for _, a := range attrs {
			span.attributes[a.Key] = a.Value
		}
	}

	return context.WithValue(ctx, ctxKey{}, span), span
}

// EndSpan closes the span and enqueues it for export.
//
// Equivalent to span.End(); already-ended spans are a no-op.
func (t *Tracer) EndSpan(span *Span) {
	if span == nil {
		return
	}
	span.End()
}

// SpanFromContext returns the context's active span, or nil.
//
// A nil result is the common, non-error case for contexts outside any
// traced request; callers must treat it as such.
func SpanFromContext(ctx context.Context) *Span {
	if ctx == nil {
		return nil
	}
	span, _ := ctx.Value(ctxKey{}).(*Span)
	return span
}

// ContextWithSpan returns a context carrying span as the active span.
//
// StartSpan does this automatically; ContextWithSpan exists for tests
// and for re-binding a span to a detached context.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, ctxKey{}, span)
}

// DroppedSpans reports how many finished spans were discarded because
// the export queue was full.
func (t *Tracer) DroppedSpans() uint64 {
	return t.dropped.Load()
}

// Shutdown flushes the export queue and stops the export worker.
//
// Description:
//
//	Signals the worker to drain remaining spans and waits until the
//	drain completes or ctx expires, whichever comes first. Shutdown
//	failure is a non-fatal, logged condition; the process should
//	proceed with exit regardless.
//
// Inputs:
//
//	ctx - Bounds the grace period, e.g. context.WithTimeout(..., 5*time.Second).
//
// Outputs:
//
//	error - ErrShutdownTimeout if the queue did not drain in time,
//	        otherwise the exporter's shutdown error, if any.
func (t *Tracer) Shutdown(ctx context.Context) error {
	t.stopOnce.Do(func() { close(t.stop) })

	select {
	case <-t.done:
	case <-ctx.Done():
		return ErrShutdownTimeout
	}
	return t.exporter.Shutdown(ctx)
}

// enqueue hands a finished span to the export worker without blocking.
func (t *Tracer) enqueue(span *Span) {
	select {
	case t.queue <- span:
	default:
		if n := t.dropped.Add(1); n == 1 || n%1000 == 0 {
			t.log.Warn("trace export queue full, dropping spans",
				slog.Uint64("dropped_total", n))
		}
	}
}

// exportLoop batches finished spans and hands them to the exporter.
func (t *Tracer) exportLoop() {
	defer close(t.done)

	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	batch := make([]*Span, 0, t.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := t.exporter.ExportSpans(ctx, batch); err != nil {
			t.log.Error("trace export failed",
				slog.Int("spans", len(batch)),
				slog.String("error", err.Error()))
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case span := <-t.queue:
			batch = append(batch, span)
			if len(batch) >= t.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-t.stop:
			// Drain whatever is already queued, then exit.
			for {
				select {
				case span := <-t.queue:
					batch = append(batch, span)
					if len(batch) >= t.batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// newTraceID mints a 128-bit trace identifier as 32 hex characters.
func newTraceID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// newSpanID mints a 64-bit span identifier as 16 hex characters.
//
// UUIDv4 carries 122 random bits; the first 8 bytes are random enough
// that reuse within an export window is implausible.
func newSpanID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:8])
}
