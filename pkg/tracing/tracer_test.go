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
	"sync"
	"testing"
	"time"
)

// captureExporter records every exported span for inspection.
type captureExporter struct {
	mu    sync.Mutex
	spans []*Span
}

func (e *captureExporter) ExportSpans(_ context.Context, spans []*Span) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spans = append(e.spans, spans...)
	return nil
}

func (e *captureExporter) Shutdown(_ context.Context) error { return nil }

func (e *captureExporter) exported() []*Span {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Span, len(e.spans))
	copy(out, e.spans)
	return out
}

func newTestTracer(t *testing.T, exporter Exporter) *Tracer {
	t.Helper()
	tracer := NewTracer(Config{
		ServiceName:   "test-service",
		Exporter:      exporter,
		FlushInterval: 10 * time.Millisecond,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = tracer.Shutdown(ctx)
	})
	return tracer
}

func TestStartSpanRoot(t *testing.T) {
	tracer := newTestTracer(t, &captureExporter{})

	ctx, span := tracer.StartSpan(context.Background(), "root-op")
	if span == nil {
		t.Fatal("StartSpan returned nil span")
	}
	if len(span.TraceID) != 32 {
		t.Errorf("trace ID length = %d, want 32", len(span.TraceID))
	}
	if len(span.SpanID) != 16 {
		t.Errorf("span ID length = %d, want 16", len(span.SpanID))
	}
	if span.ParentSpanID != "" {
		t.Errorf("root span has parent %q, want none", span.ParentSpanID)
	}
	if span.ServiceName != "test-service" {
		t.Errorf("ServiceName = %q, want test-service", span.ServiceName)
	}
	if got := SpanFromContext(ctx); got != span {
		t.Error("returned context does not carry the new span")
	}
}

func TestStartSpanChildInheritsTrace(t *testing.T) {
	tracer := newTestTracer(t, &captureExporter{})

	ctx, parent := tracer.StartSpan(context.Background(), "parent")
	_, child := tracer.StartSpan(ctx, "child")

	if child.TraceID != parent.TraceID {
		t.Errorf("child trace ID %q != parent %q", child.TraceID, parent.TraceID)
	}
	if child.ParentSpanID != parent.SpanID {
		t.Errorf("child parent ID %q, want %q", child.ParentSpanID, parent.SpanID)
	}
	if child.SpanID == parent.SpanID {
		t.Error("child reused parent span ID")
	}
}

func TestParentRestoredAfterChild(t *testing.T) {
	tracer := newTestTracer(t, &captureExporter{})

	parentCtx, parent := tracer.StartSpan(context.Background(), "parent")
	childCtx, child := tracer.StartSpan(parentCtx, "child")
	child.End()

	// The parent context never stopped carrying the parent span.
	if got := SpanFromContext(parentCtx); got != parent {
		t.Error("parent context lost its span after child ended")
	}
	if got := SpanFromContext(childCtx); got != child {
		t.Error("child context should still carry the child span")
	}
}

func TestEndIdempotent(t *testing.T) {
	exporter := &captureExporter{}
	tracer := newTestTracer(t, exporter)

	_, span := tracer.StartSpan(context.Background(), "once")
	span.End()
	first := span.EndTime()
	span.End()
	span.End()

	if span.EndTime() != first {
		t.Error("second End changed the end timestamp")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tracer.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got := len(exporter.exported()); got != 1 {
		t.Errorf("exported %d spans, want exactly 1", got)
	}
}

func TestEndDefaultsStatusOK(t *testing.T) {
	tracer := newTestTracer(t, &captureExporter{})

	_, span := tracer.StartSpan(context.Background(), "op")
	if span.Status() != StatusUnset {
		t.Fatalf("new span status = %v, want unset", span.Status())
	}
	span.End()
	if span.Status() != StatusOK {
		t.Errorf("ended span status = %v, want ok", span.Status())
	}
}

func TestZeroValueSpanStatusStaysInTaxonomy(t *testing.T) {
	// Spans built by literal construction never went through StartSpan,
	// so their status field is the zero value rather than StatusUnset.
	span := &Span{
		TraceID:   "4bf92f3577b34da6a3ce929d0e0e4736",
		SpanID:    "00f067aa0ba902b7",
		Name:      "op",
		StartTime: time.Now(),
	}
	if span.Status() != StatusUnset {
		t.Fatalf("fresh literal span status = %q, want unset", span.Status())
	}
	span.End()
	if span.Status() != StatusOK {
		t.Errorf("ended literal span status = %q, want ok", span.Status())
	}
}

func TestSetStatusErrorSurvivesEnd(t *testing.T) {
	tracer := newTestTracer(t, &captureExporter{})

	_, span := tracer.StartSpan(context.Background(), "op")
	span.SetStatus(StatusError, "boom")
	span.End()

	if span.Status() != StatusError {
		t.Errorf("status = %v, want error", span.Status())
	}
	if span.StatusMessage() != "boom" {
		t.Errorf("status message = %q, want boom", span.StatusMessage())
	}
}

func TestAttributesAfterEndIgnored(t *testing.T) {
	tracer := newTestTracer(t, &captureExporter{})

	_, span := tracer.StartSpan(context.Background(), "op")
	span.SetAttribute("before", 1)
	span.End()
	span.SetAttribute("after", 2)

	attrs := span.Attributes()
	if _, ok := attrs["before"]; !ok {
		t.Error("attribute set before End missing")
	}
	if _, ok := attrs["after"]; ok {
		t.Error("attribute set after End should be dropped")
	}
}

func TestConcurrentSpansIsolated(t *testing.T) {
	tracer := newTestTracer(t, &captureExporter{})

	const workers = 32
	traceIDs := make([]string, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, root := tracer.StartSpan(context.Background(), "request")
			_, child := tracer.StartSpan(ctx, "inner")
			if child.TraceID != root.TraceID {
				t.Errorf("worker %d: child escaped its trace", i)
			}
			child.End()
			root.End()
			traceIDs[i] = root.TraceID
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, workers)
	for _, id := range traceIDs {
		if seen[id] {
			t.Fatalf("trace ID %s used by two concurrent roots", id)
		}
		seen[id] = true
	}
}

func TestShutdownDrainsQueue(t *testing.T) {
	exporter := &captureExporter{}
	tracer := NewTracer(Config{
		ServiceName:   "test-service",
		Exporter:      exporter,
		FlushInterval: time.Hour, // force the drain path, not the ticker
	})

	const n = 100
	for i := 0; i < n; i++ {
		_, span := tracer.StartSpan(context.Background(), "op")
		span.End()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := tracer.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got := len(exporter.exported()); got != n {
		t.Errorf("exported %d spans after shutdown, want %d", got, n)
	}
}

func TestQueueOverflowDropsAndCounts(t *testing.T) {
	block := make(chan struct{})
	exporter := &blockingExporter{release: block}
	tracer := NewTracer(Config{
		Exporter:      exporter,
		QueueSize:     4,
		BatchSize:     1,
		FlushInterval: time.Millisecond,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = tracer.Shutdown(ctx)
	}()
	defer close(block)

	// Fill the queue past capacity while the exporter is stuck.
	for i := 0; i < 64; i++ {
		_, span := tracer.StartSpan(context.Background(), "op")
		span.End()
	}

	if tracer.DroppedSpans() == 0 {
		t.Error("expected dropped spans once the queue overflowed")
	}
}

// blockingExporter holds every export until release is closed.
type blockingExporter struct {
	release chan struct{}
}

func (e *blockingExporter) ExportSpans(_ context.Context, _ []*Span) error {
	<-e.release
	return nil
}

func (e *blockingExporter) Shutdown(_ context.Context) error { return nil }

func TestSpanFromContextNil(t *testing.T) {
	if got := SpanFromContext(context.Background()); got != nil {
		t.Errorf("empty context yielded span %v", got)
	}
}

func TestDurationBeforeAndAfterEnd(t *testing.T) {
	tracer := newTestTracer(t, &captureExporter{})

	_, span := tracer.StartSpan(context.Background(), "op")
	if span.Duration() != 0 {
		t.Error("open span should report zero duration")
	}
	time.Sleep(5 * time.Millisecond)
	span.End()
	d := span.Duration()
	if d < 5*time.Millisecond {
		t.Errorf("duration = %v, want at least 5ms", d)
	}
	time.Sleep(5 * time.Millisecond)
	if span.Duration() != d {
		t.Error("duration kept growing after End")
	}
}

func TestRecordError(t *testing.T) {
	tracer := newTestTracer(t, &captureExporter{})

	_, span := tracer.StartSpan(context.Background(), "op")
	span.RecordError(context.DeadlineExceeded)
	span.End()

	if span.Status() != StatusError {
		t.Errorf("status after RecordError = %v, want error", span.Status())
	}
	attrs := span.Attributes()
	if attrs["error.message"] != context.DeadlineExceeded.Error() {
		t.Errorf("error.message = %v", attrs["error.message"])
	}
}
