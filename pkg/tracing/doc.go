// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tracing implements the Beacon trace context manager.
//
// The package tracks the currently-active span per logical request,
// creates parent/child span relationships, and hands finished spans to
// an asynchronous export pipeline. It is deliberately small: no
// sampling strategies, no processor pipelines, no multi-exporter
// fan-out. The goal is correct context propagation under concurrency
// and a bounded, best-effort export path.
//
// # Context Propagation
//
// The active span is carried in a context.Context value, never in
// process-wide mutable state. Each call to Tracer.StartSpan returns a
// derived context holding the new span; the parent context still holds
// the parent span, so discarding the child context restores the parent
// as active. Concurrent branches of one request each derive their own
// context and therefore see the correct ancestor without interfering
// with sibling branches.
//
//	ctx, span := tracer.StartSpan(ctx, "handler.Process")
//	defer span.End()
//
//	// Concurrent sub-operations inherit the correct parent.
//	g, gctx := errgroup.WithContext(ctx)
//	g.Go(func() error {
//	    _, child := tracer.StartSpan(gctx, "handler.fanout")
//	    defer child.End()
//	    return nil
//	})
//
// # Span Lifecycle
//
// A span is exclusively owned by the execution context that created it
// until End is called. End is idempotent: the first call sets the end
// time and enqueues the span for export, later calls are no-ops. After
// End, ownership transfers to the export pipeline and the span must
// not be mutated.
//
// # Export
//
// Finished spans are enqueued on a bounded queue and exported in
// batches by a background goroutine. The caller never blocks on
// export; when the queue is full, spans are dropped and counted.
// Tracer.Shutdown flushes the queue within a bounded grace period.
// Export failures are logged and never propagate to request handling.
//
// # Cross-Service Propagation
//
// Extract and Inject carry trace identity across service boundaries
// using the W3C traceparent header.
//
// # Thread Safety
//
// Tracer is safe for concurrent use. Span attribute and status
// mutation is internally synchronized; End may be called from any
// goroutine, any number of times.
package tracing
