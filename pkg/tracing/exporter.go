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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Exporter delivers batches of finished spans to their destination.
//
// Implementations must tolerate concurrent ExportSpans calls and must
// treat Shutdown as idempotent.
type Exporter interface {
	// ExportSpans delivers a batch. The batch is owned by the caller
	// and must not be retained after return.
	ExportSpans(ctx context.Context, spans []*Span) error

	// Shutdown releases exporter resources within the context's bound.
	Shutdown(ctx context.Context) error
}

// wireSpan is the JSON representation sent to the collector.
type wireSpan struct {
	TraceID      string         `json:"trace_id"`
	SpanID       string         `json:"span_id"`
	ParentSpanID string         `json:"parent_span_id,omitempty"`
	Name         string         `json:"name"`
	Service      string         `json:"service_name"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      time.Time      `json:"end_time"`
	DurationUS   int64          `json:"duration_us"`
	Status       Status         `json:"status"`
	StatusMsg    string         `json:"status_message,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
}

// toWire converts a finished span to its export shape.
func toWire(s *Span) wireSpan {
	return wireSpan{
		TraceID:      s.TraceID,
		SpanID:       s.SpanID,
		ParentSpanID: s.ParentSpanID,
		Name:         s.Name,
		Service:      s.ServiceName,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime(),
		DurationUS:   s.Duration().Microseconds(),
		Status:       s.Status(),
		StatusMsg:    s.StatusMessage(),
		Attributes:   s.Attributes(),
	}
}

// CollectorExporter posts finished spans to an external trace
// collector as JSON batches.
//
// Description:
//
//	Delivery is best-effort: a failed POST is reported to the caller
//	(the tracer's export loop logs and moves on) and the batch is not
//	retried. Request processing is never blocked or failed because of
//	collector trouble.
//
// Thread Safety: Safe for concurrent use.
type CollectorExporter struct {
	destination string
	client      *http.Client
}

// NewCollectorExporter creates an exporter targeting the given URL.
//
// Inputs:
//
//	destination - Collector endpoint, e.g. "http://collector:9411/api/v2/spans".
//
// Outputs:
//
//	*CollectorExporter - Ready for use.
//	error - ErrNoDestination when destination is empty.
func NewCollectorExporter(destination string) (*CollectorExporter, error) {
	if destination == "" {
		return nil, ErrNoDestination
	}
	return &CollectorExporter{
		destination: destination,
		client:      &http.Client{Timeout: 5 * time.Second},
	}, nil
}

// ExportSpans posts one JSON batch to the collector.
func (e *CollectorExporter) ExportSpans(ctx context.Context, spans []*Span) error {
	if len(spans) == 0 {
		return nil
	}

	wire := make([]wireSpan, len(spans))
	for i, s := range spans {
		wire[i] = toWire(s)
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("encode span batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.destination, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build export request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post span batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("collector rejected span batch: status %d", resp.StatusCode)
	}
	return nil
}

// Shutdown closes idle connections.
func (e *CollectorExporter) Shutdown(_ context.Context) error {
	e.client.CloseIdleConnections()
	return nil
}

var _ Exporter = (*CollectorExporter)(nil)

// logExporter logs and drops finished spans.
//
// Used when no export destination is configured, so spans are never
// buffered unboundedly.
type logExporter struct {
	log *slog.Logger
}

func newLogExporter(log *slog.Logger) *logExporter {
	return &logExporter{log: log}
}

// ExportSpans logs a one-line summary per span at debug level.
func (e *logExporter) ExportSpans(_ context.Context, spans []*Span) error {
	for _, s := range spans {
		e.log.Debug("span finished (no export destination configured)",
			slog.String("trace_id", s.TraceID),
			slog.String("span_id", s.SpanID),
			slog.String("name", s.Name),
			slog.String("status", string(s.Status())),
			slog.Duration("duration", s.Duration()))
	}
	return nil
}

// Shutdown is a no-op.
func (e *logExporter) Shutdown(_ context.Context) error { return nil }
