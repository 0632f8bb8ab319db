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
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewCollectorExporterRequiresDestination(t *testing.T) {
	if _, err := NewCollectorExporter(""); !errors.Is(err, ErrNoDestination) {
		t.Errorf("err = %v, want ErrNoDestination", err)
	}
}

func TestCollectorExporterPostsBatch(t *testing.T) {
	var received []wireSpan
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Error(err)
		}
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal batch: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	exporter, err := NewCollectorExporter(server.URL)
	if err != nil {
		t.Fatal(err)
	}

	span := &Span{
		TraceID:     "4bf92f3577b34da6a3ce929d0e0e4736",
		SpanID:      "00f067aa0ba902b7",
		Name:        "op",
		ServiceName: "svc",
		StartTime:   time.Now().Add(-time.Second),
	}
	span.End()

	if err := exporter.ExportSpans(context.Background(), []*Span{span}); err != nil {
		t.Fatalf("ExportSpans: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("collector received %d spans, want 1", len(received))
	}
	got := received[0]
	if got.TraceID != span.TraceID || got.SpanID != span.SpanID {
		t.Errorf("wire identity %s/%s, want %s/%s", got.TraceID, got.SpanID, span.TraceID, span.SpanID)
	}
	if got.Status != StatusOK {
		t.Errorf("wire status = %q, want ok", got.Status)
	}
	if got.DurationUS <= 0 {
		t.Errorf("wire duration = %d, want positive", got.DurationUS)
	}
}

func TestCollectorExporterRejectedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "tea time", http.StatusTeapot)
	}))
	defer server.Close()

	exporter, err := NewCollectorExporter(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if err := exporter.ExportSpans(context.Background(), []*Span{{}}); err == nil {
		t.Error("expected an error for a rejected batch")
	}
}

func TestCollectorExporterEmptyBatchIsNoop(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	exporter, err := NewCollectorExporter(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if err := exporter.ExportSpans(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("empty batch hit the collector %d times", calls)
	}
}
