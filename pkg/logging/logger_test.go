// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/beacon/pkg/tracing"
)

// waitEntries polls the buffered exporter until it holds n entries.
func waitEntries(t *testing.T, exporter *BufferedExporter, n int) []LogEntry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if entries := exporter.Entries(); len(entries) >= n {
			return entries
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d entries, have %d", n, len(exporter.Entries()))
	return nil
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"nonsense", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), "ParseLevel(%q)", tt.input)
	}
}

func TestLogWithoutSpanHasNoCorrelation(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{Level: LevelDebug, Quiet: true, Exporter: exporter})
	defer logger.Close()

	logger.Info(context.Background(), "no span here", "key", "value")

	entries := waitEntries(t, exporter, 1)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].TraceID)
	assert.Empty(t, entries[0].SpanID)
	assert.Equal(t, "no span here", entries[0].Message)
	assert.Equal(t, "value", entries[0].Attrs["key"])
}

func TestLogWithActiveSpanCorrelates(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{Level: LevelDebug, Quiet: true, Exporter: exporter})
	defer logger.Close()

	tracer := tracing.NewTracer(tracing.Config{ServiceName: "test"})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = tracer.Shutdown(ctx)
	}()

	ctx, span := tracer.StartSpan(context.Background(), "op")
	logger.Info(ctx, "inside span")
	span.End()

	entries := waitEntries(t, exporter, 1)
	require.Len(t, entries, 1)
	assert.Equal(t, span.TraceID, entries[0].TraceID)
	assert.Equal(t, span.SpanID, entries[0].SpanID)
	assert.Equal(t, span.TraceID, entries[0].Attrs["trace_id"])
	assert.Equal(t, span.SpanID, entries[0].Attrs["span_id"])
}

func TestChildSpanCorrelatesToChild(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{Level: LevelDebug, Quiet: true, Exporter: exporter})
	defer logger.Close()

	tracer := tracing.NewTracer(tracing.Config{ServiceName: "test"})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = tracer.Shutdown(ctx)
	}()

	rootCtx, root := tracer.StartSpan(context.Background(), "root")
	childCtx, child := tracer.StartSpan(rootCtx, "child")

	logger.Info(childCtx, "from child")
	logger.Info(rootCtx, "from root")
	child.End()
	root.End()

	entries := waitEntries(t, exporter, 2)
	byMsg := make(map[string]LogEntry, len(entries))
	for _, e := range entries {
		byMsg[e.Message] = e
	}

	require.Contains(t, byMsg, "from child")
	require.Contains(t, byMsg, "from root")
	assert.Equal(t, child.SpanID, byMsg["from child"].SpanID)
	assert.Equal(t, root.SpanID, byMsg["from root"].SpanID)
	assert.Equal(t, root.TraceID, byMsg["from child"].TraceID, "child shares the root's trace")
}

func TestLevelFiltering(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{Level: LevelWarn, Quiet: true, Exporter: exporter})
	defer logger.Close()

	ctx := context.Background()
	logger.Debug(ctx, "too low")
	logger.Info(ctx, "still too low")
	logger.Warn(ctx, "passes")
	logger.Error(ctx, "also passes")

	entries := waitEntries(t, exporter, 2)
	// Allow the async exporter a beat for stragglers, then confirm the
	// filtered records never arrived.
	time.Sleep(20 * time.Millisecond)
	entries = exporter.Entries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.GreaterOrEqual(t, e.Level, LevelWarn)
	}
}

func TestWithPreservesExporter(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{Level: LevelDebug, Quiet: true, Exporter: exporter})
	defer logger.Close()

	bound := logger.With("component", "store")
	bound.Info(context.Background(), "bound message")

	entries := waitEntries(t, exporter, 1)
	assert.Equal(t, "bound message", entries[0].Message)
}

func TestNopExporter(t *testing.T) {
	var e NopExporter
	assert.NoError(t, e.Export(context.Background(), LogEntry{}))
	assert.NoError(t, e.Flush(context.Background()))
	assert.NoError(t, e.Close())
}
