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
	"sync"
	"sync/atomic"
	"time"
)

// Status describes the terminal outcome of a span.
type Status string

const (
	// StatusUnset means no outcome has been recorded yet.
	StatusUnset Status = "unset"

	// StatusOK marks the span's unit of work as successful.
	StatusOK Status = "ok"

	// StatusError marks the span's unit of work as failed.
	StatusError Status = "error"
)

// Attribute is a key-value pair attached to a span.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string-typed span attribute.
func String(k, v string) Attribute { return Attribute{Key: k, Value: v} }

// Int creates an int-typed span attribute.
func Int(k string, v int) Attribute { return Attribute{Key: k, Value: v} }

// Float64 creates a float64-typed span attribute.
func Float64(k string, v float64) Attribute { return Attribute{Key: k, Value: v} }

// Bool creates a bool-typed span attribute.
func Bool(k string, v bool) Attribute { return Attribute{Key: k, Value: v} }

// Span is a timed record of one unit of traced work.
//
// Description:
//
//	Every span belongs to a trace identified by TraceID (128-bit,
//	shared by all spans of one request tree) and is itself identified
//	by SpanID (64-bit, unique within the trace). ParentSpanID links a
//	span to its parent; it is empty for root spans.
//
//	Identifier fields are set at creation and never change, so reading
//	them requires no synchronization. Attributes and status are
//	guarded by a mutex. The end time is written exactly once.
//
// Thread Safety: Safe for concurrent use until End; must not be
// mutated after End returns.
type Span struct {
	// TraceID is the 32-hex-character trace identifier.
	TraceID string

	// SpanID is the 16-hex-character span identifier.
	SpanID string

	// ParentSpanID is the parent's span identifier, empty for roots.
	ParentSpanID string

	// Name describes the unit of work, e.g. "GET /v1/items".
	Name string

	// ServiceName is the resource tag attached at export time.
	ServiceName string

	// StartTime is when the unit of work began.
	StartTime time.Time

	mu         sync.Mutex
	endTime    time.Time
	status     Status
	statusMsg  string
	attributes map[string]any

	ended  atomic.Bool
	tracer *Tracer
}

// SetAttribute sets a single attribute on the span.
//
// Calls after End are ignored.
func (s *Span) SetAttribute(key string, value any) {
	if s.ended.Load() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attributes == nil {
		s.attributes = make(map[string]any)
	}
	s.attributes[key] = value
}

// SetStatus records the span outcome.
//
// Calls after End are ignored. An error status set before End is
// never downgraded by End's default-to-ok behavior.
func (s *Span) SetStatus(status Status, msg string) {
	if s.ended.Load() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.statusMsg = msg
}

// RecordError marks the span as failed and records the error message.
//
// Nil errors are ignored.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.SetStatus(StatusError, err.Error())
	s.SetAttribute("error.message", err.Error())
}

// Status returns the span's current status.
//
// A literal-constructed span whose status was never touched reports
// StatusUnset, keeping the zero value inside the status taxonomy.
func (s *Span) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == "" {
		return StatusUnset
	}
	return s.status
}

// StatusMessage returns the message recorded with the status.
func (s *Span) StatusMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusMsg
}

// EndTime returns the end timestamp, or the zero time while open.
func (s *Span) EndTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTime
}

// Ended reports whether End has been called.
func (s *Span) Ended() bool {
	return s.ended.Load()
}

// Duration returns end minus start, or zero while the span is open.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endTime.IsZero() {
		return 0
	}
	return s.endTime.Sub(s.StartTime)
}

// Attributes returns a copy of the span's attributes.
func (s *Span) Attributes() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.attributes))
	for k, v := range s.attributes {
		out[k] = v
	}
	return out
}

// End closes the span and enqueues it for export.
//
// Description:
//
//	The first call sets the end time, resolves an unset status to ok,
//	and hands the span to the tracer's export pipeline. Every later
//	call is a no-op: completion ordering across concurrent branches
//	must never crash or double-export.
//
// Thread Safety: Safe to call from any goroutine, any number of times.
func (s *Span) End() {
	if !s.ended.CompareAndSwap(false, true) {
		return
	}
	s.mu.Lock()
	s.endTime = time.Now()
	// The zero value counts as unset so literal-constructed spans
	// resolve the same way as tracer-created ones.
	if s.status == StatusUnset || s.status == "" {
		s.status = StatusOK
	}
	s.mu.Unlock()

	if s.tracer != nil {
		s.tracer.enqueue(s)
	}
}
