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
	"fmt"
	"net/http"
	"strings"
)

// traceparentHeader is the W3C Trace Context header name.
const traceparentHeader = "traceparent"

// SpanContext is the identity of a span without the span itself, as
// carried across service boundaries.
type SpanContext struct {
	TraceID string
	SpanID  string
}

// valid reports whether both identifiers have the expected W3C shape.
func (sc SpanContext) valid() bool {
	return isHex(sc.TraceID, 32) && isHex(sc.SpanID, 16) &&
		sc.TraceID != strings.Repeat("0", 32) &&
		sc.SpanID != strings.Repeat("0", 16)
}

// Extract reads W3C trace context from incoming HTTP headers.
//
// Description:
//
//	Parses the traceparent header and, when valid, attaches the remote
//	span context to the returned context. The next StartSpan call on
//	that context links its span into the remote trace instead of
//	minting a new trace ID. A missing or malformed header returns the
//	original context unchanged; this is the common case for edge
//	services and is not an error.
//
// Inputs:
//
//	ctx - Base context to extend.
//	headers - Incoming request headers.
//
// Outputs:
//
//	context.Context - Context carrying the remote parent, or ctx as-is.
//
// Thread Safety: Safe for concurrent use.
func Extract(ctx context.Context, headers http.Header) context.Context {
	sc, ok := parseTraceparent(headers.Get(traceparentHeader))
	if !ok {
		return ctx
	}
	return context.WithValue(ctx, remoteCtxKey{}, sc)
}

// Inject writes the active span's identity into outgoing HTTP headers.
//
// No active span leaves the headers untouched.
func Inject(ctx context.Context, headers http.Header) {
	span := SpanFromContext(ctx)
	if span == nil {
		return
	}
	headers.Set(traceparentHeader,
		fmt.Sprintf("00-%s-%s-01", span.TraceID, span.SpanID))
}

// PropagateToRequest injects the active span into an outgoing request
// and returns the request bound to ctx.
func PropagateToRequest(ctx context.Context, req *http.Request) *http.Request {
	Inject(ctx, req.Header)
	return req.WithContext(ctx)
}

// remoteFromContext returns the extracted remote span context, if any.
func remoteFromContext(ctx context.Context) SpanContext {
	if ctx == nil {
		return SpanContext{}
	}
	sc, _ := ctx.Value(remoteCtxKey{}).(SpanContext)
	return sc
}

// parseTraceparent parses "00-<32 hex>-<16 hex>-<2 hex>".
//
// Only version 00 is recognized. All-zero trace or span IDs are
// invalid per the W3C spec.
func parseTraceparent(header string) (SpanContext, bool) {
	parts := strings.Split(strings.TrimSpace(header), "-")
	if len(parts) != 4 || parts[0] != "00" || len(parts[3]) != 2 {
		return SpanContext{}, false
	}
	sc := SpanContext{TraceID: strings.ToLower(parts[1]), SpanID: strings.ToLower(parts[2])}
	if !sc.valid() {
		return SpanContext{}, false
	}
	return sc, true
}

// isHex reports whether s is exactly n lowercase hex characters.
func isHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
