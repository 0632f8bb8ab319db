// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware instruments inbound HTTP requests.
//
// One middleware wraps every request: it opens a span, measures
// duration, classifies the outcome, updates the RED metrics, and
// emits one correlated log line. The terminal accounting fires
// exactly once on every exit path, including downstream panics.
package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/beacon/pkg/logging"
	"github.com/AleutianAI/beacon/pkg/metrics"
	"github.com/AleutianAI/beacon/pkg/tracing"
)

// UnmatchedRouteRaw configures Instrument to label unmatched routes
// with the raw request path instead of a fixed placeholder. Raw paths
// keep 404 dashboards readable but let arbitrary incoming paths mint
// permanent series; the fixed placeholder is the safe default.
const UnmatchedRouteRaw = ""

// defaultUnmatchedLabel is the route label for requests that matched
// no registered route.
const defaultUnmatchedLabel = "unmatched"

// durationBuckets are the upper bounds for request duration, in
// seconds, covering sub-millisecond cache hits through slow upstreams.
var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// requestLabelKeys is the label key set shared by all request metrics.
var requestLabelKeys = []string{"method", "route", "status_code"}

// RequestMetrics bundles the per-request metric handles.
//
// Thread Safety: Safe for concurrent use after creation.
type RequestMetrics struct {
	// Duration records request duration in seconds.
	Duration *metrics.Histogram

	// Requests counts all completed requests.
	Requests *metrics.Counter

	// Errors counts requests that completed with status >= 500.
	Errors *metrics.Counter
}

// NewRequestMetrics registers the request metric family.
//
// Description:
//
//	Registers http_request_duration_seconds, http_requests_total, and
//	http_errors_total, all labeled by method, route, and status_code.
//	Registration is idempotent for identical shapes; a shape conflict
//	returns an error and should abort startup.
//
// Inputs:
//
//	r - Target registry.
//
// Outputs:
//
//	*RequestMetrics - Handles for the middleware.
//	error - Registration failure; treat as fatal.
func NewRequestMetrics(r *metrics.Registry) (*RequestMetrics, error) {
	m := &RequestMetrics{}
	var err error

	m.Duration, err = r.RegisterHistogram(
		"http_request_duration_seconds",
		"HTTP request duration in seconds",
		requestLabelKeys,
		durationBuckets,
	)
	if err != nil {
		return nil, fmt.Errorf("register http_request_duration_seconds: %w", err)
	}

	m.Requests, err = r.RegisterCounter(
		"http_requests_total",
		"Total HTTP requests",
		requestLabelKeys,
	)
	if err != nil {
		return nil, fmt.Errorf("register http_requests_total: %w", err)
	}

	m.Errors, err = r.RegisterCounter(
		"http_errors_total",
		"Total HTTP requests completed with status >= 500",
		requestLabelKeys,
	)
	if err != nil {
		return nil, fmt.Errorf("register http_errors_total: %w", err)
	}

	return m, nil
}

// Option configures Instrument.
type Option func(*options)

type options struct {
	unmatchedLabel string
}

// WithUnmatchedRouteLabel sets the route label used for requests that
// matched no registered route. Pass UnmatchedRouteRaw to use the raw
// request path, accepting the cardinality cost.
func WithUnmatchedRouteLabel(label string) Option {
	return func(o *options) { o.unmatchedLabel = label }
}

// Instrument returns the gin middleware wrapping every request.
//
// Description:
//
//	Per request: opens a span named from the method and the matched
//	route pattern, executes the downstream chain, and on completion
//	observes duration, increments the request counter (and the error
//	counter for status >= 500), emits one correlated log line, and
//	ends the span. The terminal accounting runs in a defer so it fires
//	exactly once even when a handler panics or the client disconnects
//	mid-flight; panics are re-raised afterward so an outer recovery
//	middleware still owns the 500 response.
//
//	Trace context from an incoming W3C traceparent header is adopted,
//	linking the request span into the caller's trace.
//
//	Instrumentation failures (label mismatches, export trouble) are
//	logged and never fail the request being measured.
//
// Inputs:
//
//	tracer - Span source and export pipeline.
//	reqMetrics - Handles from NewRequestMetrics.
//	logger - Correlated logger for the terminal log line.
//	opts - Optional policy tweaks.
//
// Outputs:
//
//	gin.HandlerFunc - Register with engine.Use, inside any recovery
//	middleware.
//
// Thread Safety: Safe for concurrent use.
func Instrument(tracer *tracing.Tracer, reqMetrics *RequestMetrics, logger *logging.Logger, opts ...Option) gin.HandlerFunc {
	o := options{unmatchedLabel: defaultUnmatchedLabel}
	for _, opt := range opts {
		opt(&o)
	}

	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		route := routeLabel(c, o.unmatchedLabel)

		ctx := tracing.Extract(c.Request.Context(), c.Request.Header)
		ctx, span := tracer.StartSpan(ctx, method+" "+route,
			tracing.String("http.method", method),
			tracing.String("http.target", c.Request.URL.Path),
			tracing.String("net.peer.ip", c.ClientIP()),
		)
		c.Request = c.Request.WithContext(ctx)

		defer func() {
			panicked := recover()

			// Re-resolve the route: gin fills FullPath during dispatch,
			// so a route that was unknown on entry may be known now.
			route = routeLabel(c, o.unmatchedLabel)

			status := c.Writer.Status()
			if panicked != nil {
				status = 500
			}
			statusLabel := strconv.Itoa(status)
			elapsed := time.Since(start)

			span.Name = method + " " + route
			span.SetAttribute("http.status_code", status)

			if err := reqMetrics.Duration.Observe(elapsed.Seconds(), method, route, statusLabel); err != nil {
				logger.Error(ctx, "request duration observation failed", "error", err.Error())
			}
			if err := reqMetrics.Requests.Inc(method, route, statusLabel); err != nil {
				logger.Error(ctx, "request counter increment failed", "error", err.Error())
			}

			if status >= 500 {
				if err := reqMetrics.Errors.Inc(method, route, statusLabel); err != nil {
					logger.Error(ctx, "error counter increment failed", "error", err.Error())
				}
				span.SetStatus(tracing.StatusError, "server error")
				logger.Warn(ctx, "request failed",
					"method", method,
					"route", route,
					"status", status,
					"duration_ms", elapsed.Milliseconds(),
				)
			} else {
				span.SetStatus(tracing.StatusOK, "")
				logger.Info(ctx, "request completed",
					"method", method,
					"route", route,
					"status", status,
					"duration_ms", elapsed.Milliseconds(),
				)
			}

			// Log before End so the record sees the still-active span.
			span.End()

			if panicked != nil {
				panic(panicked)
			}
		}()

		c.Next()
	}
}

// routeLabel returns the matched route pattern, the configured
// unmatched label, or the raw path when raw labeling is selected.
// A request with no path at all is labeled "unknown".
func routeLabel(c *gin.Context, unmatchedLabel string) string {
	if full := c.FullPath(); full != "" {
		return full
	}
	if unmatchedLabel != UnmatchedRouteRaw {
		return unmatchedLabel
	}
	if c.Request.URL.Path != "" {
		return c.Request.URL.Path
	}
	return "unknown"
}
