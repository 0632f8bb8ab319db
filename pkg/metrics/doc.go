// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metrics implements the Beacon metric registry.
//
// The registry owns named counters and histograms, accumulates
// observations concurrently without lost updates, and renders every
// registered metric in the Prometheus text exposition format on
// demand. It is not a storage engine: no aggregation windows, no
// quantile estimation, no eviction.
//
// # Registration
//
// Metrics are registered once at process start. Registering the same
// name with an identical shape returns the existing handle, so
// packages can register defensively. Registering the same name with a
// different shape fails with ErrDuplicateMetric; treat that as fatal
// at startup, since it indicates a code mismatch that would silently
// produce wrong dashboards.
//
//	requests, err := registry.RegisterCounter(
//	    "http_requests_total",
//	    "Total HTTP requests",
//	    []string{"method", "route", "status_code"},
//	)
//
// # Observation
//
// Label keys are fixed at registration; callers supply values in the
// same order. A wrong number of values fails with ErrLabelMismatch,
// surfaced as an error rather than silently dropped, since mismatched
// labels would corrupt the series cardinality. Accumulators are
// created lazily on the first observation of a new label combination
// and live for the process lifetime; bounding label value domains is
// the caller's responsibility.
//
// # Rendering
//
// Render produces a deterministic snapshot: families sorted by name,
// series sorted by label values, histograms expanded into cumulative
// buckets plus _sum and _count. Rendering never blocks writers; the
// snapshot is consistent enough for scraping, not strictly
// linearized.
//
// # Thread Safety
//
// All operations are safe for concurrent use. Counter adds are
// lock-free; histogram observations take a per-series lock so bucket,
// sum, and count stay mutually consistent.
package metrics
