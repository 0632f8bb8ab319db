// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metrics

import (
	"runtime"
	"time"
)

// RegisterProcessMetrics registers the default process metric family.
//
// Description:
//
//	Uptime, heap allocation, and goroutine count as render-time
//	gauges. These are an independently-registered family layered on
//	the generic registry; nothing in the core treats them specially.
//
// Inputs:
//
//	r - Target registry.
//
// Outputs:
//
//	error - ErrDuplicateMetric when called twice on the same registry.
func RegisterProcessMetrics(r *Registry) error {
	start := time.Now()

	if err := r.RegisterGaugeFunc(
		"process_uptime_seconds",
		"Seconds since process start",
		func() float64 { return time.Since(start).Seconds() },
	); err != nil {
		return err
	}

	if err := r.RegisterGaugeFunc(
		"process_memory_alloc_bytes",
		"Bytes of allocated heap objects",
		func() float64 {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			return float64(ms.Alloc)
		},
	); err != nil {
		return err
	}

	return r.RegisterGaugeFunc(
		"process_goroutines",
		"Number of live goroutines",
		func() float64 { return float64(runtime.NumGoroutine()) },
	)
}
