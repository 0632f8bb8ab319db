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
	"fmt"
	"math"
	"sort"
	"sync"
)

// labelSep joins label values into a series key. 0xff cannot appear in
// valid UTF-8 label values at a position that would make two distinct
// value tuples collide.
const labelSep = "\xff"

// collector is the common behavior of a registered metric family.
type collector interface {
	// name returns the family name.
	familyName() string

	// sameShape reports whether a re-registration matches exactly.
	sameShape(kind string, labelKeys []string, buckets []float64) bool

	// render writes the family's exposition lines.
	render(w *expositionWriter)
}

// Registry owns all registered metric families.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	families map[string]collector
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{families: make(map[string]collector)}
}

// RegisterCounter registers a monotonically non-decreasing counter.
//
// Description:
//
//	Idempotent for identical registrations: the existing handle is
//	returned. A name collision with a different kind or label key set
//	fails with ErrDuplicateMetric.
//
// Inputs:
//
//	name - Metric name, e.g. "http_requests_total".
//	help - Help text rendered in the exposition output.
//	labelKeys - Fixed label key set; values vary per observation.
//
// Outputs:
//
//	*Counter - Handle for Inc/Add calls.
//	error - ErrInvalidName or ErrDuplicateMetric.
func (r *Registry) RegisterCounter(name, help string, labelKeys []string) (*Counter, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.families[name]; ok {
		if c, isCounter := existing.(*Counter); isCounter && existing.sameShape("counter", labelKeys, nil) {
			return c, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrDuplicateMetric, name)
	}

	c := newCounter(name, help, labelKeys)
	r.families[name] = c
	return c, nil
}

// RegisterHistogram registers a histogram with fixed bucket bounds.
//
// Description:
//
//	Bounds must be strictly increasing; a +Inf bucket is implicit and
//	must not be supplied. Bounds are copied, so the caller's slice may
//	be reused. Idempotent for identical registrations; any shape
//	difference (label keys or bounds) fails with ErrDuplicateMetric.
//
// Inputs:
//
//	name - Metric name, e.g. "http_request_duration_seconds".
//	help - Help text rendered in the exposition output.
//	labelKeys - Fixed label key set.
//	buckets - Upper bounds, strictly increasing, +Inf excluded.
//
// Outputs:
//
//	*Histogram - Handle for Observe calls.
//	error - ErrInvalidName, ErrInvalidBuckets, or ErrDuplicateMetric.
func (r *Registry) RegisterHistogram(name, help string, labelKeys []string, buckets []float64) (*Histogram, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if len(buckets) == 0 {
		return nil, ErrInvalidBuckets
	}
	for i, b := range buckets {
		// The +Inf bucket is implicit; an explicit one would render twice.
		if math.IsInf(b, 0) || math.IsNaN(b) {
			return nil, fmt.Errorf("%w: non-finite bound %v at index %d", ErrInvalidBuckets, b, i)
		}
		if i > 0 && b <= buckets[i-1] {
			return nil, fmt.Errorf("%w: bound %v at index %d", ErrInvalidBuckets, b, i)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.families[name]; ok {
		if h, isHist := existing.(*Histogram); isHist && existing.sameShape("histogram", labelKeys, buckets) {
			return h, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrDuplicateMetric, name)
	}

	h := newHistogram(name, help, labelKeys, buckets)
	r.families[name] = h
	return h, nil
}

// RegisterGaugeFunc registers a callback-backed gauge.
//
// Description:
//
//	The callback is invoked at render time, once per scrape. Gauge
//	funcs carry no labels; they exist for process-level state such as
//	uptime and memory, layered on the same registry as application
//	metrics without special-casing.
//
// Inputs:
//
//	name - Metric name, e.g. "process_uptime_seconds".
//	help - Help text rendered in the exposition output.
//	fn - Sampled at render time. Must be safe for concurrent calls.
//
// Outputs:
//
//	error - ErrInvalidName or ErrDuplicateMetric.
func (r *Registry) RegisterGaugeFunc(name, help string, fn func() float64) error {
	if !validName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if fn == nil {
		return fmt.Errorf("gauge func for %q must not be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.families[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateMetric, name)
	}
	r.families[name] = &gaugeFunc{name: name, help: help, fn: fn}
	return nil
}

// snapshot returns the registered families sorted by name.
func (r *Registry) snapshot() []collector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]collector, 0, len(r.families))
	for _, fam := range r.families {
		out = append(out, fam)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].familyName() < out[j].familyName() })
	return out
}

// validName checks the exposition-format identifier grammar:
// [a-zA-Z_:][a-zA-Z0-9_:]*
func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		letter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == ':'
		if !letter && (i == 0 || c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// sameStrings compares two label key slices element-wise.
func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sameFloats compares two bucket bound slices element-wise.
func sameFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
