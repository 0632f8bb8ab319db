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
	"sort"
	"strings"
	"sync"
)

// histogramSeries is one accumulator per unique label combination.
//
// A per-series mutex keeps bucket counts, sum, and count mutually
// consistent; contention is limited to observations on the exact same
// label combination.
type histogramSeries struct {
	labelValues []string

	mu      sync.Mutex
	buckets []uint64 // per-bound counts, non-cumulative
	sum     float64
	count   uint64
}

// observe records v into the series.
func (s *histogramSeries) observe(v float64, bounds []float64) {
	// First bucket whose upper bound contains v; len(bounds) means +Inf.
	idx := sort.Search(len(bounds), func(i int) bool { return v <= bounds[i] })

	s.mu.Lock()
	if idx < len(s.buckets) {
		s.buckets[idx]++
	}
	s.sum += v
	s.count++
	s.mu.Unlock()
}

// snapshot copies the accumulator state for rendering.
func (s *histogramSeries) snapshot() (buckets []uint64, sum float64, count uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buckets = append([]uint64(nil), s.buckets...)
	return buckets, s.sum, s.count
}

// Histogram records observations into fixed, predeclared bucket
// boundaries plus a running sum and count.
//
// Bounds are fixed at registration time and never change. An implicit
// +Inf bucket catches observations above the largest bound.
//
// Thread Safety: Safe for concurrent use.
type Histogram struct {
	name      string
	help      string
	labelKeys []string
	bounds    []float64

	mu     sync.RWMutex
	series map[string]*histogramSeries
}

func newHistogram(name, help string, labelKeys []string, bounds []float64) *Histogram {
	return &Histogram{
		name:      name,
		help:      help,
		labelKeys: append([]string(nil), labelKeys...),
		bounds:    append([]float64(nil), bounds...),
		series:    make(map[string]*histogramSeries),
	}
}

// Observe records v into the series identified by labelValues.
//
// labelValues must match the registered label keys positionally;
// otherwise ErrLabelMismatch is returned and nothing is recorded.
func (h *Histogram) Observe(v float64, labelValues ...string) error {
	if len(labelValues) != len(h.labelKeys) {
		return fmt.Errorf("%w: metric %q got %d values for %d keys",
			ErrLabelMismatch, h.name, len(labelValues), len(h.labelKeys))
	}
	h.lookup(labelValues).observe(v, h.bounds)
	return nil
}

// Sum returns the running sum for one label combination. Intended for
// tests and introspection.
func (h *Histogram) Sum(labelValues ...string) (float64, error) {
	s, err := h.peek(labelValues)
	if err != nil || s == nil {
		return 0, err
	}
	_, sum, _ := s.snapshot()
	return sum, nil
}

// Count returns the observation count for one label combination.
func (h *Histogram) Count(labelValues ...string) (uint64, error) {
	s, err := h.peek(labelValues)
	if err != nil || s == nil {
		return 0, err
	}
	_, _, count := s.snapshot()
	return count, nil
}

// peek returns the series without creating it.
func (h *Histogram) peek(labelValues []string) (*histogramSeries, error) {
	if len(labelValues) != len(h.labelKeys) {
		return nil, fmt.Errorf("%w: metric %q got %d values for %d keys",
			ErrLabelMismatch, h.name, len(labelValues), len(h.labelKeys))
	}
	key := strings.Join(labelValues, labelSep)
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.series[key], nil
}

// lookup returns the series for labelValues, creating it lazily.
func (h *Histogram) lookup(labelValues []string) *histogramSeries {
	key := strings.Join(labelValues, labelSep)

	h.mu.RLock()
	s, ok := h.series[key]
	h.mu.RUnlock()
	if ok {
		return s
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok = h.series[key]; ok {
		return s
	}
	s = &histogramSeries{
		labelValues: append([]string(nil), labelValues...),
		buckets:     make([]uint64, len(h.bounds)),
	}
	h.series[key] = s
	return s
}

func (h *Histogram) familyName() string { return h.name }

func (h *Histogram) sameShape(kind string, labelKeys []string, buckets []float64) bool {
	return kind == "histogram" && sameStrings(h.labelKeys, labelKeys) && sameFloats(h.bounds, buckets)
}

func (h *Histogram) render(w *expositionWriter) {
	w.header(h.name, h.help, "histogram")

	h.mu.RLock()
	series := make([]*histogramSeries, 0, len(h.series))
	for _, s := range h.series {
		series = append(series, s)
	}
	h.mu.RUnlock()

	sortSeries(series, func(s *histogramSeries) []string { return s.labelValues })
	for _, s := range series {
		buckets, sum, count := s.snapshot()

		cumulative := uint64(0)
		for i, bound := range h.bounds {
			cumulative += buckets[i]
			w.sample(h.name, "_bucket", h.labelKeys, s.labelValues,
				formatFloat(bound), float64(cumulative))
		}
		w.sample(h.name, "_bucket", h.labelKeys, s.labelValues, "+Inf", float64(count))
		w.sample(h.name, "_sum", h.labelKeys, s.labelValues, "", sum)
		w.sample(h.name, "_count", h.labelKeys, s.labelValues, "", float64(count))
	}
}
