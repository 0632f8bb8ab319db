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
	"strings"
	"sync"
	"sync/atomic"
)

// counterSeries is one accumulator per unique label combination.
//
// The value is a float64 stored as uint64 bits so additions can use a
// CAS loop instead of a lock.
type counterSeries struct {
	labelValues []string
	bits        atomic.Uint64
}

// add accumulates v into the series without locking.
func (s *counterSeries) add(v float64) {
	for {
		old := s.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + v)
		if s.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// value reads the current accumulated total.
func (s *counterSeries) value() float64 {
	return math.Float64frombits(s.bits.Load())
}

// Counter is a monotonically non-decreasing accumulator family.
//
// Every increment is durably reflected in the next render: additions
// are atomic with respect to concurrent callers and to rendering.
//
// Thread Safety: Safe for concurrent use.
type Counter struct {
	name      string
	help      string
	labelKeys []string

	mu     sync.RWMutex
	series map[string]*counterSeries
}

func newCounter(name, help string, labelKeys []string) *Counter {
	return &Counter{
		name:      name,
		help:      help,
		labelKeys: append([]string(nil), labelKeys...),
		series:    make(map[string]*counterSeries),
	}
}

// Inc adds one to the series identified by labelValues.
//
// labelValues must match the registered label keys positionally;
// otherwise ErrLabelMismatch is returned and nothing is recorded.
func (c *Counter) Inc(labelValues ...string) error {
	return c.Add(1, labelValues...)
}

// Add accumulates v into the series identified by labelValues.
//
// v must be non-negative; counters never decrease.
func (c *Counter) Add(v float64, labelValues ...string) error {
	if len(labelValues) != len(c.labelKeys) {
		return fmt.Errorf("%w: metric %q got %d values for %d keys",
			ErrLabelMismatch, c.name, len(labelValues), len(c.labelKeys))
	}
	if v < 0 {
		return fmt.Errorf("counter %q cannot decrease (add %v)", c.name, v)
	}
	c.lookup(labelValues).add(v)
	return nil
}

// Value returns the current total for one label combination. Intended
// for tests and introspection; scraping should use Registry.Render.
func (c *Counter) Value(labelValues ...string) (float64, error) {
	if len(labelValues) != len(c.labelKeys) {
		return 0, fmt.Errorf("%w: metric %q got %d values for %d keys",
			ErrLabelMismatch, c.name, len(labelValues), len(c.labelKeys))
	}
	key := strings.Join(labelValues, labelSep)
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.series[key]
	if !ok {
		return 0, nil
	}
	return s.value(), nil
}

// lookup returns the series for labelValues, creating it lazily.
func (c *Counter) lookup(labelValues []string) *counterSeries {
	key := strings.Join(labelValues, labelSep)

	c.mu.RLock()
	s, ok := c.series[key]
	c.mu.RUnlock()
	if ok {
		return s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok = c.series[key]; ok {
		return s
	}
	s = &counterSeries{labelValues: append([]string(nil), labelValues...)}
	c.series[key] = s
	return s
}

func (c *Counter) familyName() string { return c.name }

func (c *Counter) sameShape(kind string, labelKeys []string, buckets []float64) bool {
	return kind == "counter" && sameStrings(c.labelKeys, labelKeys) && len(buckets) == 0
}

func (c *Counter) render(w *expositionWriter) {
	w.header(c.name, c.help, "counter")

	c.mu.RLock()
	series := make([]*counterSeries, 0, len(c.series))
	for _, s := range c.series {
		series = append(series, s)
	}
	c.mu.RUnlock()

	sortSeries(series, func(s *counterSeries) []string { return s.labelValues })
	for _, s := range series {
		w.sample(c.name, "", c.labelKeys, s.labelValues, "", s.value())
	}
}
