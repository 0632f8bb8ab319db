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

// gaugeFunc is a callback-backed gauge sampled at render time.
//
// Mirrors the observable-gauge pattern: the current value is pulled
// once per scrape instead of being pushed on every change.
type gaugeFunc struct {
	name string
	help string
	fn   func() float64
}

func (g *gaugeFunc) familyName() string { return g.name }

func (g *gaugeFunc) sameShape(kind string, labelKeys []string, buckets []float64) bool {
	return kind == "gauge" && len(labelKeys) == 0 && len(buckets) == 0
}

func (g *gaugeFunc) render(w *expositionWriter) {
	w.header(g.name, g.help, "gauge")
	w.sample(g.name, "", nil, nil, "", g.fn())
}
