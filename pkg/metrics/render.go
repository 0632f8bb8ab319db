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
	"bufio"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Render writes the full text exposition of every registered metric.
//
// Description:
//
//	Output is deterministic: families sorted by name, series sorted by
//	label values. Each family renders a "# HELP" line, a "# TYPE"
//	line, then one line per label combination with its current value;
//	histograms render one cumulative line per bucket bound plus _sum
//	and _count. The snapshot directly reflects current accumulator
//	state and never blocks concurrent writers.
//
// Inputs:
//
//	w - Destination, typically the scrape response body.
//
// Outputs:
//
//	error - Write failure from w.
//
// Thread Safety: Safe for concurrent use, including concurrently with
// Inc/Observe calls.
func (r *Registry) Render(w io.Writer) error {
	bw := bufio.NewWriter(w)
	ew := &expositionWriter{w: bw}
	for _, fam := range r.snapshot() {
		fam.render(ew)
	}
	return bw.Flush()
}

// RenderText renders the exposition into a string.
func (r *Registry) RenderText() string {
	var sb strings.Builder
	_ = r.Render(&sb)
	return sb.String()
}

// expositionWriter formats exposition lines.
type expositionWriter struct {
	w *bufio.Writer
}

// header writes the # HELP and # TYPE preamble of a family.
func (e *expositionWriter) header(name, help, kind string) {
	e.w.WriteString("# HELP ")
	e.w.WriteString(name)
	e.w.WriteByte(' ')
	e.w.WriteString(escapeHelp(help))
	e.w.WriteByte('\n')
	e.w.WriteString("# TYPE ")
	e.w.WriteString(name)
	e.w.WriteByte(' ')
	e.w.WriteString(kind)
	e.w.WriteByte('\n')
}

// sample writes one series line. suffix is "_bucket", "_sum", "_count"
// or empty; le is the bucket bound rendered into the label set when
// non-empty.
func (e *expositionWriter) sample(name, suffix string, labelKeys, labelValues []string, le string, value float64) {
	e.w.WriteString(name)
	e.w.WriteString(suffix)

	if len(labelKeys) > 0 || le != "" {
		e.w.WriteByte('{')
		first := true
		for i, k := range labelKeys {
			if !first {
				e.w.WriteByte(',')
			}
			first = false
			e.w.WriteString(k)
			e.w.WriteString(`="`)
			e.w.WriteString(escapeLabel(labelValues[i]))
			e.w.WriteByte('"')
		}
		if le != "" {
			if !first {
				e.w.WriteByte(',')
			}
			e.w.WriteString(`le="`)
			e.w.WriteString(le)
			e.w.WriteByte('"')
		}
		e.w.WriteByte('}')
	}

	e.w.WriteByte(' ')
	e.w.WriteString(formatFloat(value))
	e.w.WriteByte('\n')
}

// formatFloat renders values the way scrapers expect: integers
// without a decimal point, +Inf spelled exactly.
func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// escapeLabel escapes backslash, double quote, and newline in label
// values per the exposition format.
func escapeLabel(v string) string {
	if !strings.ContainsAny(v, "\\\"\n") {
		return v
	}
	var sb strings.Builder
	for _, c := range v {
		switch c {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		default:
			sb.WriteRune(c)
		}
	}
	return sb.String()
}

// escapeHelp escapes backslash and newline in help text.
func escapeHelp(v string) string {
	if !strings.ContainsAny(v, "\\\n") {
		return v
	}
	var sb strings.Builder
	for _, c := range v {
		switch c {
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		default:
			sb.WriteRune(c)
		}
	}
	return sb.String()
}

// sortSeries orders series deterministically by their label values.
func sortSeries[T any](series []T, values func(T) []string) {
	sort.Slice(series, func(i, j int) bool {
		a, b := values(series[i]), values(series[j])
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return len(a) < len(b)
	})
}
