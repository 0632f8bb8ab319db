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

import "errors"

var (
	// ErrDuplicateMetric means a name was registered twice with
	// different shapes (kind, label keys, or bucket bounds). This is a
	// programming error and should abort initialization.
	ErrDuplicateMetric = errors.New("metric name already registered with a different shape")

	// ErrLabelMismatch means an observation supplied the wrong number
	// of label values for the registered label keys. Surfaced loudly on
	// the observing path; must not crash the request being measured.
	ErrLabelMismatch = errors.New("label values do not match registered label keys")

	// ErrInvalidName means a metric name is empty or not a valid
	// exposition-format identifier.
	ErrInvalidName = errors.New("invalid metric name")

	// ErrInvalidBuckets means histogram bucket bounds are empty or not
	// strictly increasing.
	ErrInvalidBuckets = errors.New("histogram buckets must be non-empty and strictly increasing")
)
