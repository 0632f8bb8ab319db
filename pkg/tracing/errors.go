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

import "errors"

var (
	// ErrExporterClosed is returned when spans are exported after Shutdown.
	ErrExporterClosed = errors.New("exporter closed")

	// ErrShutdownTimeout is returned when the export queue could not be
	// drained within the shutdown grace period.
	ErrShutdownTimeout = errors.New("shutdown grace period expired before export queue drained")

	// ErrNoDestination is returned when a collector exporter is built
	// without a destination URL.
	ErrNoDestination = errors.New("export destination must not be empty")
)
