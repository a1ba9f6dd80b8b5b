// SPDX-License-Identifier: MPL-2.0

// Package tracing wires OpenTelemetry tracing for the runner server. Spans are
// exported through the stdout exporter to stdout, stderr or a file; a disabled
// configuration yields a no-op provider so callers never branch on it.
package tracing
