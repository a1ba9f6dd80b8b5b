// SPDX-License-Identifier: MPL-2.0

// Package server hosts the runner service on a gRPC listener. It owns the
// listener lifecycle, the gRPC health service and the logging and tracing
// interceptors.
package server
