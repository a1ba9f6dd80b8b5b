// SPDX-License-Identifier: MPL-2.0

// Package service implements the runner gRPC service on top of the session
// store, the resolver, the executor and the env store monitor.
package service
