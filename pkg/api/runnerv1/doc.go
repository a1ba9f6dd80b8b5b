// SPDX-License-Identifier: MPL-2.0

// Package runnerv1 defines the wire messages, gRPC service descriptor and
// client of the runner service. Messages are plain structs carried by a
// JSON codec registered under the "json" content-subtype.
package runnerv1
