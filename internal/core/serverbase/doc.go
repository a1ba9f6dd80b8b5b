// SPDX-License-Identifier: MPL-2.0

// Package serverbase provides the lifecycle state machine of long-running
// servers: atomic state reads, guarded transitions, tracked goroutines and
// an asynchronous error channel.
package serverbase
