// SPDX-License-Identifier: MPL-2.0

// Package monitor turns a session's variable store into redacted snapshots
// and streams a fresh snapshot after every change.
package monitor
