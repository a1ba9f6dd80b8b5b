// SPDX-License-Identifier: MPL-2.0

// Package session keeps the runner's named sessions: their environment,
// metadata and project, a per-session variable store with origin and spec
// metadata, most-recent tracking, delete hooks and change notifications.
//
// Sessions are copied out of the store; callers never share mutable state
// with it.
package session
