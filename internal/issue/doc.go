// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// It defines error types that carry remediation steps, a catalog of
// Markdown-formatted guidance rendered with glamour, and the translation of
// runner RPC status errors into both.
package issue
