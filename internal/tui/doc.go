// SPDX-License-Identifier: MPL-2.0

// Package tui prompts users for values with charmbracelet/huh forms.
//
// Prompts fall back to huh's accessible mode, writing to stderr, when stdin
// is not a terminal so they survive command substitution.
package tui
