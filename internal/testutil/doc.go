// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by package tests: a manually
// advanced clock and home directory isolation.
package testutil
