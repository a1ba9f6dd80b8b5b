// SPDX-License-Identifier: MPL-2.0

//go:build windows

package cmd

import "context"

// watchResize is a no-op: Windows consoles have no resize signal.
func watchResize(context.Context, int, *execStream) {}
