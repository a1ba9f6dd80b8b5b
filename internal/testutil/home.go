// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"runtime"
	"testing"
)

// SetHomeDir points the platform's home and config directory variables at
// dir for the rest of the test. Tests calling it cannot run in parallel.
func SetHomeDir(t testing.TB, dir string) {
	t.Helper()

	switch runtime.GOOS {
	case "windows":
		t.Setenv("USERPROFILE", dir)
		t.Setenv("APPDATA", "")
	default:
		t.Setenv("HOME", dir)
		t.Setenv("XDG_CONFIG_HOME", "")
	}
}
