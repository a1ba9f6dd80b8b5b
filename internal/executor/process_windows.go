// SPDX-License-Identifier: MPL-2.0

//go:build windows

package executor

import (
	"os"
	"os/exec"

	"github.com/runnerd/runnerd/pkg/types"
)

func setProcessGroup(*exec.Cmd) {}

// signalGroup kills the process; Windows has no process-group SIGINT.
func signalGroup(pid int, _ StopSignal) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

func exitCodeOf(ps *os.ProcessState) types.ExitCode {
	return types.ExitCode(ps.ExitCode())
}

func isPTYClosed(error) bool { return false }
