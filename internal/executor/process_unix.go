// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package executor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"github.com/runnerd/runnerd/pkg/types"
)

// setProcessGroup puts a piped child into its own process group so that
// stop signals reach everything it spawns. PTY children get a new session
// from pty.Start instead.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup signals the process group led by pid, falling back to the
// process itself when the group is gone.
func signalGroup(pid int, sig StopSignal) error {
	signo := syscall.SIGINT
	if sig == StopKill {
		signo = syscall.SIGKILL
	}
	err := syscall.Kill(-pid, signo)
	if errors.Is(err, syscall.ESRCH) {
		err = syscall.Kill(pid, signo)
	}
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// exitCodeOf maps a finished process to its exit code; signals map to
// 128+signo.
func exitCodeOf(ps *os.ProcessState) types.ExitCode {
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return types.FromSignal(int(ws.Signal()))
	}
	return types.ExitCode(ps.ExitCode())
}

// isPTYClosed reports the read error Linux returns once the PTY slave side
// has been closed.
func isPTYClosed(err error) bool {
	return errors.Is(err, syscall.EIO)
}
