// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/runnerd/runnerd/pkg/api/runnerv1"
	"github.com/runnerd/runnerd/pkg/types"
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitErrorFor turns the terminal frame of an execution into the error the
// exec command returns: nil on success, the remote exit code otherwise.
func exitErrorFor(last *runnerv1.ExecuteResponse) error {
	if last == nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("execution ended without a terminal frame")}
	}
	if last.State == runnerv1.ExecuteStateFailed {
		return &ExitError{Code: 1, Err: fmt.Errorf("program failed to run: %s", last.Error)}
	}
	if last.ExitCode == nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("execution %s without an exit code", last.State)}
	}

	code := types.ExitCode(*last.ExitCode)
	if code.IsSuccess() {
		return nil
	}
	return &ExitError{Code: code}
}
