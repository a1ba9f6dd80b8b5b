// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strconv"
)

// signalExitBase is the offset shells add to a terminating signal number.
const signalExitBase = 128

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode is a process exit status in the POSIX range 0-255.
	// Processes terminated by a signal report 128+signo.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode is outside 0-255.
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode so callers can use errors.Is for programmatic detection.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// FromSignal returns the exit code a shell reports for a process killed by signo.
func FromSignal(signo int) ExitCode {
	return ExitCode(signalExitBase + signo)
}

// Validate returns an error if the ExitCode is outside the valid range (0-255).
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == 0 }

// Signal returns the signal number encoded in the exit code, if any.
func (c ExitCode) Signal() (int, bool) {
	if c > signalExitBase && c <= 255 {
		return int(c) - signalExitBase, true
	}
	return 0, false
}

// Uint32 returns the exit code in its wire representation.
func (c ExitCode) Uint32() uint32 {
	if c < 0 {
		return 0
	}
	return uint32(c)
}

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }
