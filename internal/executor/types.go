// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"errors"
	"fmt"
	"time"

	"github.com/runnerd/runnerd/internal/session"
	"github.com/runnerd/runnerd/pkg/types"
)

const (
	StatePending State = iota
	StateRunning
	StateExited
	StateKilled
	StateInterrupted
	StateFailed
)

const (
	StopNone StopSignal = iota
	StopInterrupt
	StopKill
)

const (
	defaultRows = 24
	defaultCols = 80
)

var (
	// ErrNotRunning is returned for input sent to an execution that is not running.
	ErrNotRunning = errors.New("execution is not running")

	// ErrInvalidProgram is returned when a program config cannot be built.
	ErrInvalidProgram = errors.New("invalid program")

	// ErrInvalidKnownName is the sentinel error wrapped by InvalidKnownNameError.
	ErrInvalidKnownName = errors.New("invalid known name")
)

type (
	// State is the lifecycle state of an execution.
	State int32

	// StopSignal is a client stop request.
	StopSignal int32

	// Source is a program source: Commands or Script.
	Source interface {
		isSource()
	}

	// Commands run one after another in a shell that stops at the first failure.
	Commands []string

	// Script is a program text handed to the interpreter.
	Script string

	// ProgramConfig describes what an execution runs.
	ProgramConfig struct {
		ProgramName string
		Arguments   []string
		Directory   string
		Env         []string
		Source      Source
		Interactive bool
		LanguageID  string
		KnownName   string
		RunID       string
	}

	// Winsize is a terminal size.
	Winsize struct {
		Rows, Cols, X, Y uint16
	}

	// Options are the per-execution inputs of Executor.Start.
	Options struct {
		SessionID        string
		Config           ProgramConfig
		Winsize          *Winsize
		StoreStdoutInEnv bool
	}

	// Frame is a chunk of output. MimeType is set on the first stdout frame.
	Frame struct {
		Stdout   []byte
		Stderr   []byte
		MimeType string
	}

	// Result is the terminal outcome of an execution. ExitCode is nil for
	// executions that never started.
	Result struct {
		State    State
		ExitCode *types.ExitCode
		Pid      int
		MimeType string
		Err      error
	}

	// Config holds executor-wide settings.
	Config struct {
		// DefaultShell runs programs with no program name and no language.
		// Empty picks bash, falling back to sh.
		DefaultShell string
		// GracePeriod is how long an interrupted process has before SIGKILL.
		GracePeriod time.Duration
		// MaxStoredStdout bounds the stdout tail stored in the session.
		MaxStoredStdout int
		// InheritHostEnv starts programs from the server's environment.
		InheritHostEnv bool
		// TempDir holds env dumps and interpreter scripts. Empty uses os.TempDir.
		TempDir string
	}

	// SessionEnv is the session store surface the executor needs.
	SessionEnv interface {
		Environ(id string) ([]string, error)
		SetEnv(id string, set []session.Assignment, unset []string) error
	}

	// InvalidKnownNameError is returned when a known name does not follow
	// the naming rule.
	InvalidKnownNameError struct {
		Value string
	}
)

func (Commands) isSource() {}

func (Script) isSource() {}

// DefaultConfig returns the executor defaults.
func DefaultConfig() Config {
	return Config{
		GracePeriod:     5 * time.Second,
		MaxStoredStdout: 64 << 10,
		InheritHostEnv:  true,
	}
}

// Error implements the error interface.
func (e *InvalidKnownNameError) Error() string {
	return fmt.Sprintf("invalid known name %q (use upper-case letters, digits and underscores, at least 3 characters, not only digits)", e.Value)
}

// Unwrap returns ErrInvalidKnownName so callers can use errors.Is for programmatic detection.
func (e *InvalidKnownNameError) Unwrap() error { return ErrInvalidKnownName }

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	case StateInterrupted:
		return "interrupted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// IsTerminal reports whether no further transitions can happen.
func (s State) IsTerminal() bool {
	return s >= StateExited
}

func (s StopSignal) String() string {
	switch s {
	case StopInterrupt:
		return "interrupt"
	case StopKill:
		return "kill"
	default:
		return "none"
	}
}
