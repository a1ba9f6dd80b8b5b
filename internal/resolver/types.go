// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"errors"
	"fmt"
)

const (
	// ModeAuto classifies variables with the configured policy.
	ModeAuto Mode = iota
	// ModePromptAll forces every variable to a non-resolved status.
	ModePromptAll
	// ModeSkipAll reports every variable as resolved.
	ModeSkipAll
)

const (
	StatusUnspecified Status = iota
	StatusResolved
	StatusUnresolvedWithMessage
	StatusUnresolvedWithPlaceholder
	StatusUnresolvedWithSecret
)

const (
	// KindDeclaration is export NAME=VALUE, declare -x NAME=VALUE or NAME=VALUE.
	KindDeclaration CandidateKind = iota
	// KindDefault is ${NAME:-default} or ${NAME-default}.
	KindDefault
	// KindRequired is ${NAME:?message} or ${NAME?message}.
	KindRequired
)

var (
	// ErrInvalidSource is returned when a request carries no program source.
	ErrInvalidSource = errors.New("program source must be a command list or a script")

	// ErrMalformedScript is the sentinel error wrapped by MalformedScriptError.
	ErrMalformedScript = errors.New("malformed script")
)

type (
	// Mode controls whether classification is forced.
	Mode int

	// Status is the classification of one variable.
	Status int

	// CandidateKind tells where in the program a candidate was found.
	CandidateKind int

	// Source is a program source: Commands or Script.
	Source interface {
		isSource()
	}

	// Commands is an ordered list of command lines, each parsed on its own.
	Commands []string

	// Script is a multi-line program text.
	Script string

	// Candidate is a variable found in a program, before classification.
	Candidate struct {
		Name string
		Kind CandidateKind
		// Value is the declared value or default. For non-literal values
		// it holds the printed shell word.
		Value string
		// Literal is false when Value needs the shell to evaluate it.
		Literal bool
		// Quoted is true when the value was written in quotes.
		Quoted bool
		// Message comes from a "# message:" annotation or ${NAME:?message}.
		Message string
		// Secret comes from a "# secret" annotation.
		Secret bool
	}

	// Request is the input of a resolution.
	Request struct {
		Source Source
		Mode   Mode
		// Env holds bound NAME=VALUE entries; the first entry for a name wins.
		Env []string
	}

	// VarResult is the classification of one variable. For
	// StatusUnresolvedWithMessage the OriginalValue carries the message.
	VarResult struct {
		Name          string
		OriginalValue string
		ResolvedValue string
		Status        Status
	}

	// Result is the outcome of a resolution: the rewritten program and one
	// entry per distinct variable in first-seen order.
	Result struct {
		Source Source
		Vars   []VarResult
	}

	// MalformedScriptError reports a program that does not parse.
	MalformedScriptError struct {
		// Item is the index of the failing command, or -1 for a script.
		Item int
		Err  error
	}
)

func (Commands) isSource() {}

func (Script) isSource() {}

// Error implements the error interface.
func (e *MalformedScriptError) Error() string {
	if e.Item >= 0 {
		return fmt.Sprintf("malformed command %d: %v", e.Item, e.Err)
	}
	return fmt.Sprintf("malformed script: %v", e.Err)
}

// Unwrap returns ErrMalformedScript so callers can use errors.Is for programmatic detection.
func (e *MalformedScriptError) Unwrap() error { return ErrMalformedScript }

// IsResolved reports whether the variable needs no further input.
func (s Status) IsResolved() bool { return s == StatusResolved }

func (s Status) String() string {
	switch s {
	case StatusResolved:
		return "resolved"
	case StatusUnresolvedWithMessage:
		return "unresolved-with-message"
	case StatusUnresolvedWithPlaceholder:
		return "unresolved-with-placeholder"
	case StatusUnresolvedWithSecret:
		return "unresolved-with-secret"
	default:
		return "unspecified"
	}
}

func (m Mode) String() string {
	switch m {
	case ModePromptAll:
		return "prompt-all"
	case ModeSkipAll:
		return "skip-all"
	default:
		return "auto"
	}
}
