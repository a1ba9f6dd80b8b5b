// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"errors"
	"fmt"
)

const (
	// StateCreated is a server whose Start has not been called.
	StateCreated State = iota
	// StateStarting is a server that is binding its listener.
	StateStarting
	// StateServing is a server accepting requests.
	StateServing
	// StateDraining is a server finishing in-flight requests before it stops.
	StateDraining
	// StateStopped is terminal.
	StateStopped
	// StateFailed is terminal: start failed or serving hit a fatal error.
	StateFailed
)

// ErrInvalidState is returned when a State value is not one of the defined lifecycle states.
var ErrInvalidState = errors.New("invalid state")

type (
	// State is a server lifecycle state.
	State int32

	// InvalidStateError is returned when a State value is not recognized.
	InvalidStateError struct {
		Value State
	}

	// TransitionError is returned when a lifecycle call is made in a state
	// that does not allow it.
	TransitionError struct {
		From State
		To   State
	}
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateServing:
		return "serving"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid server state %d", e.Value)
}

// Unwrap returns ErrInvalidState so callers can use errors.Is for programmatic detection.
func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move server from %s to %s", e.From, e.To)
}

// Validate returns nil for defined lifecycle states.
func (s State) Validate() error {
	switch s {
	case StateCreated, StateStarting, StateServing, StateDraining, StateStopped, StateFailed:
		return nil
	default:
		return &InvalidStateError{Value: s}
	}
}

// IsTerminal reports whether the server can no longer change state.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}
