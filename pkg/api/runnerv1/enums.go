// SPDX-License-Identifier: MPL-2.0

package runnerv1

type (
	// SessionEnvStoreType selects the variable store backing a session.
	SessionEnvStoreType int32

	// SessionStrategy selects a session when a request carries no session id.
	SessionStrategy int32

	// ExecuteStop is a client stop request carried on an execute frame.
	ExecuteStop int32

	// ExecuteState is the terminal state reported on the last execute frame.
	ExecuteState int32

	// ResolveProgramMode controls how variable classification is forced.
	ResolveProgramMode int32

	// ResolveProgramStatus is the classification of a single variable.
	ResolveProgramStatus int32

	// MonitorEnvStoreType selects the kind of monitor stream.
	MonitorEnvStoreType int32

	// SnapshotStatus describes how a variable value is exposed in a snapshot.
	SnapshotStatus int32
)

const (
	SessionEnvStoreTypeUnspecified SessionEnvStoreType = iota
	SessionEnvStoreTypeOwl
)

const (
	SessionStrategyUnspecified SessionStrategy = iota
	SessionStrategyMostRecent
)

const (
	ExecuteStopUnspecified ExecuteStop = iota
	ExecuteStopInterrupt
	ExecuteStopKill
)

const (
	ExecuteStateUnspecified ExecuteState = iota
	ExecuteStateExited
	ExecuteStateKilled
	ExecuteStateInterrupted
	ExecuteStateFailed
)

const (
	ResolveProgramModeUnspecified ResolveProgramMode = iota
	ResolveProgramModePromptAll
	ResolveProgramModeSkipAll
)

const (
	ResolveProgramStatusUnspecified ResolveProgramStatus = iota
	ResolveProgramStatusResolved
	ResolveProgramStatusUnresolvedWithMessage
	ResolveProgramStatusUnresolvedWithPlaceholder
	ResolveProgramStatusUnresolvedWithSecret
)

const (
	MonitorEnvStoreTypeUnspecified MonitorEnvStoreType = iota
	MonitorEnvStoreTypeSnapshot
)

const (
	SnapshotStatusUnspecified SnapshotStatus = iota
	SnapshotStatusLiteral
	SnapshotStatusHidden
	SnapshotStatusMasked
)

func (t SessionEnvStoreType) String() string {
	switch t {
	case SessionEnvStoreTypeOwl:
		return "owl"
	default:
		return "unspecified"
	}
}

func (s SessionStrategy) String() string {
	switch s {
	case SessionStrategyMostRecent:
		return "most-recent"
	default:
		return "unspecified"
	}
}

func (s ExecuteStop) String() string {
	switch s {
	case ExecuteStopInterrupt:
		return "interrupt"
	case ExecuteStopKill:
		return "kill"
	default:
		return "unspecified"
	}
}

func (s ExecuteState) String() string {
	switch s {
	case ExecuteStateExited:
		return "exited"
	case ExecuteStateKilled:
		return "killed"
	case ExecuteStateInterrupted:
		return "interrupted"
	case ExecuteStateFailed:
		return "failed"
	default:
		return "unspecified"
	}
}

func (m ResolveProgramMode) String() string {
	switch m {
	case ResolveProgramModePromptAll:
		return "prompt-all"
	case ResolveProgramModeSkipAll:
		return "skip-all"
	default:
		return "unspecified"
	}
}

func (s ResolveProgramStatus) String() string {
	switch s {
	case ResolveProgramStatusResolved:
		return "resolved"
	case ResolveProgramStatusUnresolvedWithMessage:
		return "unresolved-with-message"
	case ResolveProgramStatusUnresolvedWithPlaceholder:
		return "unresolved-with-placeholder"
	case ResolveProgramStatusUnresolvedWithSecret:
		return "unresolved-with-secret"
	default:
		return "unspecified"
	}
}

func (t MonitorEnvStoreType) String() string {
	switch t {
	case MonitorEnvStoreTypeSnapshot:
		return "snapshot"
	default:
		return "unspecified"
	}
}

func (s SnapshotStatus) String() string {
	switch s {
	case SnapshotStatusLiteral:
		return "literal"
	case SnapshotStatusHidden:
		return "hidden"
	case SnapshotStatusMasked:
		return "masked"
	default:
		return "unspecified"
	}
}
