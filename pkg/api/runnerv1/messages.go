// SPDX-License-Identifier: MPL-2.0

package runnerv1

type (
	// Project points a session at a directory whose env files are loaded
	// in EnvLoadOrder, later files overriding earlier ones.
	Project struct {
		Root         string   `json:"root,omitempty"`
		EnvLoadOrder []string `json:"envLoadOrder,omitempty"`
	}

	// Session is the wire view of a server-side session.
	Session struct {
		ID           string              `json:"id"`
		Env          []string            `json:"env,omitempty"`
		Metadata     map[string]string   `json:"metadata,omitempty"`
		Project      *Project            `json:"project,omitempty"`
		EnvStoreType SessionEnvStoreType `json:"envStoreType,omitempty"`
	}

	CreateSessionRequest struct {
		Metadata     map[string]string   `json:"metadata,omitempty"`
		Env          []string            `json:"env,omitempty"`
		Project      *Project            `json:"project,omitempty"`
		EnvStoreType SessionEnvStoreType `json:"envStoreType,omitempty"`
	}

	CreateSessionResponse struct {
		Session *Session `json:"session"`
	}

	GetSessionRequest struct {
		ID string `json:"id"`
	}

	GetSessionResponse struct {
		Session *Session `json:"session"`
	}

	ListSessionsRequest struct{}

	ListSessionsResponse struct {
		Sessions []*Session `json:"sessions"`
	}

	// UpdateSessionRequest replaces the non-nil fields of a session. A nil
	// Metadata, Env or Project leaves the current value untouched; an empty
	// non-nil value clears it.
	UpdateSessionRequest struct {
		ID       string            `json:"id"`
		Metadata map[string]string `json:"metadata"`
		Env      []string          `json:"env"`
		Project  *Project          `json:"project"`
	}

	UpdateSessionResponse struct {
		Session *Session `json:"session"`
	}

	DeleteSessionRequest struct {
		ID string `json:"id"`
	}

	DeleteSessionResponse struct{}

	// Winsize is a terminal size for interactive executions.
	Winsize struct {
		Rows uint32 `json:"rows"`
		Cols uint32 `json:"cols"`
		X    uint32 `json:"x,omitempty"`
		Y    uint32 `json:"y,omitempty"`
	}

	// ProgramConfig describes the program an execution runs.
	ProgramConfig struct {
		ProgramName string   `json:"programName,omitempty"`
		Arguments   []string `json:"arguments,omitempty"`
		Directory   string   `json:"directory,omitempty"`
		Env         []string `json:"env,omitempty"`
		Source      Source   `json:"-"`
		Interactive bool     `json:"interactive,omitempty"`
		LanguageID  string   `json:"languageId,omitempty"`
		KnownName   string   `json:"knownName,omitempty"`
		RunID       string   `json:"runId,omitempty"`

		conflict bool
	}

	// ExecuteRequest is one client frame of the Execute stream. Config,
	// SessionID, SessionStrategy, Project and StoreStdoutInEnv are only
	// read from the first frame.
	ExecuteRequest struct {
		Config           *ProgramConfig  `json:"config,omitempty"`
		InputData        []byte          `json:"inputData,omitempty"`
		Stop             ExecuteStop     `json:"stop,omitempty"`
		Winsize          *Winsize        `json:"winsize,omitempty"`
		SessionID        string          `json:"sessionId,omitempty"`
		SessionStrategy  SessionStrategy `json:"sessionStrategy,omitempty"`
		Project          *Project        `json:"project,omitempty"`
		StoreStdoutInEnv bool            `json:"storeStdoutInEnv,omitempty"`
	}

	// ExecuteResponse is one server frame of the Execute stream. ExitCode is
	// set exactly once, on the terminal frame.
	ExecuteResponse struct {
		ExitCode   *uint32      `json:"exitCode,omitempty"`
		StdoutData []byte       `json:"stdoutData,omitempty"`
		StderrData []byte       `json:"stderrData,omitempty"`
		Pid        *uint32      `json:"pid,omitempty"`
		MimeType   string       `json:"mimeType,omitempty"`
		State      ExecuteState `json:"state,omitempty"`
		Error      string       `json:"error,omitempty"`
	}

	ResolveProgramRequest struct {
		Source          Source             `json:"-"`
		Mode            ResolveProgramMode `json:"mode,omitempty"`
		Env             []string           `json:"env,omitempty"`
		SessionID       string             `json:"sessionId,omitempty"`
		SessionStrategy SessionStrategy    `json:"sessionStrategy,omitempty"`
		Project         *Project           `json:"project,omitempty"`

		conflict bool
	}

	ResolveProgramResponse struct {
		Source Source       `json:"-"`
		Vars   []*VarResult `json:"vars"`
	}

	VarResult struct {
		Name          string               `json:"name"`
		OriginalValue string               `json:"originalValue,omitempty"`
		ResolvedValue string               `json:"resolvedValue,omitempty"`
		Status        ResolveProgramStatus `json:"status"`
	}

	MonitorEnvStoreRequest struct {
		Session *Session            `json:"session"`
		Type    MonitorEnvStoreType `json:"type,omitempty"`
	}

	MonitorEnvStoreResponse struct {
		Type     MonitorEnvStoreType `json:"type"`
		Snapshot *Snapshot           `json:"snapshot,omitempty"`
	}

	Snapshot struct {
		Envs []*SnapshotEnv `json:"envs"`
	}

	SnapshotEnv struct {
		Name          string           `json:"name"`
		Spec          string           `json:"spec,omitempty"`
		Origin        string           `json:"origin,omitempty"`
		OriginalValue string           `json:"originalValue,omitempty"`
		ResolvedValue string           `json:"resolvedValue,omitempty"`
		Status        SnapshotStatus   `json:"status"`
		CreateTime    string           `json:"createTime,omitempty"`
		UpdateTime    string           `json:"updateTime,omitempty"`
		Errors        []*SnapshotError `json:"errors,omitempty"`
	}

	SnapshotError struct {
		Code    uint32 `json:"code"`
		Message string `json:"message"`
	}
)

// SourceConflict reports whether the decoded request carried both a
// command list and a script.
func (r *ResolveProgramRequest) SourceConflict() bool { return r.conflict }
