// SPDX-License-Identifier: MPL-2.0

package service

import (
	"math"
	"time"

	"github.com/runnerd/runnerd/internal/executor"
	"github.com/runnerd/runnerd/internal/monitor"
	"github.com/runnerd/runnerd/internal/resolver"
	"github.com/runnerd/runnerd/internal/session"
	"github.com/runnerd/runnerd/pkg/api/runnerv1"
)

func toSession(s session.Session) *runnerv1.Session {
	return &runnerv1.Session{
		ID:           s.ID,
		Env:          s.Env,
		Metadata:     s.Metadata,
		Project:      toProject(s.Project),
		EnvStoreType: toStoreType(s.StoreType),
	}
}

func toProject(p *session.Project) *runnerv1.Project {
	if p == nil {
		return nil
	}
	return &runnerv1.Project{Root: p.Root, EnvLoadOrder: p.EnvLoadOrder}
}

func fromProject(p *runnerv1.Project) *session.Project {
	if p == nil {
		return nil
	}
	return &session.Project{Root: p.Root, EnvLoadOrder: p.EnvLoadOrder}
}

func toStoreType(t session.StoreType) runnerv1.SessionEnvStoreType {
	if t == session.StoreTypeOwl {
		return runnerv1.SessionEnvStoreTypeOwl
	}
	return runnerv1.SessionEnvStoreTypeUnspecified
}

func fromStoreType(t runnerv1.SessionEnvStoreType) session.StoreType {
	if t == runnerv1.SessionEnvStoreTypeOwl {
		return session.StoreTypeOwl
	}
	return session.StoreTypeDefault
}

func fromProgramConfig(c *runnerv1.ProgramConfig) executor.ProgramConfig {
	cfg := executor.ProgramConfig{
		ProgramName: c.ProgramName,
		Arguments:   c.Arguments,
		Directory:   c.Directory,
		Env:         c.Env,
		Interactive: c.Interactive,
		LanguageID:  c.LanguageID,
		KnownName:   c.KnownName,
		RunID:       c.RunID,
	}
	switch src := c.Source.(type) {
	case *runnerv1.CommandList:
		cfg.Source = executor.Commands(src.Items)
	case runnerv1.Script:
		cfg.Source = executor.Script(src)
	}
	return cfg
}

func fromWinsize(w *runnerv1.Winsize) *executor.Winsize {
	if w == nil {
		return nil
	}
	return &executor.Winsize{Rows: clamp16(w.Rows), Cols: clamp16(w.Cols), X: clamp16(w.X), Y: clamp16(w.Y)}
}

func clamp16(v uint32) uint16 {
	return uint16(min(v, math.MaxUint16))
}

func fromStop(s runnerv1.ExecuteStop) executor.StopSignal {
	switch s {
	case runnerv1.ExecuteStopInterrupt:
		return executor.StopInterrupt
	case runnerv1.ExecuteStopKill:
		return executor.StopKill
	default:
		return executor.StopNone
	}
}

func toExecuteState(s executor.State) runnerv1.ExecuteState {
	switch s {
	case executor.StateExited:
		return runnerv1.ExecuteStateExited
	case executor.StateKilled:
		return runnerv1.ExecuteStateKilled
	case executor.StateInterrupted:
		return runnerv1.ExecuteStateInterrupted
	case executor.StateFailed:
		return runnerv1.ExecuteStateFailed
	default:
		return runnerv1.ExecuteStateUnspecified
	}
}

// terminalResponse is the last frame of an execution.
func terminalResponse(res executor.Result) *runnerv1.ExecuteResponse {
	resp := &runnerv1.ExecuteResponse{
		MimeType: res.MimeType,
		State:    toExecuteState(res.State),
	}
	if res.ExitCode != nil {
		code := res.ExitCode.Uint32()
		resp.ExitCode = &code
	}
	if res.Pid > 0 {
		pid := uint32(res.Pid)
		resp.Pid = &pid
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	return resp
}

func fromSource(src runnerv1.Source) resolver.Source {
	switch s := src.(type) {
	case *runnerv1.CommandList:
		return resolver.Commands(s.Items)
	case runnerv1.Script:
		return resolver.Script(s)
	default:
		return nil
	}
}

func toSource(src resolver.Source) runnerv1.Source {
	switch s := src.(type) {
	case resolver.Commands:
		return &runnerv1.CommandList{Items: []string(s)}
	case resolver.Script:
		return runnerv1.Script(s)
	default:
		return nil
	}
}

func fromMode(m runnerv1.ResolveProgramMode) resolver.Mode {
	switch m {
	case runnerv1.ResolveProgramModePromptAll:
		return resolver.ModePromptAll
	case runnerv1.ResolveProgramModeSkipAll:
		return resolver.ModeSkipAll
	default:
		return resolver.ModeAuto
	}
}

func toResolveStatus(s resolver.Status) runnerv1.ResolveProgramStatus {
	switch s {
	case resolver.StatusResolved:
		return runnerv1.ResolveProgramStatusResolved
	case resolver.StatusUnresolvedWithMessage:
		return runnerv1.ResolveProgramStatusUnresolvedWithMessage
	case resolver.StatusUnresolvedWithPlaceholder:
		return runnerv1.ResolveProgramStatusUnresolvedWithPlaceholder
	case resolver.StatusUnresolvedWithSecret:
		return runnerv1.ResolveProgramStatusUnresolvedWithSecret
	default:
		return runnerv1.ResolveProgramStatusUnspecified
	}
}

func toSnapshot(snap monitor.Snapshot) *runnerv1.Snapshot {
	out := &runnerv1.Snapshot{Envs: make([]*runnerv1.SnapshotEnv, 0, len(snap.Records))}
	for _, r := range snap.Records {
		env := &runnerv1.SnapshotEnv{
			Name:          r.Name,
			Spec:          r.Spec,
			Origin:        r.Origin,
			OriginalValue: r.OriginalValue,
			ResolvedValue: r.ResolvedValue,
			Status:        toSnapshotStatus(r.Status),
			CreateTime:    formatTime(r.CreateTime),
			UpdateTime:    formatTime(r.UpdateTime),
		}
		for _, e := range r.Errors {
			env.Errors = append(env.Errors, &runnerv1.SnapshotError{Code: e.Code, Message: e.Message})
		}
		out.Envs = append(out.Envs, env)
	}
	return out
}

func toSnapshotStatus(s monitor.Status) runnerv1.SnapshotStatus {
	switch s {
	case monitor.StatusLiteral:
		return runnerv1.SnapshotStatusLiteral
	case monitor.StatusHidden:
		return runnerv1.SnapshotStatusHidden
	case monitor.StatusMasked:
		return runnerv1.SnapshotStatusMasked
	default:
		return runnerv1.SnapshotStatusUnspecified
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
