// SPDX-License-Identifier: MPL-2.0

package service

import (
	"context"

	"github.com/runnerd/runnerd/internal/resolver"
	"github.com/runnerd/runnerd/pkg/api/runnerv1"
)

// ResolveProgram implements runnerv1.RunnerServiceServer. Request env takes
// precedence over the env of the selected session.
func (s *Service) ResolveProgram(ctx context.Context, req *runnerv1.ResolveProgramRequest) (*runnerv1.ResolveProgramResponse, error) {
	if req.SourceConflict() {
		return nil, invalidArgument("exactly one of commands or script must be set, got both")
	}
	if req.Source == nil {
		return nil, invalidArgument("exactly one of commands or script must be set, got neither")
	}

	sessionID, err := s.selectSession(ctx, req.SessionID, req.SessionStrategy, req.Project)
	if err != nil {
		return nil, toStatus(err)
	}
	sessionEnv, err := s.store.Environ(sessionID)
	if err != nil {
		return nil, toStatus(err)
	}

	res, err := s.resolver.Resolve(ctx, resolver.Request{
		Source: fromSource(req.Source),
		Mode:   fromMode(req.Mode),
		Env:    append(append([]string(nil), req.Env...), sessionEnv...),
	})
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &runnerv1.ResolveProgramResponse{
		Source: toSource(res.Source),
		Vars:   make([]*runnerv1.VarResult, 0, len(res.Vars)),
	}
	for _, v := range res.Vars {
		resp.Vars = append(resp.Vars, &runnerv1.VarResult{
			Name:          v.Name,
			OriginalValue: v.OriginalValue,
			ResolvedValue: v.ResolvedValue,
			Status:        toResolveStatus(v.Status),
		})
	}
	s.logger.Debug("program resolved", "session", sessionID, "vars", len(resp.Vars), "mode", req.Mode)
	return resp, nil
}
