// SPDX-License-Identifier: MPL-2.0

package service

import (
	"context"

	"github.com/runnerd/runnerd/internal/session"
	"github.com/runnerd/runnerd/pkg/api/runnerv1"
)

// CreateSession implements runnerv1.RunnerServiceServer.
func (s *Service) CreateSession(ctx context.Context, req *runnerv1.CreateSessionRequest) (*runnerv1.CreateSessionResponse, error) {
	sess, err := s.store.Create(ctx, session.CreateOptions{
		Metadata:  req.Metadata,
		Env:       req.Env,
		Project:   fromProject(req.Project),
		StoreType: fromStoreType(req.EnvStoreType),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	s.watchProject(sess.ID, sess.Project)
	s.logger.Info("session created", "session", sess.ID, "store", sess.StoreType)
	return &runnerv1.CreateSessionResponse{Session: toSession(sess)}, nil
}

// GetSession implements runnerv1.RunnerServiceServer.
func (s *Service) GetSession(_ context.Context, req *runnerv1.GetSessionRequest) (*runnerv1.GetSessionResponse, error) {
	sess, err := s.store.Get(req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &runnerv1.GetSessionResponse{Session: toSession(sess)}, nil
}

// ListSessions implements runnerv1.RunnerServiceServer.
func (s *Service) ListSessions(context.Context, *runnerv1.ListSessionsRequest) (*runnerv1.ListSessionsResponse, error) {
	sessions := s.store.List()
	resp := &runnerv1.ListSessionsResponse{Sessions: make([]*runnerv1.Session, 0, len(sessions))}
	for _, sess := range sessions {
		resp.Sessions = append(resp.Sessions, toSession(sess))
	}
	return resp, nil
}

// UpdateSession implements runnerv1.RunnerServiceServer.
func (s *Service) UpdateSession(ctx context.Context, req *runnerv1.UpdateSessionRequest) (*runnerv1.UpdateSessionResponse, error) {
	sess, err := s.store.Update(ctx, req.ID, session.UpdateFields{
		Metadata: req.Metadata,
		Env:      req.Env,
		Project:  fromProject(req.Project),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	if req.Project != nil {
		s.watchProject(sess.ID, sess.Project)
	}
	return &runnerv1.UpdateSessionResponse{Session: toSession(sess)}, nil
}

// DeleteSession implements runnerv1.RunnerServiceServer. Executions still
// running in the session are killed.
func (s *Service) DeleteSession(ctx context.Context, req *runnerv1.DeleteSessionRequest) (*runnerv1.DeleteSessionResponse, error) {
	if err := s.store.Delete(ctx, req.ID); err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info("session deleted", "session", req.ID)
	return &runnerv1.DeleteSessionResponse{}, nil
}
