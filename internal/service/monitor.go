// SPDX-License-Identifier: MPL-2.0

package service

import (
	"fmt"

	"github.com/runnerd/runnerd/pkg/api/runnerv1"
)

// MonitorEnvStore implements runnerv1.RunnerServiceServer. The stream ends
// when the client cancels or the session is deleted.
func (s *Service) MonitorEnvStore(req *runnerv1.MonitorEnvStoreRequest, stream runnerv1.MonitorEnvStoreServer) error {
	if req.Session == nil || req.Session.ID == "" {
		return invalidArgument("session id is required")
	}
	switch req.Type {
	case runnerv1.MonitorEnvStoreTypeUnspecified, runnerv1.MonitorEnvStoreTypeSnapshot:
	default:
		return invalidArgument(fmt.Sprintf("unsupported monitor type %d", req.Type))
	}

	ctx := stream.Context()
	snapshots, err := s.monitor.Watch(ctx, req.Session.ID)
	if err != nil {
		return toStatus(err)
	}

	s.logger.Debug("monitor started", "session", req.Session.ID)
	for snap := range snapshots {
		err := stream.Send(&runnerv1.MonitorEnvStoreResponse{
			Type:     runnerv1.MonitorEnvStoreTypeSnapshot,
			Snapshot: toSnapshot(snap),
		})
		if err != nil {
			return err
		}
	}
	return toStatus(ctx.Err())
}
