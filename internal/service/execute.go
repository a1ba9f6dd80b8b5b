// SPDX-License-Identifier: MPL-2.0

package service

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/runnerd/runnerd/internal/executor"
	"github.com/runnerd/runnerd/pkg/api/runnerv1"
)

// Execute implements runnerv1.RunnerServiceServer.
//
// The first client frame carries the program config and session selection.
// The first server frame carries the pid; output frames follow; the last
// frame carries the exit code and terminal state. Later client frames send
// input, resize the terminal or request a stop. A client that half-closes
// or drops the stream interrupts the program, which is killed if it is
// still running after the grace period.
func (s *Service) Execute(stream runnerv1.ExecuteServer) error {
	ctx := stream.Context()

	first, err := stream.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return invalidArgument("stream closed before a program config was sent")
		}
		return err
	}
	if first.Config == nil {
		return invalidArgument("first execute request must carry a program config")
	}
	if err := first.Config.Validate(); err != nil {
		return toStatus(err)
	}

	sessionID, err := s.selectSession(ctx, first.SessionID, first.SessionStrategy, first.Project)
	if err != nil {
		return toStatus(err)
	}

	x, err := s.executor.Start(executor.Options{
		SessionID:        sessionID,
		Config:           fromProgramConfig(first.Config),
		Winsize:          fromWinsize(first.Winsize),
		StoreStdoutInEnv: first.StoreStdoutInEnv,
	})
	if err != nil {
		return toStatus(err)
	}
	logger := s.logger.With("execution", x.ID(), "session", sessionID)
	logger.Info("execution started", "pid", x.Pid())

	if len(first.InputData) > 0 || first.Stop != runnerv1.ExecuteStopUnspecified {
		s.applyRequest(logger, x, first)
	}
	go s.forwardRequests(stream, logger, x)

	sendErr := s.sendOutput(stream, x)
	res, err := x.Wait(context.WithoutCancel(ctx))
	if err != nil {
		return toStatus(err)
	}
	logger.Info("execution finished", "state", res.State, "pid", res.Pid)

	if sendErr != nil {
		return sendErr
	}
	if err := stream.Send(terminalResponse(res)); err != nil {
		return err
	}
	if res.State == executor.StateFailed {
		return status.Error(codes.Internal, res.Err.Error())
	}
	return nil
}

// sendOutput streams the pid and every output frame. After a send fails the
// output is still drained so the execution can finish.
func (s *Service) sendOutput(stream runnerv1.ExecuteServer, x *executor.Execution) error {
	var sendErr error
	if x.Pid() > 0 {
		pid := uint32(x.Pid())
		sendErr = stream.Send(&runnerv1.ExecuteResponse{Pid: &pid})
	}
	for frame := range x.Output() {
		if sendErr != nil {
			continue
		}
		sendErr = stream.Send(&runnerv1.ExecuteResponse{
			StdoutData: frame.Stdout,
			StderrData: frame.Stderr,
			MimeType:   frame.MimeType,
		})
		if sendErr != nil {
			x.Stop(executor.StopInterrupt)
		}
	}
	return sendErr
}

// forwardRequests applies client frames to the execution until the client
// stops sending, then interrupts whatever is still running.
func (s *Service) forwardRequests(stream runnerv1.ExecuteServer, logger *log.Logger, x *executor.Execution) {
	for {
		req, err := stream.Recv()
		if err != nil {
			select {
			case <-x.Done():
			default:
				logger.Debug("client stopped sending, interrupting", "reason", err)
				x.Stop(executor.StopInterrupt)
			}
			return
		}
		s.applyRequest(logger, x, req)
	}
}

func (s *Service) applyRequest(logger *log.Logger, x *executor.Execution, req *runnerv1.ExecuteRequest) {
	if len(req.InputData) > 0 {
		if err := x.Write(req.InputData); err != nil {
			logger.Debug("input dropped", "error", err)
		}
	}
	if req.Winsize != nil {
		if err := x.Resize(*fromWinsize(req.Winsize)); err != nil {
			logger.Debug("resize failed", "error", err)
		}
	}
	if sig := fromStop(req.Stop); sig != executor.StopNone {
		logger.Debug("stop requested", "signal", sig)
		x.Stop(sig)
	}
}
