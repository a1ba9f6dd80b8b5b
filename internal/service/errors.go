// SPDX-License-Identifier: MPL-2.0

package service

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/runnerd/runnerd/internal/envfile"
	"github.com/runnerd/runnerd/internal/executor"
	"github.com/runnerd/runnerd/internal/resolver"
	"github.com/runnerd/runnerd/internal/session"
	"github.com/runnerd/runnerd/pkg/api/runnerv1"
)

// toStatus maps domain errors to gRPC status errors. Errors that already
// carry a status pass through.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codeOf(err), err.Error())
}

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return codes.NotFound
	case errors.Is(err, session.ErrInvalidEnv),
		errors.Is(err, resolver.ErrInvalidSource),
		errors.Is(err, resolver.ErrMalformedScript),
		errors.Is(err, runnerv1.ErrSourceConflict),
		errors.Is(err, executor.ErrInvalidProgram),
		errors.Is(err, executor.ErrInvalidKnownName):
		return codes.InvalidArgument
	case errors.Is(err, executor.ErrNotRunning),
		errors.Is(err, envfile.ErrInvalidLine):
		return codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

func invalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}
