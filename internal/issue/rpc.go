// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RPCError is the cause of an ActionableError built from a gRPC status. It
// keeps the status so status.Code still works on the wrapping error.
type RPCError struct {
	Code    codes.Code
	Message string
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// GRPCStatus lets status.FromError and status.Code see through the wrapper.
func (e *RPCError) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Message)
}

// rpcGuidance is the catalog entry and suggestions shown for a status code.
var rpcGuidance = map[codes.Code]struct {
	issue       Id
	suggestions []string
}{
	codes.Unavailable: {ServerUnreachableId, []string{
		"Start a server with 'runnerd server'",
		"Check --address or the server.address setting",
	}},
	codes.NotFound: {SessionNotFoundId, []string{
		"List known sessions with 'runnerd session list'",
		"Omit --session to create a new session",
	}},
	codes.InvalidArgument: {InvalidProgramId, []string{
		"Pass either commands or a script, not both",
		"Check the program for shell syntax errors",
	}},
	codes.FailedPrecondition: {ProjectEnvFailedId, []string{
		"Check the project env files listed in the load order",
	}},
	codes.DeadlineExceeded: {0, []string{
		"Retry with a larger --timeout",
	}},
	codes.Internal: {ExecutionFailedId, []string{
		"Run the server with --verbose to see the full error",
	}},
}

// FromRPC wraps an error returned by a runner RPC with the operation and
// resource the caller was working on, plus suggestions for the status code.
// Errors without a gRPC status are wrapped unchanged.
func FromRPC(err error, operation, resource string) *ActionableError {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return WrapWithContext(err, operation, resource)
	}

	ec := NewErrorContext().
		WithOperation(operation).
		WithResource(resource).
		Wrap(&RPCError{Code: st.Code(), Message: st.Message()})
	if g, ok := rpcGuidance[st.Code()]; ok {
		ec.WithIssue(g.issue).WithSuggestions(g.suggestions...)
	}
	return ec.Build()
}
