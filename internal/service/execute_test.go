// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package service

import (
	"errors"
	"io"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"google.golang.org/grpc/codes"

	"github.com/runnerd/runnerd/pkg/api/runnerv1"
)

type execResult struct {
	pid        uint32
	stdout     string
	stderr     string
	mimeType   string
	final      *runnerv1.ExecuteResponse
	exitFrames int
	err        error
}

func (e *testEnv) execute(t *testing.T, req *runnerv1.ExecuteRequest) runnerv1.ExecuteClient {
	t.Helper()

	stream, err := e.client.Execute(t.Context())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if err := stream.Send(req); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	return stream
}

// waitPid reads the first frame, which must carry the pid.
func waitPid(t *testing.T, stream runnerv1.ExecuteClient) uint32 {
	t.Helper()

	resp, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if resp.Pid == nil || *resp.Pid == 0 {
		t.Fatalf("first frame = %+v, want a pid", resp)
	}
	return *resp.Pid
}

func recvAll(stream runnerv1.ExecuteClient) execResult {
	var r execResult
	var stdout, stderr strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.err = err
			break
		}
		if resp.Pid != nil && r.pid == 0 {
			r.pid = *resp.Pid
		}
		stdout.Write(resp.StdoutData)
		stderr.Write(resp.StderrData)
		if resp.MimeType != "" && r.mimeType == "" {
			r.mimeType = resp.MimeType
		}
		if resp.ExitCode != nil || resp.State != runnerv1.ExecuteStateUnspecified {
			r.final = resp
			r.exitFrames++
		}
	}
	r.stdout, r.stderr = stdout.String(), stderr.String()
	return r
}

func commands(items ...string) *runnerv1.ProgramConfig {
	return &runnerv1.ProgramConfig{ProgramName: "bash", Source: &runnerv1.CommandList{Items: items}}
}

func wantExit(t *testing.T, r execResult, state runnerv1.ExecuteState, code uint32) {
	t.Helper()

	if r.err != nil {
		t.Fatalf("stream error = %v", r.err)
	}
	if r.final == nil || r.final.ExitCode == nil {
		t.Fatalf("no terminal frame with an exit code, got %+v", r.final)
	}
	if r.exitFrames != 1 {
		t.Errorf("exit code reported %d times, want once", r.exitFrames)
	}
	if r.final.State != state || *r.final.ExitCode != code {
		t.Errorf("terminal frame = %v/%d, want %v/%d", r.final.State, *r.final.ExitCode, state, code)
	}
}

func TestExecuteCommands(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	r := recvAll(env.execute(t, &runnerv1.ExecuteRequest{Config: commands("echo test", "echo oops >&2")}))

	wantExit(t, r, runnerv1.ExecuteStateExited, 0)
	if r.pid == 0 {
		t.Error("no frame carried the pid")
	}
	if r.stdout != "test\n" || r.stderr != "oops\n" {
		t.Errorf("output = %q/%q, want test/oops", r.stdout, r.stderr)
	}
	if !strings.HasPrefix(r.mimeType, "text/plain") {
		t.Errorf("mime type = %q, want text/plain", r.mimeType)
	}
	if r.final.Pid == nil || *r.final.Pid != r.pid {
		t.Errorf("terminal frame pid = %v, want %d", r.final.Pid, r.pid)
	}
}

func TestExecuteExitCode(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	r := recvAll(env.execute(t, &runnerv1.ExecuteRequest{Config: &runnerv1.ProgramConfig{
		ProgramName: "bash",
		Source:      runnerv1.Script("exit 3"),
	}}))
	wantExit(t, r, runnerv1.ExecuteStateExited, 3)
}

func TestExecuteInput(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	stream := env.execute(t, &runnerv1.ExecuteRequest{Config: commands("read name", `echo "My name is $name"`)})
	waitPid(t, stream)

	if err := stream.Send(&runnerv1.ExecuteRequest{InputData: []byte("Frank\n")}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	r := recvAll(stream)
	wantExit(t, r, runnerv1.ExecuteStateExited, 0)
	if r.stdout != "My name is Frank\n" {
		t.Errorf("stdout = %q, want %q", r.stdout, "My name is Frank\n")
	}
}

func TestExecuteStop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		stop  runnerv1.ExecuteStop
		state runnerv1.ExecuteState
		code  uint32
	}{
		{"interrupt", runnerv1.ExecuteStopInterrupt, runnerv1.ExecuteStateInterrupted, 130},
		{"kill", runnerv1.ExecuteStopKill, runnerv1.ExecuteStateKilled, 137},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			stream := env.execute(t, &runnerv1.ExecuteRequest{Config: commands("sleep 30")})
			waitPid(t, stream)

			if err := stream.Send(&runnerv1.ExecuteRequest{Stop: tt.stop}); err != nil {
				t.Fatalf("Send() error = %v", err)
			}
			wantExit(t, recvAll(stream), tt.state, tt.code)
		})
	}
}

func TestExecuteCloseSendInterrupts(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	stream := env.execute(t, &runnerv1.ExecuteRequest{Config: commands("sleep 30")})
	waitPid(t, stream)

	if err := stream.CloseSend(); err != nil {
		t.Fatalf("CloseSend() error = %v", err)
	}
	wantExit(t, recvAll(stream), runnerv1.ExecuteStateInterrupted, 130)
}

func TestExecuteDeleteSessionKills(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	sess := env.createSession(t, &runnerv1.CreateSessionRequest{})
	stream := env.execute(t, &runnerv1.ExecuteRequest{SessionID: sess.ID, Config: commands("sleep 30")})
	waitPid(t, stream)

	if _, err := env.client.DeleteSession(t.Context(), &runnerv1.DeleteSessionRequest{ID: sess.ID}); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	wantExit(t, recvAll(stream), runnerv1.ExecuteStateKilled, 137)
}

func TestExecuteEnvPersistsAcrossExecutions(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	first := recvAll(env.execute(t, &runnerv1.ExecuteRequest{
		SessionStrategy: runnerv1.SessionStrategyMostRecent,
		Config: &runnerv1.ProgramConfig{
			ProgramName: "bash",
			Env:         []string{"TEST_ENV=hello"},
			Source:      &runnerv1.CommandList{Items: []string{"export TEST_ENV=hello-2"}},
		},
	}))
	wantExit(t, first, runnerv1.ExecuteStateExited, 0)

	second := recvAll(env.execute(t, &runnerv1.ExecuteRequest{
		SessionStrategy: runnerv1.SessionStrategyMostRecent,
		Config:          commands("echo $TEST_ENV"),
	}))
	wantExit(t, second, runnerv1.ExecuteStateExited, 0)
	if second.stdout != "hello-2\n" {
		t.Errorf("second execution stdout = %q, want %q", second.stdout, "hello-2\n")
	}

	list, err := env.client.ListSessions(t.Context(), &runnerv1.ListSessionsRequest{})
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(list.Sessions) != 1 {
		t.Errorf("%d sessions, want the most recent one reused", len(list.Sessions))
	}
}

func TestExecuteStoreStdoutInEnv(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	sess := env.createSession(t, &runnerv1.CreateSessionRequest{})
	cfg := commands("echo hi")
	cfg.KnownName = "GREETING"

	r := recvAll(env.execute(t, &runnerv1.ExecuteRequest{SessionID: sess.ID, Config: cfg, StoreStdoutInEnv: true}))
	wantExit(t, r, runnerv1.ExecuteStateExited, 0)

	got, err := env.client.GetSession(t.Context(), &runnerv1.GetSessionRequest{ID: sess.ID})
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	for _, want := range []string{"__=hi", "GREETING=hi"} {
		found := false
		for _, entry := range got.Session.Env {
			found = found || entry == want
		}
		if !found {
			t.Errorf("session env %v is missing %q", got.Session.Env, want)
		}
	}
}

func TestExecuteSpawnFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	r := recvAll(env.execute(t, &runnerv1.ExecuteRequest{Config: &runnerv1.ProgramConfig{ProgramName: "runnerd-no-such-program"}}))

	if r.final == nil || r.final.State != runnerv1.ExecuteStateFailed {
		t.Fatalf("terminal frame = %+v, want failed", r.final)
	}
	if r.final.ExitCode != nil {
		t.Errorf("failed execution reported exit code %d", *r.final.ExitCode)
	}
	if r.final.Error == "" {
		t.Error("failed execution carries no error detail")
	}
	wantCode(t, r.err, codes.Internal)
}

func TestExecuteInvalidFirstRequest(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	stream := env.execute(t, &runnerv1.ExecuteRequest{InputData: []byte("no config")})
	wantCode(t, recvAll(stream).err, codes.InvalidArgument)

	raw, err := env.client.Execute(t.Context())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if err := raw.SendMsg(json.RawMessage(`{"config":{"commands":{"items":["ls"]},"script":"ls"}}`)); err != nil {
		t.Fatalf("SendMsg() error = %v", err)
	}
	wantCode(t, recvAll(raw).err, codes.InvalidArgument)

	unknown := env.execute(t, &runnerv1.ExecuteRequest{SessionID: "missing", Config: commands("true")})
	wantCode(t, recvAll(unknown).err, codes.NotFound)
}
