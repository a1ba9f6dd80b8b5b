// SPDX-License-Identifier: MPL-2.0

package service

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"google.golang.org/grpc/codes"

	"github.com/runnerd/runnerd/internal/session"
	"github.com/runnerd/runnerd/pkg/api/runnerv1"
)

func TestMonitorEnvStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	content := "TOKEN=abc # Secret\nBLOB=xyz # Opaque\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	env := newTestEnv(t)
	sess := env.createSession(t, &runnerv1.CreateSessionRequest{
		Env:     []string{"PLAIN=1"},
		Project: &runnerv1.Project{Root: dir, EnvLoadOrder: []string{".env"}},
	})

	stream, err := env.client.MonitorEnvStore(t.Context(), &runnerv1.MonitorEnvStoreRequest{
		Session: &runnerv1.Session{ID: sess.ID},
		Type:    runnerv1.MonitorEnvStoreTypeSnapshot,
	})
	if err != nil {
		t.Fatalf("MonitorEnvStore() error = %v", err)
	}

	first, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	want := []*runnerv1.SnapshotEnv{
		{Name: "BLOB", Spec: "Opaque", Origin: ".env:2", Status: runnerv1.SnapshotStatusHidden},
		{Name: "PLAIN", Spec: "Plain", Origin: session.OriginSession, OriginalValue: "1", ResolvedValue: "1", Status: runnerv1.SnapshotStatusLiteral},
		{Name: "TOKEN", Spec: "Secret", Origin: ".env:1", ResolvedValue: "********", Status: runnerv1.SnapshotStatusMasked},
	}
	ignoreTimes := cmpopts.IgnoreFields(runnerv1.SnapshotEnv{}, "CreateTime", "UpdateTime")
	if diff := cmp.Diff(want, first.Snapshot.Envs, ignoreTimes); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	if err := env.store.SetEnv(sess.ID, []session.Assignment{{Name: "ADDED", Value: "x"}}, nil); err != nil {
		t.Fatalf("SetEnv() error = %v", err)
	}
	second, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if n := len(second.Snapshot.Envs); n != 4 || second.Snapshot.Envs[0].Name != "ADDED" {
		t.Errorf("second snapshot has %d envs starting with %q, want 4 starting with ADDED", n, second.Snapshot.Envs[0].Name)
	}

	if _, err := env.client.DeleteSession(t.Context(), &runnerv1.DeleteSessionRequest{ID: sess.ID}); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if _, err := stream.Recv(); !errors.Is(err, io.EOF) {
		t.Errorf("Recv() after delete error = %v, want EOF", err)
	}
}

func TestMonitorEnvStoreErrors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tests := []struct {
		name string
		req  *runnerv1.MonitorEnvStoreRequest
		code codes.Code
	}{
		{"no session", &runnerv1.MonitorEnvStoreRequest{}, codes.InvalidArgument},
		{"unknown session", &runnerv1.MonitorEnvStoreRequest{Session: &runnerv1.Session{ID: "missing"}}, codes.NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stream, err := env.client.MonitorEnvStore(t.Context(), tt.req)
			if err != nil {
				t.Fatalf("MonitorEnvStore() error = %v", err)
			}
			_, err = stream.Recv()
			wantCode(t, err, tt.code)
		})
	}
}
