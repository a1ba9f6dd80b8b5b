// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/runnerd/runnerd/internal/issue"
	"github.com/runnerd/runnerd/internal/tui"
	"github.com/runnerd/runnerd/pkg/api/runnerv1"
	"github.com/runnerd/runnerd/pkg/types"
)

func TestParseKeyValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{"none", nil, nil, false},
		{"pairs", []string{"a=1", "b="}, map[string]string{"a": "1", "b": ""}, false},
		{"later wins", []string{"a=1", "a=2"}, map[string]string{"a": "2"}, false},
		{"value with equals", []string{"url=x=y"}, map[string]string{"url": "x=y"}, false},
		{"missing equals", []string{"a"}, nil, true},
		{"empty key", []string{"=1"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseKeyValues(tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseKeyValues() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, errInvalidKeyValue) {
				t.Errorf("error = %v, want errInvalidKeyValue", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseKeyValues() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTargetFlagsProject(t *testing.T) {
	t.Parallel()

	if p := (&targetFlags{}).project(); p != nil {
		t.Errorf("project() = %+v, want nil without flags", p)
	}

	f := &targetFlags{root: "/srv/app", envFiles: []string{".env", ".env.local"}, mostRecent: true}
	want := &runnerv1.Project{Root: "/srv/app", EnvLoadOrder: []string{".env", ".env.local"}}
	if diff := cmp.Diff(want, f.project()); diff != "" {
		t.Errorf("project() mismatch (-want +got):\n%s", diff)
	}
	if f.strategy() != runnerv1.SessionStrategyMostRecent {
		t.Errorf("strategy() = %s, want most-recent", f.strategy())
	}
}

func TestParseResolveMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want runnerv1.ResolveProgramMode
	}{
		{"", runnerv1.ResolveProgramModeUnspecified},
		{"auto", runnerv1.ResolveProgramModeUnspecified},
		{"prompt-all", runnerv1.ResolveProgramModePromptAll},
		{"skip-all", runnerv1.ResolveProgramModeSkipAll},
	}
	for _, tt := range tests {
		got, err := parseResolveMode(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("parseResolveMode(%q) = %s, %v; want %s", tt.in, got, err, tt.want)
		}
	}
	if _, err := parseResolveMode("never"); !errors.Is(err, errUnknownMode) {
		t.Errorf("parseResolveMode(never) error = %v, want errUnknownMode", err)
	}
}

func TestVarPrompts(t *testing.T) {
	t.Parallel()

	vars := []*runnerv1.VarResult{
		{Name: "HOST", ResolvedValue: "localhost", Status: runnerv1.ResolveProgramStatusResolved},
		{Name: "USER", OriginalValue: "Who runs this?", Status: runnerv1.ResolveProgramStatusUnresolvedWithMessage},
		{Name: "PROJECT", OriginalValue: "my project", Status: runnerv1.ResolveProgramStatusUnresolvedWithPlaceholder},
		{Name: "API_TOKEN", Status: runnerv1.ResolveProgramStatusUnresolvedWithSecret},
	}

	want := []tui.VarPrompt{
		{Name: "USER", Description: "Who runs this?"},
		{Name: "PROJECT", Placeholder: "my project"},
		{Name: "API_TOKEN", Secret: true},
	}
	if diff := cmp.Diff(want, varPrompts(vars)); diff != "" {
		t.Errorf("varPrompts() mismatch (-want +got):\n%s", diff)
	}
}

func TestExportLines(t *testing.T) {
	t.Parallel()

	vars := []*runnerv1.VarResult{
		{Name: "HOST", ResolvedValue: "localhost", Status: runnerv1.ResolveProgramStatusResolved},
		{Name: "GREETING", Status: runnerv1.ResolveProgramStatusUnresolvedWithPlaceholder},
		{Name: "SKIPPED", Status: runnerv1.ResolveProgramStatusUnresolvedWithMessage},
	}
	answers := map[string]string{"GREETING": "it's me"}

	got, err := exportLines(vars, answers)
	if err != nil {
		t.Fatalf("exportLines() error = %v", err)
	}
	want := "export HOST=localhost\nexport GREETING=\"it's me\"\n"
	if got != want {
		t.Errorf("exportLines() = %q, want %q", got, want)
	}
}

func TestSourceText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  runnerv1.Source
		want string
	}{
		{"nil", nil, ""},
		{"commands", &runnerv1.CommandList{Items: []string{"# export A=1", "echo $A"}}, "# export A=1\necho $A\n"},
		{"empty commands", &runnerv1.CommandList{}, ""},
		{"script without newline", runnerv1.Script("echo hi"), "echo hi\n"},
		{"script with newline", runnerv1.Script("echo hi\n"), "echo hi\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := sourceText(tt.src); got != tt.want {
				t.Errorf("sourceText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExitErrorFor(t *testing.T) {
	t.Parallel()

	code := func(c uint32) *uint32 { return &c }
	tests := []struct {
		name     string
		last     *runnerv1.ExecuteResponse
		wantNil  bool
		wantCode types.ExitCode
		wantErr  bool
	}{
		{"success", &runnerv1.ExecuteResponse{ExitCode: code(0), State: runnerv1.ExecuteStateExited}, true, 0, false},
		{"failure", &runnerv1.ExecuteResponse{ExitCode: code(2), State: runnerv1.ExecuteStateExited}, false, 2, false},
		{"killed", &runnerv1.ExecuteResponse{ExitCode: code(137), State: runnerv1.ExecuteStateKilled}, false, 137, false},
		{"spawn failure", &runnerv1.ExecuteResponse{State: runnerv1.ExecuteStateFailed, Error: "no such file"}, false, 1, true},
		{"no terminal frame", nil, false, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := exitErrorFor(tt.last)
			if tt.wantNil {
				if err != nil {
					t.Fatalf("exitErrorFor() = %v, want nil", err)
				}
				return
			}
			var exitErr *ExitError
			if !errors.As(err, &exitErr) {
				t.Fatalf("exitErrorFor() = %v, want *ExitError", err)
			}
			if exitErr.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", exitErr.Code, tt.wantCode)
			}
			if (exitErr.Err != nil) != tt.wantErr {
				t.Errorf("Err = %v, wantErr %v", exitErr.Err, tt.wantErr)
			}
		})
	}
}

func TestExitErrorMessage(t *testing.T) {
	t.Parallel()

	if got := (&ExitError{Code: 4}).Error(); got != "exit status 4" {
		t.Errorf("Error() = %q, want %q", got, "exit status 4")
	}
	inner := errors.New("spawn failed")
	e := &ExitError{Code: 1, Err: inner}
	if e.Error() != "spawn failed" || !errors.Is(e, inner) {
		t.Errorf("ExitError{Err} = %q, want it to wrap the inner error", e.Error())
	}
}

func TestGetVersionString(t *testing.T) {
	// Mutates package-level build variables.
	origVersion, origCommit, origDate := Version, Commit, BuildDate
	t.Cleanup(func() { Version, Commit, BuildDate = origVersion, origCommit, origDate })

	Version = "dev"
	if got := getVersionString(); got != "dev (built from source)" {
		t.Errorf("getVersionString() = %q", got)
	}

	Version, Commit, BuildDate = "1.2.0", "abc123", "2026-01-02"
	if got := getVersionString(); got != "1.2.0 (commit: abc123, built: 2026-01-02)" {
		t.Errorf("getVersionString() = %q", got)
	}
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	plain := errors.New("plain failure")
	if got := formatErrorForDisplay(plain, false); got != "plain failure" {
		t.Errorf("formatErrorForDisplay(plain) = %q", got)
	}

	ae := issue.NewErrorContext().
		WithOperation("connect to server").
		WithResource("127.0.0.1:7863").
		WithSuggestion("Start the server").
		Wrap(errors.New("connection refused")).
		BuildError()
	got := formatErrorForDisplay(ae, false)
	for _, want := range []string{"connect to server", "127.0.0.1:7863", "Start the server"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatErrorForDisplay() = %q, missing %q", got, want)
		}
	}
}
