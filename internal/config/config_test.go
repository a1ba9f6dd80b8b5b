// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/runnerd/runnerd/internal/issue"
	"github.com/runnerd/runnerd/internal/testutil"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	p := NewProvider()
	cfg, err := p.Load(t.Context(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	if got := LoadedPath(p); got != "" {
		t.Errorf("LoadedPath() = %q, want empty", got)
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, dir, `
server: address: "0.0.0.0:9000"
log: level: "debug"
executor: {
	grace_period: "1500ms"
	inherit_host_env: false
}
resolver: secret_patterns: ["API_*"]
project: watch_env_files: true
`)

	p := NewProvider()
	cfg, err := p.Load(t.Context(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := DefaultConfig()
	want.Server.Address = "0.0.0.0:9000"
	want.Log.Level = LogLevelDebug
	want.Executor.GracePeriod = 1500 * time.Millisecond
	want.Executor.InheritHostEnv = false
	want.Resolver.SecretPatterns = []string{"API_*"}
	want.Project.WatchEnvFiles = true
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	if got := LoadedPath(p); got != path {
		t.Errorf("LoadedPath() = %q, want %q", got, path)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, t.TempDir(), `tracing: {enabled: true, output: "stdout"}`)
	cfg, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: path, ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Output != "stdout" {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue")})
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("Load() error = %v, want *issue.ActionableError", err)
	}
	if ae.Issue != issue.ConfigLoadFailedId {
		t.Errorf("Issue = %d, want ConfigLoadFailedId", ae.Issue)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Load() error = %v, want fs.ErrNotExist in chain", err)
	}
}

func TestLoadSchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown field", `server: port: 1`, "server.port"},
		{"bad level", `log: level: "trace"`, "log.level"},
		{"bad duration", `executor: grace_period: "soon"`, "executor.grace_period"},
		{"wrong type", `executor: inherit_host_env: "yes"`, "executor.inherit_host_env"},
		{"negative size", `server: max_recv_msg_size: -1`, "server.max_recv_msg_size"},
		{"empty pattern", `resolver: secret_patterns: [""]`, "resolver.secret_patterns[0]"},
		{"syntax", `server: {`, "config.cue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeConfig(t, dir, tt.content)
			_, err := NewProvider().Load(t.Context(), LoadOptions{ConfigDirPath: dir})
			if err == nil {
				t.Fatal("Load() succeeded, want a schema error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RUNNERD_SERVER_ADDRESS", "127.0.0.1:1234")
	t.Setenv("RUNNERD_EXECUTOR_GRACE_PERIOD", "2s")
	t.Setenv("RUNNERD_TRACING_ENABLED", "true")

	dir := t.TempDir()
	writeConfig(t, dir, `server: address: "127.0.0.1:9999"`)
	cfg, err := NewProvider().Load(t.Context(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Address != "127.0.0.1:1234" {
		t.Errorf("Server.Address = %q, want the environment value", cfg.Server.Address)
	}
	if cfg.Executor.GracePeriod != 2*time.Second {
		t.Errorf("Executor.GracePeriod = %v, want 2s", cfg.Executor.GracePeriod)
	}
	if !cfg.Tracing.Enabled {
		t.Error("Tracing.Enabled = false, want the environment value")
	}
}

func TestLoadEnvOverrideInvalid(t *testing.T) {
	t.Setenv("RUNNERD_LOG_LEVEL", "loud")

	_, err := NewProvider().Load(t.Context(), LoadOptions{ConfigDirPath: t.TempDir()})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestGenerateCUELoadsBack(t *testing.T) {
	t.Parallel()

	want := DefaultConfig()
	want.Tracing.Enabled = true
	want.Executor.DefaultShell = "/bin/zsh"

	dir := t.TempDir()
	writeConfig(t, dir, GenerateCUE(want))
	got, err := NewProvider().Load(t.Context(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v\n%s", err, GenerateCUE(want))
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("generated config mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteDefault(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "runnerd")
	path, err := WriteDefault(dir)
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(`log: level: "warn"`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteDefault(dir); err != nil {
		t.Fatalf("second WriteDefault() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `log: level: "warn"` {
		t.Error("WriteDefault() overwrote an existing file")
	}
}

func TestConfigDirXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if want := filepath.Join("/tmp/xdg", AppName); dir != want {
		t.Errorf("ConfigDir() = %q, want %q", dir, want)
	}
}

func TestConfigDirHomeFallback(t *testing.T) {
	home := t.TempDir()
	testutil.SetHomeDir(t, home)

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	var want string
	switch runtime.GOOS {
	case "windows":
		want = filepath.Join(home, "AppData", "Roaming", AppName)
	case "darwin":
		want = filepath.Join(home, "Library", "Application Support", AppName)
	default:
		want = filepath.Join(home, ".config", AppName)
	}
	if dir != want {
		t.Errorf("ConfigDir() = %q, want %q", dir, want)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantKey string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty address", func(c *Config) { c.Server.Address = " " }, "server.address"},
		{"zero grace", func(c *Config) { c.Executor.GracePeriod = 0 }, "executor.grace_period"},
		{"bad pattern", func(c *Config) { c.Resolver.SecretPatterns = []string{"[A-"} }, "resolver.secret_patterns[0]"},
		{"tracing without output", func(c *Config) { c.Tracing = TracingConfig{Enabled: true} }, "tracing.output"},
		{"unknown level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantKey == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			var ice *InvalidConfigError
			if !errors.As(err, &ice) {
				t.Fatalf("Validate() error = %v, want *InvalidConfigError", err)
			}
			if len(ice.FieldErrors) != 1 || ice.FieldErrors[0].Key != tt.wantKey {
				t.Errorf("FieldErrors = %v, want one for %s", ice.FieldErrors, tt.wantKey)
			}
		})
	}
}

func TestLogLevel(t *testing.T) {
	t.Parallel()

	if _, err := LogLevelWarn.Level(); err != nil {
		t.Errorf("Level() error = %v", err)
	}
	if _, err := LogLevel("loud").Level(); err == nil {
		t.Error("Level() accepted an unknown level")
	}
}
