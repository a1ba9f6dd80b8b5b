// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid config")

type (
	// LogLevel is the minimum level the server logs at.
	LogLevel string

	// FieldError describes one invalid configuration key.
	FieldError struct {
		Key    string
		Reason string
	}

	// InvalidConfigError collects every invalid key of a Config.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []FieldError
	}

	// Config holds the runnerd configuration.
	Config struct {
		Server   ServerConfig   `json:"server" mapstructure:"server"`
		Log      LogConfig      `json:"log" mapstructure:"log"`
		Executor ExecutorConfig `json:"executor" mapstructure:"executor"`
		Resolver ResolverConfig `json:"resolver" mapstructure:"resolver"`
		Tracing  TracingConfig  `json:"tracing" mapstructure:"tracing"`
		Project  ProjectConfig  `json:"project" mapstructure:"project"`
	}

	// ServerConfig configures the gRPC listener.
	ServerConfig struct {
		// Address is the listen address of the server and the dial target of
		// the client commands.
		Address         string        `json:"address" mapstructure:"address"`
		MaxRecvMsgSize  int           `json:"max_recv_msg_size" mapstructure:"max_recv_msg_size"`
		ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	}

	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level"`
	}

	// ExecutorConfig configures program execution.
	ExecutorConfig struct {
		// DefaultShell runs programs without a program name or language.
		// Empty picks bash, falling back to sh.
		DefaultShell string `json:"default_shell" mapstructure:"default_shell"`
		// GracePeriod is how long an interrupted program has before SIGKILL.
		GracePeriod time.Duration `json:"grace_period" mapstructure:"grace_period"`
		// MaxStoredStdout bounds the stdout tail kept by storeStdoutInEnv.
		MaxStoredStdout int `json:"max_stored_stdout" mapstructure:"max_stored_stdout"`
		// InheritHostEnv starts programs from the server environment.
		InheritHostEnv bool `json:"inherit_host_env" mapstructure:"inherit_host_env"`
	}

	// ResolverConfig configures variable classification.
	ResolverConfig struct {
		// SecretPatterns are globs (path.Match syntax) of variable names
		// treated as secrets.
		SecretPatterns []string `json:"secret_patterns" mapstructure:"secret_patterns"`
	}

	// TracingConfig configures span export.
	TracingConfig struct {
		Enabled bool `json:"enabled" mapstructure:"enabled"`
		// Output is "stdout", "stderr" or a file path.
		Output string `json:"output" mapstructure:"output"`
	}

	// ProjectConfig configures the project env file watcher.
	ProjectConfig struct {
		// WatchEnvFiles reloads a session's project env files when they
		// change on disk.
		WatchEnvFiles bool          `json:"watch_env_files" mapstructure:"watch_env_files"`
		WatchDebounce time.Duration `json:"watch_debounce" mapstructure:"watch_debounce"`
	}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         "127.0.0.1:7863",
			MaxRecvMsgSize:  4 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: LogLevelInfo},
		Executor: ExecutorConfig{
			GracePeriod:     5 * time.Second,
			MaxStoredStdout: 64 << 10,
			InheritHostEnv:  true,
		},
		Resolver: ResolverConfig{
			SecretPatterns: []string{"*_SECRET", "*_TOKEN", "*_PASSWORD"},
		},
		Tracing: TracingConfig{Output: "stderr"},
		Project: ProjectConfig{WatchDebounce: 300 * time.Millisecond},
	}
}

// Level returns the charmbracelet/log level.
func (l LogLevel) Level() (log.Level, error) {
	return log.ParseLevel(string(l))
}

// Validate checks the constraints the schema cannot see once environment
// overrides have been applied.
func (c *Config) Validate() error {
	var errs []FieldError
	add := func(key, reason string) { errs = append(errs, FieldError{Key: key, Reason: reason}) }

	if strings.TrimSpace(c.Server.Address) == "" {
		add("server.address", "must not be empty")
	}
	if c.Server.MaxRecvMsgSize <= 0 {
		add("server.max_recv_msg_size", "must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		add("server.shutdown_timeout", "must be positive")
	}
	switch c.Log.Level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		add("log.level", fmt.Sprintf("unknown level %q", c.Log.Level))
	}
	if c.Executor.GracePeriod <= 0 {
		add("executor.grace_period", "must be positive")
	}
	if c.Executor.MaxStoredStdout < 0 {
		add("executor.max_stored_stdout", "must not be negative")
	}
	for i, p := range c.Resolver.SecretPatterns {
		if _, err := path.Match(p, ""); err != nil {
			add(fmt.Sprintf("resolver.secret_patterns[%d]", i), fmt.Sprintf("bad pattern %q", p))
		}
	}
	if c.Tracing.Enabled && strings.TrimSpace(c.Tracing.Output) == "" {
		add("tracing.output", "must not be empty when tracing is enabled")
	}
	if c.Project.WatchDebounce < 0 {
		add("project.watch_debounce", "must not be negative")
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return e.Key + ": " + e.Reason
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	parts := make([]string, len(e.FieldErrors))
	for i := range e.FieldErrors {
		parts[i] = e.FieldErrors[i].Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(parts, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
