// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the CLI commands of runnerd.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/runnerd/runnerd/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "runnerd",
		Short: "A session-oriented command runner service",
		Long: TitleStyle.Render("runnerd") + SubtitleStyle.Render(" - a session-oriented command runner service") + `

runnerd runs programs for its clients as child processes and keeps the
environment they export in server-side sessions, so a variable exported by
one execution is visible to the next.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Start a server:            runnerd server
  2. Run a program in it:       runnerd exec --most-recent -c 'export NAME=world'
  3. Reuse the session state:   runnerd exec --most-recent -c 'echo hello $NAME'

` + SubtitleStyle.Render("Examples:") + `
  runnerd session list          List the sessions of the server
  runnerd resolve -f deploy.sh  Show which variables a script needs
  runnerd monitor <id> -f       Follow the env store of a session
  runnerd config show           Show the current configuration`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	flags.StringVar(&app.flags.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/runnerd/config.cue)")
	flags.StringVar(&app.flags.address, "address", "", "server address (default from server.address)")
	flags.DurationVar(&app.flags.timeout, "timeout", 30*time.Second, "timeout of unary RPCs")

	rootCmd.AddCommand(
		newServerCommand(app),
		newSessionCommand(app),
		newExecCommand(app),
		newResolveCommand(app),
		newMonitorCommand(app),
		newConfigCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. This is called by main.main().
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, formatErrorForDisplay(err, false))
		os.Exit(1)
	}

	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(app.handleError),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
