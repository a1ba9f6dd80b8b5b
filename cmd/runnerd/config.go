// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/runnerd/runnerd/internal/config"
	"github.com/runnerd/runnerd/internal/issue"
)

func newConfigCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize the runnerd configuration",
		Long: `Inspect and initialize the runnerd configuration.

Settings come from built-in defaults, then the config file, then
RUNNERD_* environment variables (e.g. RUNNERD_SERVER_ADDRESS).`,
	}

	cmd.AddCommand(
		newConfigShowCommand(app),
		newConfigPathCommand(app),
		newConfigInitCommand(app),
	)
	return cmd
}

func newConfigShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			source := config.LoadedPath(app.Config)
			if source == "" {
				source = "defaults"
			}
			fmt.Fprintln(app.stdout, "// source: "+source)
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	}
}

func newConfigPathCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file in use, or where one would be read from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := app.loadConfig(cmd.Context()); err != nil {
				return err
			}
			if path := config.LoadedPath(app.Config); path != "" {
				fmt.Fprintln(app.stdout, path)
				return nil
			}

			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt)+" "+SubtitleStyle.Render("(not created)"))
			return nil
		},
	}
}

func newConfigInitCommand(app *App) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Long: `Write the default configuration to config.cue in the config directory.
An existing file is left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if dir == "" {
				var err error
				if dir, err = config.ConfigDir(); err != nil {
					return err
				}
			}
			path, err := config.WriteDefault(dir)
			if err != nil {
				return issue.NewErrorContext().
					WithOperation("write default config").
					WithResource(dir).
					WithSuggestion("Check that the directory is writable").
					WithSuggestion("Pick another directory with --dir").
					WithIssue(issue.ConfigLoadFailedId).
					Wrap(err).
					BuildError()
			}
			fmt.Fprintln(app.stdout, SuccessStyle.Render("config:")+" "+path)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory to write config.cue to (default: the config directory)")
	return cmd
}
