// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/runnerd/runnerd/pkg/api/runnerv1"
)

func newSessionCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		Short:   "Manage server-side sessions",
		Long: `Manage the sessions of a runner server.

A session keeps the environment exported by the programs executed in it,
along with free-form metadata and an optional project whose env files are
loaded into it.`,
	}

	cmd.AddCommand(
		newSessionCreateCommand(app),
		newSessionListCommand(app),
		newSessionGetCommand(app),
		newSessionUpdateCommand(app),
		newSessionDeleteCommand(app),
	)
	return cmd
}

func newSessionCreateCommand(app *App) *cobra.Command {
	var (
		env    []string
		meta   []string
		owl    bool
		target targetFlags
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session and print its id",
		Example: `  runnerd session create --env GREETING=hello
  runnerd session create --project-root . --env-file .env --env-file .env.local`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			metadata, err := parseKeyValues(meta)
			if err != nil {
				return fmt.Errorf("--meta: %w", err)
			}
			req := &runnerv1.CreateSessionRequest{
				Metadata: metadata,
				Env:      env,
				Project:  target.project(),
			}
			if owl {
				req.EnvStoreType = runnerv1.SessionEnvStoreTypeOwl
			}

			c, err := app.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := app.rpcContext(cmd.Context())
			defer cancel()
			resp, err := c.CreateSession(ctx, req)
			if err != nil {
				return rpcError(err, "create session", c.address)
			}
			fmt.Fprintln(app.stdout, resp.Session.ID)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&env, "env", "e", nil, "initial variable NAME=value (repeatable)")
	flags.StringArrayVar(&meta, "meta", nil, "metadata KEY=VALUE (repeatable)")
	flags.BoolVar(&owl, "owl", false, "use the spec-aware env store")
	target.registerProject(cmd)
	return cmd
}

func newSessionListCommand(app *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sessions in creation order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := app.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := app.rpcContext(cmd.Context())
			defer cancel()
			resp, err := c.ListSessions(ctx, &runnerv1.ListSessionsRequest{})
			if err != nil {
				return rpcError(err, "list sessions", c.address)
			}

			if asJSON {
				return writeJSON(app.stdout, resp.Sessions)
			}
			if len(resp.Sessions) == 0 {
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("No sessions."))
				return nil
			}
			fmt.Fprintln(app.stdout, renderSessions(resp.Sessions))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print sessions as JSON")
	return cmd
}

func newSessionGetCommand(app *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get ID",
		Short: "Show a session and its environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := app.rpcContext(cmd.Context())
			defer cancel()
			resp, err := c.GetSession(ctx, &runnerv1.GetSessionRequest{ID: args[0]})
			if err != nil {
				return rpcError(err, "get session", args[0])
			}

			if asJSON {
				return writeJSON(app.stdout, resp.Session)
			}
			printSession(app, resp.Session)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the session as JSON")
	return cmd
}

func newSessionUpdateCommand(app *App) *cobra.Command {
	var (
		env      []string
		clearEnv bool
		meta     []string
		clearMD  bool
		target   targetFlags
	)

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Replace the environment, metadata or project of a session",
		Long: `Replace fields of a session. Fields whose flags are not given keep
their current value.

--env replaces the whole environment with the given variables;
--clear-env empties it. --meta and --clear-metadata work the same way for
metadata. --project-root and --env-file replace the project and reload its
env files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &runnerv1.UpdateSessionRequest{ID: args[0], Project: target.project()}
			switch {
			case clearEnv:
				req.Env = []string{}
			case len(env) > 0:
				req.Env = env
			}
			switch {
			case clearMD:
				req.Metadata = map[string]string{}
			case len(meta) > 0:
				metadata, err := parseKeyValues(meta)
				if err != nil {
					return fmt.Errorf("--meta: %w", err)
				}
				req.Metadata = metadata
			}

			c, err := app.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := app.rpcContext(cmd.Context())
			defer cancel()
			resp, err := c.UpdateSession(ctx, req)
			if err != nil {
				return rpcError(err, "update session", args[0])
			}
			printSession(app, resp.Session)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&env, "env", "e", nil, "variable NAME=value of the new environment (repeatable)")
	flags.BoolVar(&clearEnv, "clear-env", false, "remove every variable")
	flags.StringArrayVar(&meta, "meta", nil, "metadata KEY=VALUE of the new metadata (repeatable)")
	flags.BoolVar(&clearMD, "clear-metadata", false, "remove all metadata")
	cmd.MarkFlagsMutuallyExclusive("env", "clear-env")
	cmd.MarkFlagsMutuallyExclusive("meta", "clear-metadata")
	target.registerProject(cmd)
	return cmd
}

func newSessionDeleteCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID...",
		Aliases: []string{"rm"},
		Short:   "Delete sessions and kill their running programs",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			for _, id := range args {
				ctx, cancel := app.rpcContext(cmd.Context())
				_, err := c.DeleteSession(ctx, &runnerv1.DeleteSessionRequest{ID: id})
				cancel()
				if err != nil {
					return rpcError(err, "delete session", id)
				}
				fmt.Fprintln(app.stdout, SuccessStyle.Render("deleted")+" "+KeyStyle.Render(id))
			}
			return nil
		},
	}
}

func renderSessions(sessions []*runnerv1.Session) string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			s.ID,
			s.EnvStoreType.String(),
			strconv.Itoa(len(s.Env)),
			formatProject(s.Project),
			formatMetadata(s.Metadata),
		})
	}
	return renderTable([]string{"ID", "STORE", "VARS", "PROJECT", "METADATA"}, rows)
}

func printSession(app *App, s *runnerv1.Session) {
	fmt.Fprintf(app.stdout, "%s %s\n", TitleStyle.Render("Session"), KeyStyle.Render(s.ID))
	fmt.Fprintf(app.stdout, "  %s %s\n", SubtitleStyle.Render("store:   "), s.EnvStoreType)
	fmt.Fprintf(app.stdout, "  %s %s\n", SubtitleStyle.Render("project: "), formatProject(s.Project))
	fmt.Fprintf(app.stdout, "  %s %s\n", SubtitleStyle.Render("metadata:"), formatMetadata(s.Metadata))
	if len(s.Env) == 0 {
		return
	}
	fmt.Fprintln(app.stdout, "  "+SubtitleStyle.Render("env:"))
	for _, kv := range s.Env {
		fmt.Fprintln(app.stdout, "    "+kv)
	}
}
