// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/runnerd/runnerd/pkg/api/runnerv1"
)

func newMonitorCommand(app *App) *cobra.Command {
	var (
		follow bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "monitor SESSION",
		Short: "Show the env store snapshot of a session",
		Long: `Show every variable of a session with its origin, status and spec.

Values of sensitive variables are masked or hidden by the server. With
--follow a new snapshot is printed whenever the session environment
changes, until the session is deleted or the command is interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			stream, err := c.MonitorEnvStore(ctx, &runnerv1.MonitorEnvStoreRequest{
				Session: &runnerv1.Session{ID: args[0]},
				Type:    runnerv1.MonitorEnvStoreTypeSnapshot,
			})
			if err != nil {
				return rpcError(err, "monitor session", args[0])
			}

			for {
				resp, err := stream.Recv()
				switch {
				case errors.Is(err, io.EOF):
					return nil
				case status.Code(err) == codes.Canceled && cmd.Context().Err() != nil:
					return nil
				case err != nil:
					return rpcError(err, "monitor session", args[0])
				}

				if asJSON {
					data, err := json.Marshal(resp.Snapshot)
					if err != nil {
						return err
					}
					fmt.Fprintln(app.stdout, string(data))
				} else {
					printSnapshot(app.stdout, args[0], resp.Snapshot, follow)
				}
				if !follow {
					return nil
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing snapshots as the environment changes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print snapshots as JSON lines")
	return cmd
}

func printSnapshot(w io.Writer, id string, snap *runnerv1.Snapshot, stamped bool) {
	header := TitleStyle.Render("Session") + " " + KeyStyle.Render(id)
	if stamped {
		header += SubtitleStyle.Render(" at " + time.Now().Format(time.TimeOnly))
	}
	fmt.Fprintln(w, header)

	if snap == nil || len(snap.Envs) == 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("No variables."))
		return
	}

	rows := make([][]string, 0, len(snap.Envs))
	for _, env := range snap.Envs {
		value := env.ResolvedValue
		if env.Status == runnerv1.SnapshotStatusHidden {
			value = SubtitleStyle.Render("(hidden)")
		}
		spec := env.Spec
		if len(env.Errors) > 0 {
			spec = ErrorStyle.Render(spec + " !" + env.Errors[0].Message)
		}
		rows = append(rows, []string{env.Name, value, spec, env.Origin, env.UpdateTime})
	}
	fmt.Fprintln(w, renderTable([]string{"NAME", "VALUE", "SPEC", "ORIGIN", "UPDATED"}, rows))
}
