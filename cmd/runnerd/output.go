// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/runnerd/runnerd/internal/issue"
	"github.com/runnerd/runnerd/pkg/api/runnerv1"
)

var errInvalidKeyValue = errors.New("expected KEY=VALUE")

// targetFlags select the session and project of a request.
type targetFlags struct {
	session    string
	mostRecent bool
	root       string
	envFiles   []string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.session, "session", "s", "", "session id")
	flags.BoolVar(&f.mostRecent, "most-recent", false, "use the most recently used session when --session is empty")
	f.registerProject(cmd)
}

func (f *targetFlags) registerProject(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.root, "project-root", "", "project root whose env files are loaded")
	flags.StringArrayVar(&f.envFiles, "env-file", nil, "env file of the project, in load order (repeatable)")
}

func (f *targetFlags) strategy() runnerv1.SessionStrategy {
	if f.mostRecent {
		return runnerv1.SessionStrategyMostRecent
	}
	return runnerv1.SessionStrategyUnspecified
}

// project returns nil unless --project-root or --env-file was given.
func (f *targetFlags) project() *runnerv1.Project {
	if f.root == "" && len(f.envFiles) == 0 {
		return nil
	}
	return &runnerv1.Project{Root: f.root, EnvLoadOrder: f.envFiles}
}

// parseKeyValues turns KEY=VALUE pairs into a map. Later keys win.
func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%q: %w", pair, errInvalidKeyValue)
		}
		out[key] = value
	}
	return out, nil
}

// rpcError wraps a failed RPC with suggestions for the user.
func rpcError(err error, operation, resource string) error {
	if err == nil {
		return nil
	}
	return issue.FromRPC(err, operation, resource)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// renderTable formats rows under bold headers.
func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorMuted)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		}).
		String()
}

func formatProject(p *runnerv1.Project) string {
	if p == nil {
		return "-"
	}
	if len(p.EnvLoadOrder) == 0 {
		return p.Root
	}
	return p.Root + " (" + strings.Join(p.EnvLoadOrder, ", ") + ")"
}

func formatMetadata(m map[string]string) string {
	if len(m) == 0 {
		return "-"
	}
	pairs := make([]string, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, k+"="+v)
	}
	slices.Sort(pairs)
	return strings.Join(pairs, ", ")
}
