// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"mvdan.cc/sh/v3/syntax"

	"github.com/runnerd/runnerd/internal/issue"
	"github.com/runnerd/runnerd/internal/tui"
	"github.com/runnerd/runnerd/pkg/api/runnerv1"
)

var errUnknownMode = errors.New("unknown mode")

type resolveFlags struct {
	target   targetFlags
	commands []string
	script   string
	mode     string
	env      []string
	prompt   bool
	asJSON   bool
}

func newResolveCommand(app *App) *cobra.Command {
	var f resolveFlags

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show which variables a program needs",
		Long: `Analyze the variables a program exports and references, and classify
each one against the session environment.

Resolved variables already have a value. Unresolved ones carry either a
message, a placeholder or are secrets. With --prompt, runnerd asks for every
unresolved variable and prints a ready-to-run program: the answers as
export lines followed by the rewritten source.`,
		Example: `  runnerd resolve -f deploy.sh --most-recent
  runnerd resolve -c 'export TOKEN=""' --mode prompt-all
  runnerd resolve -f deploy.sh --prompt > prepared.sh`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := f.request(app)
			if err != nil {
				return err
			}

			c, err := app.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := app.rpcContext(cmd.Context())
			defer cancel()
			resp, err := c.ResolveProgram(ctx, req)
			if err != nil {
				return rpcError(err, "resolve program", c.address)
			}

			switch {
			case f.asJSON:
				return writeJSON(app.stdout, resp)
			case f.prompt:
				return promptAndPrint(cmd.Context(), app, resp)
			default:
				printVars(app.stdout, resp.Vars)
				return nil
			}
		},
	}

	flags := cmd.Flags()
	f.target.register(cmd)
	flags.StringArrayVarP(&f.commands, "command", "c", nil, "command line to analyze (repeatable)")
	flags.StringVarP(&f.script, "script", "f", "", "script file to analyze, - for stdin")
	flags.StringVar(&f.mode, "mode", "auto", "classification mode: auto, prompt-all or skip-all")
	flags.StringArrayVarP(&f.env, "env", "e", nil, "extra bound variable NAME=value (repeatable)")
	flags.BoolVar(&f.prompt, "prompt", false, "ask for unresolved variables and print the prepared program")
	flags.BoolVar(&f.asJSON, "json", false, "print the response as JSON")
	cmd.MarkFlagsMutuallyExclusive("command", "script")
	cmd.MarkFlagsMutuallyExclusive("prompt", "json")
	cmd.MarkFlagsOneRequired("command", "script")
	return cmd
}

func (f *resolveFlags) request(app *App) (*runnerv1.ResolveProgramRequest, error) {
	mode, err := parseResolveMode(f.mode)
	if err != nil {
		return nil, err
	}

	req := &runnerv1.ResolveProgramRequest{
		Mode:            mode,
		Env:             f.env,
		SessionID:       f.target.session,
		SessionStrategy: f.target.strategy(),
		Project:         f.target.project(),
	}
	if len(f.commands) > 0 {
		req.Source = &runnerv1.CommandList{Items: f.commands}
		return req, nil
	}

	var data []byte
	resource := f.script
	if f.script == "-" {
		resource = "stdin"
		data, err = io.ReadAll(app.stdin)
	} else {
		data, err = os.ReadFile(f.script)
	}
	if err != nil {
		return nil, issue.WrapWithContext(err, "read script", resource)
	}
	req.Source = runnerv1.Script(data)
	return req, nil
}

func parseResolveMode(s string) (runnerv1.ResolveProgramMode, error) {
	switch s {
	case "", "auto":
		return runnerv1.ResolveProgramModeUnspecified, nil
	case "prompt-all":
		return runnerv1.ResolveProgramModePromptAll, nil
	case "skip-all":
		return runnerv1.ResolveProgramModeSkipAll, nil
	default:
		return 0, fmt.Errorf("%w %q (want auto, prompt-all or skip-all)", errUnknownMode, s)
	}
}

func printVars(w io.Writer, vars []*runnerv1.VarResult) {
	if len(vars) == 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("No variables."))
		return
	}
	rows := make([][]string, 0, len(vars))
	for _, v := range vars {
		rows = append(rows, []string{v.Name, statusLabel(v.Status), v.OriginalValue, displayValue(v)})
	}
	fmt.Fprintln(w, renderTable([]string{"NAME", "STATUS", "ORIGINAL", "RESOLVED"}, rows))
}

func statusLabel(s runnerv1.ResolveProgramStatus) string {
	if s == runnerv1.ResolveProgramStatusResolved {
		return SuccessStyle.Render(s.String())
	}
	return WarningStyle.Render(s.String())
}

func displayValue(v *runnerv1.VarResult) string {
	if v.Status == runnerv1.ResolveProgramStatusUnresolvedWithSecret && v.ResolvedValue != "" {
		return strings.Repeat("*", 8)
	}
	return v.ResolvedValue
}

// varPrompts lists the unresolved variables in response order.
func varPrompts(vars []*runnerv1.VarResult) []tui.VarPrompt {
	var prompts []tui.VarPrompt
	for _, v := range vars {
		p := tui.VarPrompt{Name: v.Name}
		switch v.Status {
		case runnerv1.ResolveProgramStatusUnresolvedWithMessage:
			p.Description = v.OriginalValue
		case runnerv1.ResolveProgramStatusUnresolvedWithPlaceholder:
			p.Placeholder = v.OriginalValue
		case runnerv1.ResolveProgramStatusUnresolvedWithSecret:
			p.Secret = true
		default:
			continue
		}
		prompts = append(prompts, p)
	}
	return prompts
}

func promptAndPrint(ctx context.Context, app *App, resp *runnerv1.ResolveProgramResponse) error {
	cfg := tui.DefaultConfig()
	cfg.Input = app.stdin
	// stdout carries the prepared program.
	cfg.Output = app.stderr
	answers, err := tui.PromptVars(ctx, cfg, varPrompts(resp.Vars))
	if err != nil {
		return err
	}

	prelude, err := exportLines(resp.Vars, answers)
	if err != nil {
		return err
	}
	fmt.Fprint(app.stdout, prelude)
	fmt.Fprint(app.stdout, sourceText(resp.Source))
	return nil
}

// exportLines renders answers, and the resolved values the program
// declares, as bash export statements in response order.
func exportLines(vars []*runnerv1.VarResult, answers map[string]string) (string, error) {
	var b strings.Builder
	seen := make(map[string]bool, len(vars))
	for _, v := range vars {
		if seen[v.Name] {
			continue
		}
		value, ok := answers[v.Name]
		if !ok {
			if v.Status != runnerv1.ResolveProgramStatusResolved {
				continue
			}
			value = v.ResolvedValue
		}
		quoted, err := syntax.Quote(value, syntax.LangBash)
		if err != nil {
			return "", fmt.Errorf("quote %s: %w", v.Name, err)
		}
		seen[v.Name] = true
		fmt.Fprintf(&b, "export %s=%s\n", v.Name, quoted)
	}
	return b.String(), nil
}

func sourceText(src runnerv1.Source) string {
	switch s := src.(type) {
	case *runnerv1.CommandList:
		if len(s.Items) == 0 {
			return ""
		}
		return strings.Join(s.Items, "\n") + "\n"
	case runnerv1.Script:
		text := string(s)
		if text != "" && !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		return text
	default:
		return ""
	}
}
