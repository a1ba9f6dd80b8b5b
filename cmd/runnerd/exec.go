// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/runnerd/runnerd/internal/issue"
	"github.com/runnerd/runnerd/pkg/api/runnerv1"
)

const stdinChunkSize = 32 << 10

var errScriptFromStdin = errors.New("--stdin cannot be combined with a script read from stdin")

type execFlags struct {
	target      targetFlags
	commands    []string
	script      string
	interactive bool
	stdin       bool
	language    string
	knownName   string
	storeStdout bool
	dir         string
	env         []string
	runID       string
}

// execStream serializes sends on an Execute stream; input, resize and stop
// frames come from different goroutines.
type execStream struct {
	mu     sync.Mutex
	stream runnerv1.ExecuteClient
}

func newExecCommand(app *App) *cobra.Command {
	var f execFlags

	cmd := &cobra.Command{
		Use:   "exec [PROGRAM [ARG...]]",
		Short: "Run a program on the server",
		Long: `Run a program on the server and stream its output.

The program is either PROGRAM with its arguments, a list of commands
(-c, repeatable) or a script (-f FILE, or -f - to read it from stdin).
Commands and scripts run in PROGRAM when given, otherwise in the
interpreter of --lang or the default shell.

Variables exported by a shell program are kept in the session and seen
by later executions. The exit code of the program becomes the exit code
of this command.

Interrupt (Ctrl-C) asks the server to interrupt the program; a second
interrupt kills it.`,
		Example: `  runnerd exec --most-recent -c 'export NAME=world'
  runnerd exec --most-recent -c 'echo hello $NAME'
  runnerd exec -s 0123 -f deploy.sh --store-stdout --known-name DEPLOY
  runnerd exec -t bash`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(app, args)
			if err != nil {
				return err
			}
			return runExec(cmd.Context(), app, req, f.interactive || f.stdin)
		},
	}

	flags := cmd.Flags()
	f.target.register(cmd)
	flags.StringArrayVarP(&f.commands, "command", "c", nil, "command line to run (repeatable)")
	flags.StringVarP(&f.script, "script", "f", "", "script file to run, - for stdin")
	flags.BoolVarP(&f.interactive, "interactive", "t", false, "run in a pseudo-terminal and forward the local terminal")
	flags.BoolVar(&f.stdin, "stdin", false, "forward stdin to the program")
	flags.StringVar(&f.language, "lang", "", "language id selecting the interpreter (e.g. python, js)")
	flags.StringVar(&f.knownName, "known-name", "", "name stdout is stored under with --store-stdout")
	flags.BoolVar(&f.storeStdout, "store-stdout", false, "store stdout of a successful run in the session")
	flags.StringVarP(&f.dir, "dir", "C", "", "working directory of the program")
	flags.StringArrayVarP(&f.env, "env", "e", nil, "variable NAME=value for this execution only (repeatable)")
	flags.StringVar(&f.runID, "run-id", "", "client-chosen id of this run")
	cmd.MarkFlagsMutuallyExclusive("command", "script")
	return cmd
}

// request builds the first frame of the stream.
func (f *execFlags) request(app *App, args []string) (*runnerv1.ExecuteRequest, error) {
	cfg := &runnerv1.ProgramConfig{
		Directory:   f.dir,
		Env:         f.env,
		Interactive: f.interactive,
		LanguageID:  f.language,
		KnownName:   f.knownName,
		RunID:       f.runID,
	}
	if len(args) > 0 {
		cfg.ProgramName = args[0]
		cfg.Arguments = args[1:]
	}

	switch {
	case len(f.commands) > 0:
		cfg.Source = &runnerv1.CommandList{Items: f.commands}
	case f.script != "":
		text, err := f.readScript(app)
		if err != nil {
			return nil, err
		}
		cfg.Source = runnerv1.Script(text)
	case len(args) == 0 && !f.interactive:
		return nil, errors.New("nothing to run: give a PROGRAM, -c or -f")
	}

	return &runnerv1.ExecuteRequest{
		Config:           cfg,
		SessionID:        f.target.session,
		SessionStrategy:  f.target.strategy(),
		Project:          f.target.project(),
		StoreStdoutInEnv: f.storeStdout,
	}, nil
}

func (f *execFlags) readScript(app *App) (string, error) {
	if f.script != "-" {
		data, err := os.ReadFile(f.script)
		if err != nil {
			return "", issue.WrapWithContext(err, "read script", f.script)
		}
		return string(data), nil
	}
	if f.stdin || f.interactive {
		return "", errScriptFromStdin
	}
	data, err := io.ReadAll(app.stdin)
	if err != nil {
		return "", issue.WrapWithContext(err, "read script", "stdin")
	}
	return string(data), nil
}

// runExec streams one execution. The stream outlives cmd's context so an
// interrupt becomes a stop frame instead of a cancelled RPC.
func runExec(ctx context.Context, app *App, req *runnerv1.ExecuteRequest, forwardStdin bool) error {
	c, err := app.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	stream, err := c.Execute(streamCtx)
	if err != nil {
		return rpcError(err, "execute", c.address)
	}
	s := &execStream{stream: stream}

	if req.Config.Interactive {
		restore, ws := enterRawMode(app.stdin)
		defer restore()
		req.Winsize = ws
		if fd, ok := terminalFd(app.stdin); ok {
			go watchResize(streamCtx, fd, s)
		}
	}

	if err := s.send(req); err != nil {
		return rpcError(err, "execute", c.address)
	}

	go forwardInterrupts(streamCtx, s)
	if forwardStdin {
		go forwardInput(streamCtx, app.stdin, s)
	}

	var last *runnerv1.ExecuteResponse
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rpcError(err, "execute", c.address)
		}
		if len(resp.StdoutData) > 0 {
			_, _ = app.stdout.Write(resp.StdoutData)
		}
		if len(resp.StderrData) > 0 {
			_, _ = app.stderr.Write(resp.StderrData)
		}
		if resp.ExitCode != nil || resp.State != runnerv1.ExecuteStateUnspecified {
			last = resp
		}
	}
	return exitErrorFor(last)
}

func (s *execStream) send(req *runnerv1.ExecuteRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.Send(req)
}

// forwardInterrupts turns the first interrupt into a stop request and any
// further one into a kill.
func forwardInterrupts(ctx context.Context, s *execStream) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	stop := runnerv1.ExecuteStopInterrupt
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
			if err := s.send(&runnerv1.ExecuteRequest{Stop: stop}); err != nil {
				return
			}
			stop = runnerv1.ExecuteStopKill
		}
	}
}

// forwardInput sends stdin as input frames. EOF ends forwarding but leaves
// the send side open; a half-close would interrupt the program.
func forwardInput(ctx context.Context, r io.Reader, s *execStream) {
	buf := make([]byte, stdinChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if sendErr := s.send(&runnerv1.ExecuteRequest{InputData: data}); sendErr != nil {
				return
			}
		}
		if err != nil || ctx.Err() != nil {
			return
		}
	}
}

func terminalFd(r io.Reader) (int, bool) {
	f, ok := r.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

// enterRawMode puts a terminal stdin into raw mode and reports its size.
// Non-terminal input is left alone.
func enterRawMode(stdin io.Reader) (restore func(), ws *runnerv1.Winsize) {
	fd, ok := terminalFd(stdin)
	if !ok {
		return func() {}, nil
	}

	ws = terminalSize(fd)
	state, err := term.MakeRaw(fd)
	if err != nil {
		return func() {}, ws
	}
	return func() { _ = term.Restore(fd, state) }, ws
}

func terminalSize(fd int) *runnerv1.Winsize {
	cols, rows, err := term.GetSize(fd)
	if err != nil || cols <= 0 || rows <= 0 {
		return nil
	}
	return &runnerv1.Winsize{Rows: uint32(rows), Cols: uint32(cols)}
}
