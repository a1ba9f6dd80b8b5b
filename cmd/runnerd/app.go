// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/runnerd/runnerd/internal/config"
	"github.com/runnerd/runnerd/internal/issue"
	"github.com/runnerd/runnerd/pkg/api/runnerv1"
)

type (
	// DialFunc opens a client connection to the runner server at address.
	DialFunc func(ctx context.Context, address string, maxRecvMsgSize int) (*grpc.ClientConn, error)

	// App wires CLI dependencies. It is the composition root for the CLI
	// layer; every command constructor receives it.
	App struct {
		Config config.Provider
		dial   DialFunc
		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer
		flags  rootFlags
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Dial   DialFunc
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	rootFlags struct {
		verbose    bool
		configFile string
		address    string
		timeout    time.Duration
	}

	// client is an open connection to the runner server.
	client struct {
		runnerv1.RunnerServiceClient
		conn    *grpc.ClientConn
		address string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Dial == nil {
		deps.Dial = dialTCP
	}

	return &App{
		Config: deps.Config,
		dial:   deps.Dial,
		stdin:  deps.Stdin,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}, nil
}

// loadConfig loads the configuration named by --config, if any.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	return a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.flags.configFile})
}

// newLogger creates the logger of a command. --verbose forces debug.
func (a *App) newLogger(cfg *config.Config, prefix string) *log.Logger {
	level, err := cfg.Log.Level.Level()
	if err != nil {
		level = log.InfoLevel
	}
	if a.flags.verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{
		Prefix:          prefix,
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
}

// connect dials the server named by --address or server.address.
func (a *App) connect(ctx context.Context) (*client, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	address := a.flags.address
	if address == "" {
		address = cfg.Server.Address
	}

	conn, err := a.dial(ctx, address, cfg.Server.MaxRecvMsgSize)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("connect to server").
			WithResource(address).
			WithSuggestion("Check --address or the server.address setting").
			WithIssue(issue.ServerUnreachableId).
			Wrap(err).
			BuildError()
	}
	return &client{RunnerServiceClient: runnerv1.NewRunnerServiceClient(conn), conn: conn, address: address}, nil
}

// rpcContext bounds a unary RPC by --timeout.
func (a *App) rpcContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.flags.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.flags.timeout)
}

// handleError prints errors the way fang does, plus actionable suggestions
// and the rendered catalog entry in verbose mode. Exit codes of executed
// programs are not errors and print nothing.
func (a *App) handleError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}

	fmt.Fprintln(w, styles.ErrorHeader.String())
	fmt.Fprintln(w, styles.ErrorText.Render(formatErrorForDisplay(err, a.flags.verbose)))

	var ae *issue.ActionableError
	if a.flags.verbose && errors.As(err, &ae) && ae.Issue != 0 {
		if entry := issue.Get(ae.Issue); entry != nil {
			if rendered, renderErr := entry.Render("dark"); renderErr == nil {
				fmt.Fprint(w, rendered)
			}
		}
	}
	fmt.Fprintln(w)
}

func (c *client) Close() error {
	return c.conn.Close()
}

func dialTCP(_ context.Context, address string, maxRecvMsgSize int) (*grpc.ClientConn, error) {
	return grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxRecvMsgSize)),
	)
}
