// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/runnerd/runnerd/internal/config"
	"github.com/runnerd/runnerd/internal/envfile"
	"github.com/runnerd/runnerd/internal/executor"
	"github.com/runnerd/runnerd/internal/issue"
	"github.com/runnerd/runnerd/internal/resolver"
	"github.com/runnerd/runnerd/internal/server"
	"github.com/runnerd/runnerd/internal/service"
	"github.com/runnerd/runnerd/internal/session"
	"github.com/runnerd/runnerd/internal/tracing"
	"github.com/runnerd/runnerd/internal/watch"
)

// runner is a fully wired server process.
type runner struct {
	server  *server.Server
	watches *watch.Manager
	tracing *tracing.Provider
	logger  *log.Logger

	shutdownTimeout time.Duration
}

func newServerCommand(app *App) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the runner service",
		Long: `Run the runner gRPC service in the foreground.

The server listens on --listen, falling back to server.address. It stops
gracefully on SIGINT or SIGTERM, waiting up to server.shutdown_timeout
for in-flight executions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.Address = listen
			}

			r, err := newRunner(cfg, app.newLogger(cfg, "server"), nil)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return r.run(ctx)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (default from server.address)")
	return cmd
}

// newRunner wires the server from cfg. A non-nil listener replaces the
// configured address.
func newRunner(cfg *config.Config, logger *log.Logger, listener net.Listener) (*runner, error) {
	provider, err := tracing.Setup(tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		Output:         cfg.Tracing.Output,
		ServiceName:    "runnerd",
		ServiceVersion: Version,
	})
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("set up tracing").
			WithResource(cfg.Tracing.Output).
			WithSuggestion("Check the tracing.output setting").
			Wrap(err).
			BuildError()
	}
	provider.Install()

	store := session.NewStore(
		session.WithEnvLoader(envfile.NewLoader(logger.WithPrefix("envfile"))),
		session.WithLogger(logger.WithPrefix("session")),
	)
	res := resolver.New(
		resolver.WithPolicy(resolver.DefaultPolicy{SecretPatterns: cfg.Resolver.SecretPatterns}),
		resolver.WithLogger(logger.WithPrefix("resolver")),
	)
	exec := executor.New(executor.Config{
		DefaultShell:    cfg.Executor.DefaultShell,
		GracePeriod:     cfg.Executor.GracePeriod,
		MaxStoredStdout: cfg.Executor.MaxStoredStdout,
		InheritHostEnv:  cfg.Executor.InheritHostEnv,
	}, store, logger.WithPrefix("executor"))

	svcOpts := []service.Option{service.WithLogger(logger.WithPrefix("service"))}
	var watches *watch.Manager
	if cfg.Project.WatchEnvFiles {
		watches = watch.NewManager(store.LoadProject, cfg.Project.WatchDebounce, logger.WithPrefix("watch"))
		svcOpts = append(svcOpts, service.WithProjectWatcher(watches))
	}
	svc := service.New(store, res, exec, svcOpts...)

	srvOpts := []server.Option{
		server.WithLogger(logger),
		server.WithTracer(provider.Tracer()),
	}
	if listener != nil {
		srvOpts = append(srvOpts, server.WithListener(listener))
	}
	srv := server.New(server.Config{
		Address:         cfg.Server.Address,
		MaxRecvMsgSize:  cfg.Server.MaxRecvMsgSize,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, svc, srvOpts...)

	return &runner{
		server:          srv,
		watches:         watches,
		tracing:         provider,
		logger:          logger,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}, nil
}

// run serves until ctx is done or the server fails, then shuts down.
func (r *runner) run(ctx context.Context) error {
	if err := r.server.Start(ctx); err != nil {
		r.shutdown()
		return issue.NewErrorContext().
			WithOperation("start server").
			WithResource(r.server.Addr()).
			WithSuggestion("Check that no other process listens on the address").
			WithSuggestion("Pick another address with --listen").
			Wrap(err).
			BuildError()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutting down")
	case err, ok := <-r.server.Err():
		if ok {
			serveErr = fmt.Errorf("server failed: %w", err)
		}
	}

	return errors.Join(serveErr, r.shutdown())
}

func (r *runner) shutdown() error {
	// The drain has its own timeout; ctx only bounds span export.
	stopErr := r.server.Stop(context.Background())
	if r.watches != nil {
		r.watches.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.shutdownTimeout)
	defer cancel()
	return errors.Join(stopErr, r.tracing.Shutdown(ctx))
}
