// SPDX-License-Identifier: MPL-2.0

package service

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/runnerd/runnerd/internal/executor"
	"github.com/runnerd/runnerd/internal/monitor"
	"github.com/runnerd/runnerd/internal/resolver"
	"github.com/runnerd/runnerd/internal/session"
	"github.com/runnerd/runnerd/internal/watch"
	"github.com/runnerd/runnerd/pkg/api/runnerv1"
)

var _ runnerv1.RunnerServiceServer = (*Service)(nil)

type (
	// Option configures a Service.
	Option func(*Service)

	// Service binds the runner RPCs to the domain packages.
	Service struct {
		store    *session.Store
		resolver *resolver.Resolver
		executor *executor.Executor
		monitor  *monitor.Monitor
		watches  *watch.Manager
		logger   *log.Logger
	}
)

// WithLogger sets the service logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithProjectWatcher reloads project env files of sessions when they
// change on disk.
func WithProjectWatcher(m *watch.Manager) Option {
	return func(s *Service) { s.watches = m }
}

// New creates a Service. Deleting a session kills its running executions
// and stops its project watch.
func New(store *session.Store, res *resolver.Resolver, exec *executor.Executor, opts ...Option) *Service {
	s := &Service{
		store:    store,
		resolver: res,
		executor: exec,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	s.monitor = monitor.New(store, s.logger)

	store.OnDelete(exec.KillSession)
	if s.watches != nil {
		store.OnDelete(s.watches.Stop)
	}
	return s
}

// watchProject (re)starts the env file watch of a session. Watch failures
// are logged; the session stays usable without it.
func (s *Service) watchProject(sessionID string, project *session.Project) {
	if s.watches == nil {
		return
	}
	if err := s.watches.Watch(sessionID, project); err != nil {
		s.logger.Warn("not watching project env files", "session", sessionID, "error", err)
		return
	}
	// A delete that ran before Watch registered found nothing to stop.
	if _, err := s.store.Get(sessionID); err != nil {
		s.watches.Stop(context.Background(), sessionID)
	}
}
