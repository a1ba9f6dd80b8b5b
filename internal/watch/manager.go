// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/runnerd/runnerd/internal/session"
)

type (
	// ReloadFunc loads a project's env files into a session again.
	ReloadFunc func(ctx context.Context, sessionID string, project *session.Project) error

	// Manager keeps one Watcher per session project.
	Manager struct {
		reload   ReloadFunc
		debounce time.Duration
		logger   *log.Logger

		mu      sync.Mutex
		watches map[string]*projectWatch
		closed  bool
	}

	projectWatch struct {
		cancel context.CancelFunc
		done   chan struct{}
	}
)

// NewManager creates a Manager that calls reload when env files change.
func NewManager(reload ReloadFunc, debounce time.Duration, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Manager{
		reload:   reload,
		debounce: debounce,
		logger:   logger,
		watches:  make(map[string]*projectWatch),
	}
}

// Watch starts watching the env files of project for a session, replacing
// any previous watch of that session. Projects with no env files or a
// non-local root are not watched.
func (m *Manager) Watch(sessionID string, project *session.Project) error {
	if project == nil || len(project.EnvLoadOrder) == 0 || strings.Contains(project.Root, "://") {
		m.Stop(context.Background(), sessionID)
		return nil
	}

	p := &session.Project{Root: project.Root, EnvLoadOrder: append([]string(nil), project.EnvLoadOrder...)}
	ctx, cancel := context.WithCancel(context.Background())
	pw := &projectWatch{cancel: cancel, done: make(chan struct{})}

	w, err := New(Config{
		Root:     p.Root,
		Patterns: p.EnvLoadOrder,
		Debounce: m.debounce,
		Logger:   m.logger,
		OnChange: func(ctx context.Context, changed []string) error {
			m.logger.Info("env files changed, reloading", "session", sessionID, "files", changed)
			err := m.reload(ctx, sessionID, p)
			if errors.Is(err, session.ErrSessionNotFound) {
				m.logger.Info("session gone, ending env file watch", "session", sessionID)
				m.forget(sessionID, pw)
				return nil
			}
			return err
		},
	})
	if err != nil {
		cancel()
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		_ = w.fsw.Close() // Never run
		return nil
	}
	prev := m.watches[sessionID]
	m.watches[sessionID] = pw
	m.mu.Unlock()
	prev.stop()

	go func() {
		defer close(pw.done)
		if err := w.Run(ctx); err != nil {
			m.logger.Error("env file watch stopped", "session", sessionID, "error", err)
		}
	}()
	return nil
}

// Stop ends the watch of a session. It matches the session.DeleteHook
// signature.
func (m *Manager) Stop(_ context.Context, sessionID string) {
	m.mu.Lock()
	pw := m.watches[sessionID]
	delete(m.watches, sessionID)
	m.mu.Unlock()
	pw.stop()
}

// forget drops pw if it is still the watch of sessionID and cancels it
// without waiting, so it can run on the watch goroutine itself.
func (m *Manager) forget(sessionID string, pw *projectWatch) {
	m.mu.Lock()
	if m.watches[sessionID] == pw {
		delete(m.watches, sessionID)
	}
	m.mu.Unlock()
	pw.cancel()
}

// Watching reports whether a session's project is being watched.
func (m *Manager) Watching(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.watches[sessionID]
	return ok
}

// Close stops every watch. Later Watch calls are no-ops.
func (m *Manager) Close() {
	m.mu.Lock()
	watches := m.watches
	m.watches = make(map[string]*projectWatch)
	m.closed = true
	m.mu.Unlock()

	for _, pw := range watches {
		pw.stop()
	}
}

func (pw *projectWatch) stop() {
	if pw == nil {
		return
	}
	pw.cancel()
	<-pw.done
}
