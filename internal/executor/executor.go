// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const (
	frameBuffer = 64
	stopBuffer  = 4
)

// Executor starts executions and tracks them per session so that deleting
// a session can kill what still runs in it.
type Executor struct {
	cfg    Config
	env    SessionEnv
	logger *log.Logger

	mu        sync.Mutex
	bySession map[string]map[*Execution]struct{}
}

// New creates an Executor. env may be nil for executions without sessions.
func New(cfg Config, env SessionEnv, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultConfig().GracePeriod
	}
	return &Executor{
		cfg:       cfg,
		env:       env,
		logger:    logger,
		bySession: make(map[string]map[*Execution]struct{}),
	}
}

// Start builds the program and starts it. The returned execution is
// Running, or already Failed when the process could not be spawned; the
// error is reserved for configs that cannot be turned into a program.
func (e *Executor) Start(opts Options) (*Execution, error) {
	cfg := opts.Config

	var base, sessionEnv []string
	if e.cfg.InheritHostEnv {
		base = os.Environ()
	}
	if opts.SessionID != "" && e.env != nil {
		var err error
		if sessionEnv, err = e.env.Environ(opts.SessionID); err != nil {
			return nil, err
		}
	}
	layers := [][]string{base, sessionEnv, cfg.Env}
	if cfg.Interactive {
		layers = append([][]string{{"TERM=xterm-256color"}}, layers...)
	}
	env := mergeEnv(layers...)

	p, err := e.buildProgram(cfg, env)
	if err != nil {
		return nil, err
	}

	x := e.newExecution(opts)
	e.track(x)
	if opts.SessionID != "" && e.env != nil {
		// The session may have been deleted between reading its env and
		// tracking x; its delete hook has then already run.
		if _, err := e.env.Environ(opts.SessionID); err != nil {
			x.Stop(StopKill)
		}
	}
	x.start(p, opts.Winsize)
	return x, nil
}

// newExecution creates a pending execution of opts.
func (e *Executor) newExecution(opts Options) *Execution {
	cfg := opts.Config
	id := cfg.RunID
	if id == "" {
		id = uuid.NewString()
	}
	return &Execution{
		id:        id,
		sessionID: opts.SessionID,
		cfg:       cfg,
		storeOut:  opts.StoreStdoutInEnv,
		grace:     e.cfg.GracePeriod,
		env:       e.env,
		logger:    e.logger,
		tail:      tailBuffer{max: e.cfg.MaxStoredStdout},
		frames:    make(chan Frame, frameBuffer),
		stopCh:    make(chan StopSignal, stopBuffer),
		done:      make(chan struct{}),
	}
}

// KillSession kills every running execution of a session. It matches the
// session.DeleteHook signature.
func (e *Executor) KillSession(_ context.Context, sessionID string) {
	for _, x := range e.Running(sessionID) {
		e.logger.Info("killing execution of deleted session", "id", x.id, "session", sessionID)
		x.Stop(StopKill)
	}
}

// Running returns the executions of a session that have not ended yet.
func (e *Executor) Running(sessionID string) []*Execution {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*Execution, 0, len(e.bySession[sessionID]))
	for x := range e.bySession[sessionID] {
		out = append(out, x)
	}
	return out
}

func (e *Executor) track(x *Execution) {
	e.mu.Lock()
	set, ok := e.bySession[x.sessionID]
	if !ok {
		set = make(map[*Execution]struct{})
		e.bySession[x.sessionID] = set
	}
	set[x] = struct{}{}
	e.mu.Unlock()

	go func() {
		<-x.done
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.bySession[x.sessionID], x)
		if len(e.bySession[x.sessionID]) == 0 {
			delete(e.bySession, x.sessionID)
		}
	}()
}
