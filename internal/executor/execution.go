// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
	"golang.org/x/sync/errgroup"

	"github.com/runnerd/runnerd/internal/session"
	"github.com/runnerd/runnerd/pkg/types"
)

const (
	readChunkSize = 4096

	// interruptRetry is how often an interrupted shell is signalled again
	// until it exits or the grace period ends. A shell can drop a SIGINT
	// that lands while it is still setting up its EXIT trap.
	interruptRetry = 50 * time.Millisecond
)

// Execution is one running program. Output frames are delivered on
// Output; the channel closes once the process has exited and its
// environment has been written back, after which Wait returns the result.
type Execution struct {
	id        string
	sessionID string
	cfg       ProgramConfig
	storeOut  bool
	grace     time.Duration
	env       SessionEnv
	logger    *log.Logger

	state atomic.Int32
	stop  atomic.Int32

	// ioMu guards writes to the process and the closed flag.
	ioMu   sync.Mutex
	closed bool
	ptmx   *os.File
	stdin  io.WriteCloser

	cmd *exec.Cmd
	pid int

	// outMu guards mime detection and the stdout tail.
	outMu    sync.Mutex
	mimeType string
	tail     tailBuffer

	frames chan Frame
	stopCh chan StopSignal
	done   chan struct{}
	result Result
}

// ID returns the execution id (the run id when one was given).
func (x *Execution) ID() string { return x.id }

// SessionID returns the session the execution belongs to.
func (x *Execution) SessionID() string { return x.sessionID }

// Pid returns the process id, or 0 when the process never started.
func (x *Execution) Pid() int { return x.pid }

// State returns the current state (atomic, lock-free read).
func (x *Execution) State() State { return State(x.state.Load()) }

// Output returns the frame channel.
func (x *Execution) Output() <-chan Frame { return x.frames }

// Done is closed once the execution has reached a terminal state.
func (x *Execution) Done() <-chan struct{} { return x.done }

// Wait blocks until the execution ends or ctx is done.
func (x *Execution) Wait(ctx context.Context) (Result, error) {
	select {
	case <-x.done:
		return x.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Write sends input to the process: the PTY for interactive programs,
// stdin otherwise.
func (x *Execution) Write(p []byte) error {
	x.ioMu.Lock()
	defer x.ioMu.Unlock()

	if x.State() != StateRunning || x.closed {
		return ErrNotRunning
	}
	var w io.Writer = x.stdin
	if x.ptmx != nil {
		w = x.ptmx
	}
	if _, err := w.Write(p); err != nil {
		return fmt.Errorf("failed to write input: %w", err)
	}
	return nil
}

// Resize changes the PTY size. It is a no-op for non-interactive programs
// and outside Running.
func (x *Execution) Resize(ws Winsize) error {
	x.ioMu.Lock()
	defer x.ioMu.Unlock()

	if x.ptmx == nil || x.closed || x.State() != StateRunning {
		return nil
	}
	return pty.Setsize(x.ptmx, toPTYSize(ws))
}

// Stop requests an interrupt or a kill. Interrupt escalates to kill after
// the grace period. A stop requested while the execution is still pending
// is applied as soon as the process runs. Stop is a no-op once the
// execution has ended.
func (x *Execution) Stop(sig StopSignal) {
	if sig == StopNone || x.State().IsTerminal() {
		return
	}
	select {
	case x.stopCh <- sig:
	case <-x.done:
	}
}

func (x *Execution) start(p *program, ws *Winsize) {
	cmd := exec.Command(p.name, p.args...)
	cmd.Dir = p.dir
	cmd.Env = p.env
	x.cmd = cmd

	var readers []io.Reader
	var err error
	if x.cfg.Interactive {
		size := &pty.Winsize{Rows: defaultRows, Cols: defaultCols}
		if ws != nil && ws.Rows > 0 && ws.Cols > 0 {
			size = toPTYSize(*ws)
		}
		x.ptmx, err = pty.StartWithSize(cmd, size)
		readers = []io.Reader{x.ptmx}
	} else {
		setProcessGroup(cmd)
		readers, err = x.startPiped(cmd)
	}
	if err != nil {
		p.cleanup()
		x.finish(Result{State: StateFailed, Err: fmt.Errorf("failed to start %s: %w", p.name, err)})
		return
	}

	x.pid = cmd.Process.Pid
	x.state.Store(int32(StateRunning))
	x.logger.Debug("execution started", "id", x.id, "session", x.sessionID, "pid", x.pid, "program", p.name)

	go x.supervise(p, readers)
}

func (x *Execution) startPiped(cmd *exec.Cmd) ([]io.Reader, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	x.stdin = stdin
	return []io.Reader{stdout, stderr}, nil
}

// supervise pumps output, applies stop requests and collects the result.
func (x *Execution) supervise(p *program, readers []io.Reader) {
	exited := make(chan struct{})

	var g errgroup.Group
	g.Go(func() error {
		x.watchStops(exited, p.shell)
		return nil
	})
	g.Go(func() error {
		defer close(exited)

		var pumps errgroup.Group
		for i, r := range readers {
			toStderr := i == 1
			pumps.Go(func() error { return x.pump(r, toStderr) })
		}
		readErr := pumps.Wait()
		waitErr := x.cmd.Wait()

		x.ioMu.Lock()
		x.closed = true
		if x.ptmx != nil {
			_ = x.ptmx.Close() // Process already exited; nothing left to read
		}
		x.ioMu.Unlock()

		if readErr != nil {
			x.logger.Warn("output stream failed", "id", x.id, "error", readErr)
		}
		if waitErr != nil && x.cmd.ProcessState == nil {
			return waitErr
		}
		return nil
	})

	err := g.Wait()
	res := x.collect(err)
	if res.State == StateExited {
		x.captureEnv(p)
		x.storeStdout(res)
	}
	p.cleanup()
	x.finish(res)
}

func (x *Execution) watchStops(exited <-chan struct{}, retryInterrupt bool) {
	var grace, retry <-chan time.Time
	for {
		select {
		case <-exited:
			return
		case sig := <-x.stopCh:
			if StopSignal(x.stop.Load()) >= sig {
				continue
			}
			x.stop.Store(int32(sig))
			x.signal(sig)
			if sig != StopInterrupt {
				retry = nil
				continue
			}
			timer := time.NewTimer(x.grace)
			defer timer.Stop()
			grace = timer.C
			if retryInterrupt {
				ticker := time.NewTicker(interruptRetry)
				defer ticker.Stop()
				retry = ticker.C
			}
		case <-retry:
			if StopSignal(x.stop.Load()) == StopInterrupt {
				x.signal(StopInterrupt)
			}
		case <-grace:
			grace, retry = nil, nil
			x.logger.Debug("grace period over, killing", "id", x.id, "pid", x.pid)
			x.stop.Store(int32(StopKill))
			x.signal(StopKill)
		}
	}
}

func (x *Execution) signal(sig StopSignal) {
	if err := signalGroup(x.pid, sig); err != nil {
		x.logger.Warn("failed to signal process", "id", x.id, "pid", x.pid, "signal", sig, "error", err)
	}
}

func (x *Execution) pump(r io.Reader, toStderr bool) error {
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			x.emit(bytes.Clone(buf[:n]), toStderr)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || isPTYClosed(err) {
				return nil
			}
			return err
		}
	}
}

func (x *Execution) emit(data []byte, toStderr bool) {
	if toStderr {
		x.frames <- Frame{Stderr: data}
		return
	}

	x.outMu.Lock()
	frame := Frame{Stdout: data}
	if x.mimeType == "" {
		x.mimeType = http.DetectContentType(data)
		frame.MimeType = x.mimeType
	}
	if x.storeOut {
		x.tail.Write(data)
	}
	x.outMu.Unlock()

	x.frames <- frame
}

func (x *Execution) collect(err error) Result {
	res := Result{Pid: x.pid, MimeType: x.mimeType}
	if x.cmd.ProcessState == nil {
		res.State = StateFailed
		res.Err = err
		return res
	}

	code := exitCodeOf(x.cmd.ProcessState)
	res.ExitCode = &code
	switch StopSignal(x.stop.Load()) {
	case StopKill:
		res.State = StateKilled
	case StopInterrupt:
		res.State = StateInterrupted
	default:
		res.State = StateExited
	}
	return res
}

// captureEnv applies the diff between the environment the shell started
// with and the one it dumped on exit.
func (x *Execution) captureEnv(p *program) {
	if p.dumpPath == "" || x.sessionID == "" || x.env == nil {
		return
	}
	data, err := os.ReadFile(p.dumpPath)
	if err != nil || len(data) == 0 {
		return
	}
	after, err := parseDump(data)
	if err != nil {
		x.logger.Warn("ignoring unreadable env dump", "id", x.id, "error", err)
		return
	}

	set, unset := diffEnv(p.env, after)
	if len(set) == 0 && len(unset) == 0 {
		return
	}
	origin := "exec:" + x.id
	for i := range set {
		set[i].Origin = origin
	}
	if err := x.env.SetEnv(x.sessionID, set, unset); err != nil {
		x.logger.Debug("env changes not stored", "id", x.id, "session", x.sessionID, "error", err)
	}
}

// storeStdout saves the trailing stdout of a successful run under "__"
// and, when valid, the config's known name.
func (x *Execution) storeStdout(res Result) {
	if !x.storeOut || x.sessionID == "" || x.env == nil || res.ExitCode == nil || !res.ExitCode.IsSuccess() {
		return
	}

	x.outMu.Lock()
	value := strings.TrimRight(x.tail.String(), "\r\n")
	x.outMu.Unlock()

	set := []session.Assignment{{Name: "__", Value: value, Origin: session.OriginStdout}}
	if name := x.cfg.KnownName; name != "" {
		if err := ValidateKnownName(name); err != nil {
			x.logger.Warn("not storing stdout under known name", "id", x.id, "error", err)
		} else {
			set = append(set, session.Assignment{Name: name, Value: value, Origin: session.OriginStdout})
		}
	}
	if err := x.env.SetEnv(x.sessionID, set, nil); err != nil {
		x.logger.Debug("stdout not stored", "id", x.id, "session", x.sessionID, "error", err)
	}
}

func (x *Execution) finish(res Result) {
	x.result = res
	x.state.Store(int32(res.State))
	close(x.frames)
	close(x.done)

	var code types.ExitCode = -1
	if res.ExitCode != nil {
		code = *res.ExitCode
	}
	x.logger.Debug("execution finished", "id", x.id, "state", res.State, "exit_code", code, "error", res.Err)
}

func toPTYSize(ws Winsize) *pty.Winsize {
	return &pty.Winsize{Rows: ws.Rows, Cols: ws.Cols, X: ws.X, Y: ws.Y}
}
