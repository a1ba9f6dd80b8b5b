// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Base carries the lifecycle of a server. Concrete servers embed it and
// drive the transitions from their Start and Stop methods.
//
// A Base is single-use: once stopped or failed, create a new server.
type Base struct {
	state atomic.Int32

	// mu serializes the side effects of transitions.
	mu      sync.Mutex
	lastErr error
	hooks   []TransitionHook
	closed  bool

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	servingCh chan struct{}
	errCh     chan error
}

// NewBase creates a Base in StateCreated.
func NewBase(opts ...Option) *Base {
	b := &Base{
		servingCh: make(chan struct{}),
		errCh:     make(chan error, 1),
	}
	b.state.Store(int32(StateCreated))
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current state (atomic, lock-free read).
func (b *Base) State() State {
	return State(b.state.Load())
}

// IsServing reports whether the server accepts requests.
func (b *Base) IsServing() bool {
	return b.State() == StateServing
}

// Err delivers asynchronous serving errors. It is closed once the server
// has stopped.
func (b *Base) Err() <-chan error {
	return b.errCh
}

// LastError returns the error that failed the server, or nil.
func (b *Base) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Context is cancelled when the server starts draining or fails. It is nil
// before BeginStart.
func (b *Base) Context() context.Context {
	return b.ctx
}

// BeginStart moves Created to Starting. A cancelled ctx fails the server
// instead.
func (b *Base) BeginStart(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		err = fmt.Errorf("context cancelled before start: %w", err)
		b.Fail(err)
		return err
	}

	serverCtx, cancel := context.WithCancel(context.Background())
	b.mu.Lock()
	if current := b.State(); current != StateCreated {
		b.mu.Unlock()
		cancel()
		return &TransitionError{From: current, To: StateStarting}
	}
	b.ctx, b.cancel = serverCtx, cancel
	b.state.Store(int32(StateStarting))
	b.mu.Unlock()

	b.notify(StateCreated, StateStarting)
	return nil
}

// MarkServing moves Starting to Serving and releases WaitServing callers.
func (b *Base) MarkServing() {
	if b.swap(StateStarting, StateServing) {
		close(b.servingCh)
	}
}

// Fail records err, moves the server to Failed and publishes err on Err.
func (b *Base) Fail(err error) {
	b.mu.Lock()
	b.lastErr = err
	from := State(b.state.Swap(int32(StateFailed)))
	cancel := b.cancel
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	b.SendError(err)
	b.notify(from, StateFailed)
}

// BeginDrain moves Starting or Serving to Draining and reports whether the
// caller owns the shutdown. A server that never started is marked Stopped.
func (b *Base) BeginDrain() bool {
	for {
		current := b.State()
		switch current {
		case StateCreated:
			if b.swap(StateCreated, StateStopped) {
				return false
			}
		case StateStarting, StateServing:
			if b.swap(current, StateDraining) {
				b.cancel()
				return true
			}
		default:
			return false
		}
	}
}

// MarkStopped waits for every tracked goroutine, moves a non-failed server
// to Stopped and closes the error channel.
func (b *Base) MarkStopped() {
	b.wg.Wait()
	for {
		current := b.State()
		if current == StateFailed || current == StateStopped {
			break
		}
		if b.swap(current, StateStopped) {
			break
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.errCh)
	}
}

// WaitServing blocks until the server is serving or ctx is done.
func (b *Base) WaitServing(ctx context.Context) error {
	select {
	case <-b.servingCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for server: %w", ctx.Err())
	}
}

// Go runs fn on a tracked goroutine with the server context.
func (b *Base) Go(fn func(ctx context.Context)) {
	b.wg.Go(func() { fn(b.ctx) })
}

// SendError publishes err on Err without blocking; it is dropped when the
// channel is full.
func (b *Base) SendError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.errCh <- err:
	default:
	}
}

func (b *Base) swap(from, to State) bool {
	if !b.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	b.notify(from, to)
	return true
}

func (b *Base) notify(from, to State) {
	if from == to {
		return
	}
	for _, h := range b.hooks {
		h(from, to)
	}
}
