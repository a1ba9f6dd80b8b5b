// SPDX-License-Identifier: MPL-2.0

package serverbase

type (
	// Option configures a Base.
	Option func(*Base)

	// TransitionHook observes every state change.
	TransitionHook func(from, to State)
)

// WithErrorBuffer sets the capacity of the asynchronous error channel.
// The default is 1.
func WithErrorBuffer(size int) Option {
	return func(b *Base) { b.errCh = make(chan error, size) }
}

// WithTransitionHook registers a hook called after each state change. Hooks
// run on the goroutine that made the transition and must not block.
func WithTransitionHook(h TransitionHook) Option {
	return func(b *Base) { b.hooks = append(b.hooks, h) }
}
