// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/runnerd/runnerd/pkg/api/runnerv1"
)

// watchResize sends the terminal size on every SIGWINCH.
func watchResize(ctx context.Context, fd int, s *execStream) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGWINCH)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
			ws := terminalSize(fd)
			if ws == nil {
				continue
			}
			if err := s.send(&runnerv1.ExecuteRequest{Winsize: ws}); err != nil {
				return
			}
		}
	}
}
