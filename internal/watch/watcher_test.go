// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/runnerd/runnerd/internal/session"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// startWatcher runs a watcher and returns a channel of callback payloads.
func startWatcher(t *testing.T, cfg Config) <-chan []string {
	t.Helper()

	calls := make(chan []string, 10)
	cfg.OnChange = func(_ context.Context, changed []string) error {
		calls <- changed
		return nil
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = 100 * time.Millisecond
	}
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})
	return calls
}

func waitCall(t *testing.T, calls <-chan []string) []string {
	t.Helper()

	select {
	case changed := <-calls:
		return changed
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
		return nil
	}
}

func TestWatcherDebounce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	calls := startWatcher(t, Config{Root: dir, Patterns: []string{".env", ".env.local"}})

	writeFile(t, filepath.Join(dir, ".env"), "A=1\n")
	time.Sleep(10 * time.Millisecond)
	writeFile(t, filepath.Join(dir, ".env.local"), "A=2\n")

	if diff := cmp.Diff([]string{".env", ".env.local"}, waitCall(t, calls)); diff != "" {
		t.Errorf("changed mismatch (-want +got):\n%s", diff)
	}

	select {
	case extra := <-calls:
		t.Errorf("unexpected second callback with %v", extra)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	calls := startWatcher(t, Config{Root: dir, Patterns: []string{".env"}})

	writeFile(t, filepath.Join(dir, "notes.txt"), "x")
	select {
	case changed := <-calls:
		t.Fatalf("callback fired for unwatched file: %v", changed)
	case <-time.After(300 * time.Millisecond):
	}

	writeFile(t, filepath.Join(dir, ".env"), "A=1\n")
	if diff := cmp.Diff([]string{".env"}, waitCall(t, calls)); diff != "" {
		t.Errorf("changed mismatch (-want +got):\n%s", diff)
	}
}

func TestWatcherNestedPatterns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "env", "dev"), 0o755); err != nil {
		t.Fatal(err)
	}
	calls := startWatcher(t, Config{Root: dir, Patterns: []string{"env/**/*.env"}})

	writeFile(t, filepath.Join(dir, "env", "dev", "app.env"), "A=1\n")
	if diff := cmp.Diff([]string{"env/dev/app.env"}, waitCall(t, calls)); diff != "" {
		t.Errorf("changed mismatch (-want +got):\n%s", diff)
	}
}

func TestWatcherRunTwice(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Root: t.TempDir(), Patterns: []string{".env"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if err := w.Run(ctx); err == nil {
		t.Error("second Run() succeeded, want error")
	}
}

func TestNewInvalidPattern(t *testing.T) {
	t.Parallel()

	for _, pat := range []string{"", "[unclosed"} {
		_, err := New(Config{Root: t.TempDir(), Patterns: []string{pat}})
		if !errors.Is(err, ErrInvalidPattern) {
			t.Errorf("New(%q) error = %v, want ErrInvalidPattern", pat, err)
		}
	}
}

func TestManager(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var (
		mu       sync.Mutex
		reloaded []string
	)
	done := make(chan struct{}, 1)
	m := NewManager(func(_ context.Context, id string, p *session.Project) error {
		mu.Lock()
		reloaded = append(reloaded, id+":"+p.Root)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, 50*time.Millisecond, nil)
	t.Cleanup(m.Close)

	if err := m.Watch("s1", &session.Project{Root: dir, EnvLoadOrder: []string{".env"}}); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if !m.Watching("s1") {
		t.Fatal("Watching() = false after Watch")
	}

	writeFile(t, filepath.Join(dir, ".env"), "A=1\n")
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	mu.Lock()
	if diff := cmp.Diff([]string{"s1:" + dir}, reloaded); diff != "" {
		t.Errorf("reloads mismatch (-want +got):\n%s", diff)
	}
	mu.Unlock()

	m.Stop(t.Context(), "s1")
	if m.Watching("s1") {
		t.Error("Watching() = true after Stop")
	}
}

func TestManagerEndsWatchOfDeletedSession(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	reloads := make(chan struct{}, 1)
	m := NewManager(func(_ context.Context, id string, _ *session.Project) error {
		select {
		case reloads <- struct{}{}:
		default:
		}
		return fmt.Errorf("%w: %s", session.ErrSessionNotFound, id)
	}, 20*time.Millisecond, nil)
	t.Cleanup(m.Close)

	if err := m.Watch("gone", &session.Project{Root: dir, EnvLoadOrder: []string{".env"}}); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	writeFile(t, filepath.Join(dir, ".env"), "A=1\n")

	select {
	case <-reloads:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	deadline := time.Now().Add(5 * time.Second)
	for m.Watching("gone") {
		if time.Now().After(deadline) {
			t.Fatal("Watching() = true after the session was reported gone")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestManagerSkipsUnwatchableProjects(t *testing.T) {
	t.Parallel()

	m := NewManager(func(context.Context, string, *session.Project) error { return nil }, 0, nil)
	t.Cleanup(m.Close)

	projects := map[string]*session.Project{
		"nil":      nil,
		"no files": {Root: t.TempDir()},
		"remote":   {Root: "mem://localhost/project", EnvLoadOrder: []string{".env"}},
	}
	for name, p := range projects {
		if err := m.Watch(name, p); err != nil {
			t.Errorf("Watch(%s) error = %v", name, err)
		}
		if m.Watching(name) {
			t.Errorf("Watching(%s) = true, want false", name)
		}
	}
}
