// SPDX-License-Identifier: MPL-2.0

// Package watch reloads session project env files when they change on disk.
//
// A Watcher monitors the directories that hold a project's env files and
// invokes a callback after a debounce period. Events within the debounce
// window are coalesced so the callback fires once with every changed file.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce absorbs editors that write then rename a temp file.
const defaultDebounce = 300 * time.Millisecond

// defaultIgnores are never descended into by recursive patterns.
var defaultIgnores = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/__pycache__/**",
	"**/*.swp",
	"**/*~",
	"**/.DS_Store",
}

// ErrInvalidPattern is returned for env file patterns that are not valid globs.
var ErrInvalidPattern = errors.New("invalid env file pattern")

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Root is the project directory. Patterns are relative to it.
		Root string

		// Patterns select the env files to watch (e.g. ".env", "env/*.env").
		// doublestar syntax is accepted; "**" watches subdirectories.
		Patterns []string

		// Debounce is the quiet period after the last event before the
		// callback fires. Zero or negative values use the default.
		Debounce time.Duration

		// OnChange receives the changed paths, relative to Root.
		OnChange func(ctx context.Context, changed []string) error

		Logger *log.Logger
	}

	// Watcher monitors env files and fires a debounced callback when they
	// change. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		root     string
		debounce time.Duration
		logger   *log.Logger
		started  atomic.Bool
	}
)

// New creates a Watcher and registers the directories its patterns can
// match in.
func New(cfg Config) (*Watcher, error) {
	if err := validatePatterns(cfg.Patterns); err != nil {
		return nil, err
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve project root: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		root:     root,
		debounce: debounce,
		logger:   logger,
	}
	if err := w.addDirectories(); err != nil {
		_ = fsw.Close() // Best-effort cleanup after init failure
		return nil, err
	}
	return w, nil
}

// Run blocks until ctx is cancelled, dispatching debounced callbacks. It
// returns nil on cancellation and the error of a broken watcher otherwise.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire runs at most one callback at a time; a busy callback reschedules
	// so pending events are not lost.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Warn("env file reload failed", "root", w.root, "error", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Debug("close fsnotify", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}

			rel, err := filepath.Rel(w.root, evt.Name)
			if err != nil || w.isIgnored(rel) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}
			if !w.matchesPatterns(rel) || (evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write)) {
				continue
			}

			mu.Lock()
			pending[filepath.ToSlash(rel)] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if resourcesExhausted(err) {
				return fmt.Errorf("watch: env file watch lost: %w", err)
			}
			w.logger.Warn("fsnotify error", "root", w.root, "error", err)
		}
	}
}

// addDirectories registers the static base directory of every pattern,
// recursively for patterns that contain "**". Missing directories are
// skipped.
func (w *Watcher) addDirectories() error {
	dirs := map[string]bool{w.root: false}
	for _, pat := range w.cfg.Patterns {
		base, rest := doublestar.SplitPattern(filepath.ToSlash(pat))
		dir := filepath.Join(w.root, filepath.FromSlash(base))
		dirs[dir] = dirs[dir] || strings.Contains(rest, "**")
	}

	for _, dir := range slices.Sorted(maps.Keys(dirs)) {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			w.logger.Debug("not watching missing directory", "dir", dir)
			continue
		}
		if !dirs[dir] {
			if err := w.fsw.Add(dir); err != nil {
				return fmt.Errorf("watch: add directory %q: %w", dir, err)
			}
			continue
		}
		if err := w.addTree(dir); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) addTree(top string) error {
	walkErr := filepath.WalkDir(top, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Debug("skipping inaccessible path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return nil
		}
		if w.isIgnored(rel) || w.isIgnored(rel+"/") {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, addErr)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("watch: walk directory tree: %w", walkErr)
	}
	return nil
}

// maybeAddDir extends recursive watches to directories created after
// startup.
func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil || w.isIgnored(rel) || w.isIgnored(rel+"/") {
		return
	}
	if !w.coversRecursively(filepath.ToSlash(rel)) {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("failed to watch new directory", "dir", path, "error", err)
	}
}

func (w *Watcher) coversRecursively(rel string) bool {
	for _, pat := range w.cfg.Patterns {
		base, rest := doublestar.SplitPattern(filepath.ToSlash(pat))
		if !strings.Contains(rest, "**") {
			continue
		}
		if base == "." || rel == base || strings.HasPrefix(rel, base+"/") {
			return true
		}
	}
	return false
}

func (w *Watcher) isIgnored(rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range defaultIgnores {
		if matched, err := doublestar.Match(pat, normalized); err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Watcher) matchesPatterns(rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range w.cfg.Patterns {
		if matched, err := doublestar.Match(filepath.ToSlash(pat), normalized); err == nil && matched {
			return true
		}
	}
	return false
}

func validatePatterns(patterns []string) error {
	for _, pat := range patterns {
		if pat == "" || !doublestar.ValidatePattern(filepath.ToSlash(pat)) {
			return fmt.Errorf("watch: %w %q", ErrInvalidPattern, pat)
		}
	}
	return nil
}
