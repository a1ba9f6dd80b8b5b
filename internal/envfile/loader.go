// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

// Loader reads project env files through an afs.Service, so project roots
// may be local directories or any URL scheme afs understands.
type Loader struct {
	fs     afs.Service
	logger *log.Logger
}

// NewLoader creates a Loader backed by the default afs service.
func NewLoader(logger *log.Logger) *Loader {
	return &Loader{fs: afs.New(), logger: logger}
}

// LoadProject reads root/name for each name in order and returns the
// concatenated entries. Later files appear later, so applying the entries
// in order lets later files override earlier ones. Missing files are skipped.
func (l *Loader) LoadProject(ctx context.Context, root string, files []string) ([]Entry, error) {
	var entries []Entry

	for _, name := range files {
		location := joinLocation(root, name)

		exists, err := l.fs.Exists(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("failed to check env file %s: %w", location, err)
		}
		if !exists {
			if l.logger != nil {
				l.logger.Debug("skipping missing env file", "file", location)
			}
			continue
		}

		data, err := l.fs.DownloadWithURL(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", location, err)
		}

		parsed, err := Parse(data, name)
		if err != nil {
			return nil, err
		}
		entries = append(entries, parsed...)
	}

	return entries, nil
}

func joinLocation(root, name string) string {
	if strings.Contains(root, "://") {
		return url.Join(root, name)
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(root, filepath.FromSlash(name))
}
