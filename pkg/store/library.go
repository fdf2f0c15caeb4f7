package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/CTAG07/linetmpl/pkg/subst"
)

// Library serves a directory of template files addressed by base name, so
// "greeting.tmpl" on disk becomes the template "greeting". Templates are
// streamed straight from disk on every render, keeping memory bounded by line
// length; only the catalog of names is held in memory. All methods are
// concurrent-safe.
type Library struct {
	logger *slog.Logger
	dir    string
	mu     sync.RWMutex
	paths  map[string]string
}

// NewLibrary creates a Library over dir and performs an initial Refresh to
// build the template catalog. A directory with no templates is not an error;
// it is logged and yields an empty catalog.
func NewLibrary(logger *slog.Logger, dir string) (*Library, error) {
	l := &Library{
		logger: logger,
		dir:    dir,
		paths:  map[string]string{},
	}
	if err := l.Refresh(); err != nil {
		return nil, err
	}
	logger.Info("Template library initialized", "dir", dir, "count", len(l.paths))
	return l, nil
}

// Refresh rescans the directory for *.tmpl files, replacing the catalog. This
// allows templates to be added or removed without restarting the application.
func (l *Library) Refresh() error {
	files, err := filepath.Glob(filepath.Join(l.dir, "*.tmpl"))
	if err != nil {
		return fmt.Errorf("failed to scan template dir: %w", err)
	}

	paths := make(map[string]string, len(files))
	for _, file := range files {
		base := filepath.Base(file)
		name := base[:len(base)-len(".tmpl")]
		paths[name] = file
	}
	if len(paths) == 0 {
		l.logger.Warn("No template files found", "dir", l.dir)
	}

	l.mu.Lock()
	l.paths = paths
	l.mu.Unlock()
	return nil
}

// Names returns the sorted names of every template in the catalog.
func (l *Library) Names() []string {
	l.mu.RLock()
	names := make([]string, 0, len(l.paths))
	for name := range l.paths {
		names = append(names, name)
	}
	l.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Open returns a line source streaming the named template from disk, or
// ErrNotFound if the name is not in the catalog. The caller must Close it.
func (l *Library) Open(name string) (*subst.FileSource, error) {
	l.mu.RLock()
	path, ok := l.paths[name]
	l.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return subst.OpenFile(path)
}

// Render streams the named template through the substitution engine, writing
// the rendered output to w.
func (l *Library) Render(w io.Writer, name string, values subst.Values) error {
	src, err := l.Open(name)
	if err != nil {
		return err
	}
	defer func(src *subst.FileSource) {
		_ = src.Close()
	}(src)
	return subst.Render(w, src, values)
}

// Watch refreshes the catalog whenever the template directory changes. The
// watcher runs until ctx is cancelled. If the watcher cannot be created the
// error is returned and the library stays usable through manual Refresh.
func (l *Library) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create template watcher: %w", err)
	}
	// Watching the directory is more reliable than watching individual files.
	if err = watcher.Add(l.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch template dir: %w", err)
	}

	go func() {
		defer func(watcher *fsnotify.Watcher) {
			_ = watcher.Close()
		}(watcher)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				l.logger.Debug("Template dir changed, refreshing", "event", event.String())
				if err := l.Refresh(); err != nil {
					l.logger.Error("Failed to refresh template library", "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Warn("Template watcher error", "error", err)
			}
		}
	}()

	return nil
}
