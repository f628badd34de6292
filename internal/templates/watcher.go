package templates

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/eduflow-ai/eduflow/internal/logging"
)

// Watcher reloads template files when they change on disk. Reload replaces
// the registry entry for the template's name; invalid files are logged and
// skipped so a bad edit never breaks the running catalog.
type Watcher struct {
	registry *Registry
	dir      string
	logger   *logging.Logger
	fsw      *fsnotify.Watcher
}

// NewWatcher creates a watcher over the given template directory.
func NewWatcher(registry *Registry, dir string, logger *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	return &Watcher{
		registry: registry,
		dir:      dir,
		logger:   logger,
		fsw:      fsw,
	}, nil
}

// Run processes filesystem events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		_ = w.fsw.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isTemplateFile(filepath.Base(event.Name)) {
				continue
			}
			w.reload(event.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("template watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("reading changed template", "path", path, "error", err)
		return
	}
	t, err := ParseFile(data)
	if err != nil {
		w.logger.Warn("ignoring invalid template file", "path", path, "error", err)
		return
	}
	if err := w.registry.Register(t); err != nil {
		w.logger.Warn("registering reloaded template", "path", path, "error", err)
		return
	}
	w.logger.Info("template reloaded", "template", t.Name, "path", path)
}
