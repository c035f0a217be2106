// Package watch reports changes to a fixed set of files, debounced.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDelay is the quiet period before a batch of changes is reported.
const DefaultDelay = 100 * time.Millisecond

// Watcher monitors files through their parent directories, so editors that
// save by renaming are still observed.
type Watcher struct {
	files  map[string]struct{}
	dirs   []string
	delay  time.Duration
	logger *zap.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDelay overrides DefaultDelay.
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithLogger reports watcher errors and events.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New builds a watcher for paths. Empty paths are ignored.
func New(paths []string, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		files:  make(map[string]struct{}),
		delay:  DefaultDelay,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}

	dirs := make(map[string]struct{})
	for _, path := range paths {
		if path == "" {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("watch: %s: %w", path, err)
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	if len(w.files) == 0 {
		return nil, errors.New("watch: no files to watch")
	}
	for dir := range dirs {
		w.dirs = append(w.dirs, dir)
	}
	sort.Strings(w.dirs)
	return w, nil
}

// Run blocks until ctx ends, calling onChange with the sorted absolute paths
// changed since the previous call. Callback errors are logged and watching
// continues.
func (w *Watcher) Run(ctx context.Context, onChange func(files []string) error) error {
	if onChange == nil {
		return errors.New("watch: onChange is nil")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer fsw.Close()

	for _, dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watch: %s: %w", dir, err)
		}
		w.logger.Debug("watching directory", zap.String("dir", dir))
	}

	timer := time.NewTimer(w.delay)
	timer.Stop()
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			name := filepath.Clean(event.Name)
			if _, watched := w.files[name]; !watched {
				continue
			}
			w.logger.Debug("file changed", zap.String("file", name), zap.String("op", event.Op.String()))
			pending[name] = struct{}{}
			timer.Reset(w.delay)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-timer.C:
			files := make([]string, 0, len(pending))
			for name := range pending {
				files = append(files, name)
			}
			sort.Strings(files)
			pending = make(map[string]struct{})
			if err := onChange(files); err != nil {
				w.logger.Error("change handler failed", zap.Error(err))
			}
		}
	}
}
