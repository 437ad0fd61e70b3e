// Package watch keeps the property store in step with the processed image
// directory while images are added or removed by hand.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/wallgarden/wallgarden/internal/store"
)

// Store is the part of the property store the watcher drives.
type Store interface {
	Ensure(path string) (bool, error)
	Forget(path string) (bool, error)
}

// Change describes a record the watcher created or removed.
type Change struct {
	Path    string
	Removed bool
}

// Watcher keeps the store in sync with files appearing in or leaving a directory.
type Watcher struct {
	dir      string
	store    Store
	logger   *zap.Logger
	onChange func(Change)
	fsw      *fsnotify.Watcher
}

type Option func(*Watcher)

func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// OnChange registers a callback run from the event loop after each store change.
func OnChange(fn func(Change)) Option {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// New starts watching dir, creating it if needed. Events are processed by Run.
func New(dir string, st Store, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", abs, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(abs); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", abs, err)
	}

	w := &Watcher{
		dir:    abs,
		store:  st,
		logger: zap.NewNop(),
		fsw:    fsw,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Run processes events until ctx is done or the watcher fails. It closes the
// underlying watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", w.dir, err)
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if err := w.handle(ev); err != nil {
				w.logger.Warn("failed to update state", zap.String("path", ev.Name), zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) error {
	if !store.IsImage(ev.Name) {
		return nil
	}
	w.logger.Debug("fs event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		removed, err := w.store.Forget(ev.Name)
		if err != nil || !removed {
			return err
		}
		w.notify(Change{Path: ev.Name, Removed: true})

	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil || info.IsDir() {
			return nil
		}
		created, err := w.store.Ensure(ev.Name)
		if err != nil || !created {
			return err
		}
		w.notify(Change{Path: ev.Name})
	}
	return nil
}

func (w *Watcher) notify(c Change) {
	if w.onChange != nil {
		w.onChange(c)
	}
}
