package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch keeps the index consistent with the directory while ctx is live:
// when an indexed file is removed or renamed by something other than the
// store, its record is dropped. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("store: watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("store: watch %s: %w", s.dir, err)
	}
	slog.Debug("store: watching directory", "dir", s.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if rec, ok := s.forget(ev.Name); ok {
				slog.Info("store: file removed externally, record dropped", "id", rec.ID, "path", rec.Path)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("store: watcher error", "err", err)
		}
	}
}
