package offline

import (
	"context"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/storage"
)

// Watcher reports the pending count whenever another page (or process)
// changes a record in a file-backed store. It backs the cross-page
// "N pending" badge.
type Watcher struct {
	store   *Store
	dir     string
	logger  *zap.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher watches dir, the directory of the store's file backend.
func NewWatcher(store *Store, dir string, logger *zap.Logger) (*Watcher, error) {
	if store == nil {
		return nil, fmt.Errorf("offline: watcher requires a store")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("offline: create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("offline: watch %s: %w", dir, err)
	}
	return &Watcher{
		store:   store,
		dir:     dir,
		logger:  logger.Named("offline.watch"),
		watcher: fw,
	}, nil
}

// Run calls onCount with the current pending count, then again after every
// change to a record file, until ctx is done. It closes the watcher on
// return.
func (w *Watcher) Run(ctx context.Context, onCount func(int)) error {
	defer w.watcher.Close()

	last := w.store.PendingCount()
	if onCount != nil {
		onCount(last)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			key, isRecord := storage.KeyFromPath(ev.Name)
			if !isRecord || !strings.HasPrefix(key, KeyPrefix) {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			count := w.store.PendingCount()
			if count == last {
				continue
			}
			last = count
			if onCount != nil {
				onCount(count)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.String("dir", w.dir), zap.Error(err))
		}
	}
}
