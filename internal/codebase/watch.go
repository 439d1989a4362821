package codebase

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for a burst of events to settle.
const DefaultDebounce = 200 * time.Millisecond

// Watch re-indexes supported files as they change under the root until ctx
// is done. Events are batched per path; a path that exists when the batch is
// flushed is re-indexed, otherwise its keys are removed.
func (ix *Indexer) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, ix.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", ix.root, err)
	}
	ix.logger.Info("watching codebase", zap.String("root", ix.root))

	pending := make(map[string]struct{})
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()
	var flush <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if ignoredDir(filepath.Base(event.Name)) {
						continue
					}
					if err := addRecursive(watcher, event.Name); err != nil {
						ix.logger.Warn("failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
					}
					// Files may have landed before the watch was added.
					_ = filepath.WalkDir(event.Name, func(path string, d fs.DirEntry, err error) error {
						if err == nil && !d.IsDir() && Supported(path) {
							pending[path] = struct{}{}
						}
						return nil
					})
				}
			}
			if !Supported(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[event.Name] = struct{}{}
			}
			if len(pending) > 0 {
				timer.Reset(debounce)
				flush = timer.C
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			ix.logger.Warn("watcher error", zap.Error(err))

		case <-flush:
			flush = nil
			ix.flush(ctx, pending)
			pending = make(map[string]struct{})
		}
	}
}

func (ix *Indexer) flush(ctx context.Context, paths map[string]struct{}) {
	for path := range paths {
		if _, err := os.Stat(path); err != nil {
			if err := ix.RemoveFile(ctx, path); err != nil {
				ix.logger.Warn("failed to remove file from index", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		stats, err := ix.IndexFile(ctx, path)
		if err != nil {
			ix.logger.Warn("failed to re-index file", zap.String("path", path), zap.Error(err))
			continue
		}
		ix.logger.Debug("re-indexed file",
			zap.String("path", path),
			zap.Int("indexed", stats.Indexed),
			zap.Int("removed", stats.Removed))
	}
}

// addRecursive watches dir and every non-ignored directory below it.
func addRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && ignoredDir(d.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
