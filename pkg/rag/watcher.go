package rag

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates the cache when documents under the upload directory
// change, so the next retrieval sees a fresh index. Subdirectories created
// while watching are picked up as they appear.
type Watcher struct {
	cache   *Cache
	watcher *fsnotify.Watcher
	root    string
}

// NewWatcher watches the directory tree rooted at dir. A missing root is
// tolerated: the watch attaches once the directory exists and an event
// names it.
func NewWatcher(cache *Cache, dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{cache: cache, watcher: fsw, root: dir}
	if err := w.addTree(dir); err != nil && !os.IsNotExist(err) {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

// Run processes events until the context is cancelled. It invalidates the
// cache for every create, write, remove, or rename of a parseable file.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Corpus watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				slog.Warn("Failed to watch new directory", "dir", event.Name, "error", err)
			}
			return
		}
	}

	if !w.cache.parsers.CanParse(event.Name) {
		return
	}
	if !event.Op.Has(fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename) {
		return
	}

	slog.Debug("Corpus changed, invalidating index", "file", event.Name, "op", event.Op)
	w.cache.Invalidate()
}
