package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 150 * time.Millisecond

// fileWatcher reports writes to one file. Editors often save by renaming a
// new file over the old one, so the parent directory is watched instead.
type fileWatcher struct {
	fs   *fsnotify.Watcher
	path string
}

func newFileWatcher(path string) (*fileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, err
	}
	return &fileWatcher{fs: w, path: abs}, nil
}

// Run calls fn once per burst of changes until ctx is done.
func (fw *fileWatcher) Run(ctx context.Context, fn func()) error {
	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != fw.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				debounce.Reset(watchDebounce)
			}
		case err, ok := <-fw.fs.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "path", fw.path, "error", err)
		case <-debounce.C:
			fn()
		}
	}
}

func (fw *fileWatcher) Close() error {
	return fw.fs.Close()
}
