package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Editors often write a file in several steps. Changes arriving within
// this window are folded into one reload.
const WATCH_DEBOUNCE = 250 * time.Millisecond

// Watch observes cfile and calls onChange after it has been written or
// replaced. The directory is watched rather than the file itself so
// atomic renames done by editors are seen as well. Watch returns once
// the watcher is set up; it stops when stop is closed.
func Watch(cfile string, onChange func(), stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	abs, err := filepath.Abs(cfile)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("failed to resolve config path %s: %w", cfile, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()
		var debounce <-chan time.Time
		for {
			select {
			case <-stop:
				slog.Debug("Ending config watcher go-routine")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					debounce = time.After(WATCH_DEBOUNCE)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("Config watcher error", "error", err)
			case <-debounce:
				debounce = nil
				slog.Info("Config file changed", "file", abs)
				onChange()
			}
		}
	}()
	return nil
}
