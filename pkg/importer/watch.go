package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch watches root and its owner directories and re-imports test files
// once they have been quiet for the debounce interval. It returns after the
// watcher is registered; events are processed in the background until ctx
// is done. onResult is called from the background goroutine after every
// pass and may be nil.
func (im *Importer) Watch(ctx context.Context, root string, onResult func(Result)) error {
	if _, err := im.scan(root); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := im.watchTree(watcher, root); err != nil {
		_ = watcher.Close()
		return err
	}

	im.mu.Lock()
	im.watcher = watcher
	im.mu.Unlock()

	go im.processEvents(ctx, watcher, root, onResult)

	im.logger.WithField("root", root).Info("watching for test files")
	return nil
}

// watchTree adds root and its direct subdirectories to the watcher.
func (im *Importer) watchTree(watcher *fsnotify.Watcher, root string) error {
	if err := watcher.Add(root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", root, err)
	}
	for _, e := range entries {
		if !e.IsDir() || isHidden(e.Name()) {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if err := watcher.Add(dir); err != nil {
			im.logger.WithField("path", dir).WithError(err).Warn("failed to watch directory")
		}
	}
	return nil
}

func (im *Importer) processEvents(ctx context.Context, watcher *fsnotify.Watcher, root string, onResult func(Result)) {
	defer watcher.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(im.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			// New owner directories are picked up as they appear.
			if event.Op&fsnotify.Create != 0 && depth(root, event.Name) == 1 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !isHidden(info.Name()) {
					if err := watcher.Add(event.Name); err != nil {
						im.logger.WithField("path", event.Name).WithError(err).Warn("failed to watch directory")
					}
					continue
				}
			}

			if !isTestFile(event.Name) || depth(root, event.Name) > 2 {
				continue
			}

			im.logger.WithFields(map[string]interface{}{
				"file": event.Name,
				"op":   event.Op.String(),
			}).Debug("test file changed")

			pending[event.Name] = struct{}{}
			timer.Reset(im.debounce)

		case <-timer.C:
			files := make([]string, 0, len(pending))
			for path := range pending {
				files = append(files, path)
			}
			sort.Strings(files)
			clear(pending)

			res := im.importFiles(ctx, root, files)
			if onResult != nil {
				onResult(res)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			im.logger.WithError(err).Error("watcher error")
		}
	}
}

// StopWatching closes the active watcher, if any.
func (im *Importer) StopWatching() error {
	im.mu.Lock()
	defer im.mu.Unlock()

	if im.watcher == nil {
		return nil
	}
	err := im.watcher.Close()
	im.watcher = nil
	return err
}
