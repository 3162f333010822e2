package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for a burst of events to settle
const DefaultDebounce = 250 * time.Millisecond

// Watcher re-indexes files of a scope as they change on disk
type Watcher struct {
	Builder  *Builder
	Scope    Scope
	Debounce time.Duration
	Logger   *zap.Logger
	// OnChange, when set, is called after each batch with the paths that
	// were re-indexed or removed
	OnChange func(changed []string)
}

func (w *Watcher) logger() *zap.Logger {
	if w.Logger == nil {
		return zap.NewNop()
	}
	return w.Logger
}

// Run watches until ctx is done. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	scope := w.Scope.withDefaults()
	if err := validateScope(scope); err != nil {
		return err
	}
	root, err := filepath.Abs(scope.Root)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := w.addRecursive(watcher, root, scope); err != nil {
		return err
	}

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			path := filepath.Clean(event.Name)
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(path); err == nil && info.IsDir() {
					if err := w.addRecursive(watcher, path, scope); err != nil {
						w.logger().Warn("watch directory failed", zap.String("dir", path), zap.Error(err))
					}
					continue
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !scope.Matches(path) || ignoredFile(path) {
				continue
			}
			if len(pending) > 0 && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			pending[path] = true
			timer.Reset(debounce)
		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)
			w.apply(ctx, changed)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (w *Watcher) apply(ctx context.Context, changed []string) {
	done := make([]string, 0, len(changed))
	for _, path := range changed {
		var err error
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			err = w.Builder.Remove(ctx, path)
		} else {
			err = w.Builder.IndexFile(ctx, path)
		}
		switch {
		case err == nil:
			done = append(done, path)
		case errors.Is(err, ErrUnchanged):
		default:
			w.logger().Warn("re-index failed", zap.String("file", path), zap.Error(err))
		}
	}
	w.logger().Info("re-indexed", zap.Int("changed", len(done)), zap.Int("events", len(changed)))
	if w.OnChange != nil && len(done) > 0 {
		w.OnChange(done)
	}
}

func (w *Watcher) addRecursive(watcher *fsnotify.Watcher, dir string, scope Scope) error {
	return filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if path != dir && matchAny(path, scope.Exclude) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func ignoredFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, "~") || strings.HasPrefix(base, ".#")
}
