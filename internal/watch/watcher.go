// Package watch signals when the local sync root changes so watch mode
// can schedule another run.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// DefaultQuiet is how long the tree must stay unchanged before a
	// trigger fires, so a burst of writes becomes one sync.
	DefaultQuiet = 300 * time.Millisecond

	tickEvery = 100 * time.Millisecond
)

// Watcher monitors a directory tree and emits on Triggers after
// changes settle. Triggers coalesce: while one is pending, further
// changes do not queue another.
type Watcher struct {
	dir     string
	allow   func(rel string) bool
	logger  *slog.Logger
	quiet   time.Duration
	trigger chan struct{}
	watcher *fsnotify.Watcher
}

// New creates a Watcher for dir. allow receives slash-separated paths
// relative to dir ("/a/b.txt", "/a/" for directories); a nil allow
// accepts everything. Editor swap files are always ignored.
func New(dir string, allow func(rel string) bool, logger *slog.Logger) *Watcher {
	return &Watcher{
		dir:     dir,
		allow:   allow,
		logger:  logger,
		quiet:   DefaultQuiet,
		trigger: make(chan struct{}, 1),
	}
}

// SetQuiet overrides the settle period.
func (w *Watcher) SetQuiet(d time.Duration) {
	w.quiet = d
}

// Triggers returns the channel that receives one value per settled
// batch of changes.
func (w *Watcher) Triggers() <-chan struct{} {
	return w.trigger
}

// Run watches until ctx is cancelled. Directories are watched
// recursively, including ones created later.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	w.watcher = watcher
	defer watcher.Close()

	if err := w.addRecursive(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	w.logger.Info("file watcher started", slog.String("dir", w.dir))

	var (
		dirty    bool
		lastSeen time.Time
	)

	ticker := time.NewTicker(tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed unexpectedly")
			}

			if !w.handle(event) {
				continue
			}

			dirty = true
			lastSeen = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed unexpectedly")
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-ticker.C:
			if !dirty || time.Since(lastSeen) < w.quiet {
				continue
			}

			dirty = false

			select {
			case w.trigger <- struct{}{}:
				w.logger.Debug("local change detected")
			default:
			}
		}
	}
}

// handle reacts to one event and reports whether it counts as a
// change.
func (w *Watcher) handle(event fsnotify.Event) bool {
	rel, ok := w.rel(event.Name)
	if !ok {
		return false
	}

	if event.Has(fsnotify.Create) {
		// Lstat so a symlinked directory is never followed out of the root.
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			if !w.allowed(rel + "/") {
				return false
			}

			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("watching new directory",
					slog.String("path", rel),
					slog.String("error", err.Error()),
				)
			}

			return true
		}
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		// Harmless if the path was not a watched directory.
		_ = w.watcher.Remove(event.Name)
	}

	if event.Op == fsnotify.Chmod {
		return false
	}

	return w.allowed(rel)
}

func (w *Watcher) rel(abs string) (string, bool) {
	r, err := filepath.Rel(w.dir, abs)
	if err != nil || r == "." || strings.HasPrefix(r, "..") {
		return "", false
	}

	base := filepath.Base(abs)
	if strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") {
		return "", false
	}

	return "/" + filepath.ToSlash(r), true
}

func (w *Watcher) allowed(rel string) bool {
	return w.allow == nil || w.allow(rel)
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if path != w.dir {
			if rel, ok := w.rel(path); !ok || !w.allowed(rel+"/") {
				return filepath.SkipDir
			}
		}

		return w.watcher.Add(path)
	})
}
