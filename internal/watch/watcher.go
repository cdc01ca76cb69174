// Package watch reports edited LaTeX sources after a quiet period.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/texbuilder/internal/batch"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
)

// Handler receives the sources changed since the previous call, sorted.
type Handler func(ctx context.Context, paths []string)

// Watcher monitors directory trees, or single files, for source edits.
// Changes are collected until debounce passes without a new event.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dirs     []string
	files    map[string]bool
	excludes []string
	debounce time.Duration
	handler  Handler
	pending  map[string]struct{}
}

// New watches roots, each a directory or a source file. Hidden directories
// and paths matching excludes are ignored.
func New(roots, excludes []string, debounce time.Duration, handler Handler) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		watcher:  fw,
		files:    make(map[string]bool),
		excludes: excludes,
		debounce: debounce,
		handler:  handler,
		pending:  make(map[string]struct{}),
	}
	for _, root := range roots {
		if err := w.addRoot(root); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addRoot(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	if !info.IsDir() {
		w.files[abs] = true
		return w.watcher.Add(filepath.Dir(abs))
	}
	w.dirs = append(w.dirs, abs)
	return w.addTree(abs)
}

// addTree registers dir and every visible subdirectory.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && w.ignored(p, true) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", p, err)
		}
		return nil
	})
}

// ignored applies the hidden-directory and exclude rules relative to the
// watched root that contains p.
func (w *Watcher) ignored(p string, dir bool) bool {
	for _, root := range w.dirs {
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		rel = filepath.ToSlash(rel)
		for _, seg := range strings.Split(rel, "/") {
			if strings.HasPrefix(seg, ".") && seg != "." {
				return true
			}
		}
		if dir {
			rel += "/"
		}
		return batch.Excluded(rel, w.excludes)
	}
	return false
}

// Run blocks until ctx is done, calling the handler after each quiet period.
// The handler runs on the watch goroutine; events arriving meanwhile are
// buffered and delivered in the next batch.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.watcher.Close() }()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	slog.Info("Watching for source changes", logfields.Count(len(w.dirs)+len(w.files)))
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.accept(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("File watcher error", logfields.Error(err))
		case <-fire:
			fire = nil
			w.flush(ctx)
		}
	}
}

// accept records event when it concerns a source file; new directories are
// added to the watch set.
func (w *Watcher) accept(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	name := filepath.Clean(event.Name)
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			if !w.ignored(name, true) && w.inTree(name) {
				if err := w.addTree(name); err != nil {
					slog.Warn("Failed to watch new directory", logfields.Path(name), logfields.Error(err))
				}
			}
			return false
		}
	}
	if !batch.IsSource(name) {
		return false
	}
	if !w.files[name] && (!w.inTree(name) || w.ignored(name, false)) {
		return false
	}
	slog.Debug("Source change detected", logfields.Path(name), "op", event.Op.String())
	w.pending[name] = struct{}{}
	return true
}

func (w *Watcher) inTree(p string) bool {
	for _, root := range w.dirs {
		if p == root || strings.HasPrefix(p, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) flush(ctx context.Context) {
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}
	}
	clear(w.pending)
	if len(paths) == 0 {
		return
	}
	slices.Sort(paths)
	w.handler(ctx, paths)
}
