package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after a ref change before a reindex is triggered.
const DefaultDebounce = 2 * time.Second

// RefWatcher watches the HEAD and branch refs of local git repositories.
// Branch namespaces such as refs/heads/feature/ are watched as they appear.
type RefWatcher struct {
	fsw       *fsnotify.Watcher
	mu        sync.Mutex
	dirs      map[string]watchedDir
	debouncer *Debouncer
	logger    *slog.Logger
}

type watchedDir struct {
	repo string
	// refs is true for refs/heads and its subdirectories, false for the git
	// directory itself.
	refs bool
}

// GitDir returns the git directory of a working tree or bare repository at dir.
func GitDir(dir string) string {
	dotGit := filepath.Join(dir, ".git")
	if info, err := os.Stat(dotGit); err == nil && info.IsDir() {
		return dotGit
	}
	return dir
}

// NewRefWatcher starts watching the repositories in dirs, keyed by name.
// Repositories whose git directory does not exist are skipped.
func NewRefWatcher(dirs map[string]string, window time.Duration, logger *slog.Logger) (*RefWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &RefWatcher{
		fsw:       fsw,
		dirs:      make(map[string]watchedDir),
		debouncer: NewDebouncer(window),
		logger:    logger,
	}

	for name, dir := range dirs {
		gitDir := GitDir(dir)
		if info, err := os.Stat(gitDir); err != nil || !info.IsDir() {
			continue
		}
		if err := w.watch(gitDir, watchedDir{repo: name}); err != nil {
			_ = w.Close()
			return nil, err
		}
		if err := w.watchRefs(name, filepath.Join(gitDir, "refs", "heads")); err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *RefWatcher) watch(path string, wd watchedDir) error {
	if err := w.fsw.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	w.mu.Lock()
	w.dirs[filepath.Clean(path)] = wd
	w.mu.Unlock()
	return nil
}

// watchRefs watches root and every directory below it. Missing or
// unreadable entries are skipped.
func (w *RefWatcher) watchRefs(repo, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		return w.watch(path, watchedDir{repo: repo, refs: true})
	})
}

// Watched returns the watched directories, sorted.
func (w *RefWatcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	dirs := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// Run delivers debounced changes to onChange, one call per repository, until
// ctx is done or the watcher is closed.
func (w *RefWatcher) Run(ctx context.Context, onChange func(ctx context.Context, name string)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if name, ok := w.repoFor(event); ok {
				w.logger.Debug("Repository ref changed", "repo", name, "path", event.Name, "op", event.Op.String())
				w.debouncer.Add(name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", "error", err)
		case names, ok := <-w.debouncer.Output():
			if !ok {
				return nil
			}
			for _, name := range names {
				onChange(ctx, name)
			}
		}
	}
}

// repoFor maps a filesystem event to the repository whose refs moved.
func (w *RefWatcher) repoFor(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return "", false
	}
	base := filepath.Base(event.Name)
	if strings.HasSuffix(base, ".lock") {
		return "", false
	}

	w.mu.Lock()
	wd, ok := w.dirs[filepath.Dir(event.Name)]
	w.mu.Unlock()
	if !ok {
		return "", false
	}
	if !wd.refs {
		return wd.repo, base == "HEAD" || base == "packed-refs"
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watchRefs(wd.repo, event.Name); err != nil {
				w.logger.Warn("Failed to watch ref namespace", "repo", wd.repo, "path", event.Name, "error", err)
			}
		}
	}
	return wd.repo, true
}

// Close stops watching.
func (w *RefWatcher) Close() error {
	w.debouncer.Stop()
	return w.fsw.Close()
}
