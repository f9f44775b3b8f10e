package internal

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a watcher waits for a burst of file events
// to settle before rebuilding.
const DefaultDebounce = 100 * time.Millisecond

// Watcher rebuilds projects when their files change.
type Watcher struct {
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	projects []string
	debounce time.Duration
	ignored  func(path string) bool

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher watches every directory below each project. ignored, which
// may be nil, filters out paths whose changes never trigger a rebuild,
// such as generated output.
func NewWatcher(logger *zap.Logger, projects []string, ignored func(string) bool) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ignored == nil {
		ignored = func(string) bool { return false }
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		logger:   logger,
		watcher:  fw,
		debounce: DefaultDebounce,
		ignored:  ignored,
		pending:  make(map[string]*time.Timer),
	}
	for _, dir := range projects {
		abs, err := filepath.Abs(dir)
		if err != nil {
			fw.Close()
			return nil, err
		}
		w.projects = append(w.projects, abs)
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if path != abs && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return fw.Add(path)
		})
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("error adding directory to watcher: %w", err)
		}
	}
	return w, nil
}

// Run calls rebuild with the project directory after files of that project
// change, until ctx is done. Rebuilds run one at a time on the calling
// goroutine.
func (w *Watcher) Run(ctx context.Context, rebuild func(project string)) error {
	defer w.watcher.Close()
	defer w.stopTimers()

	fire := make(chan string, len(w.projects))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case project := <-fire:
			rebuild(project)
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			project, relevant := w.classify(event)
			if !relevant {
				continue
			}
			w.schedule(project, func() {
				select {
				case fire <- project:
				case <-ctx.Done():
				}
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", zap.Error(err))
		}
	}
}

// classify returns the project an event belongs to and whether it should
// trigger a rebuild.
func (w *Watcher) classify(event fsnotify.Event) (string, bool) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return "", false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil || w.ignored(abs) {
		return "", false
	}
	if !isProjectFile(abs) {
		return "", false
	}
	var best string
	for _, p := range w.projects {
		if (abs == p || strings.HasPrefix(abs, p+string(filepath.Separator))) && len(p) > len(best) {
			best = p
		}
	}
	return best, best != ""
}

func isProjectFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(base, ".go"), strings.HasPrefix(base, "readme"):
		return true
	case base == "scrunch.yaml", base == ".env":
		return true
	}
	return false
}

// schedule runs fn once no further event for project arrived within the
// debounce interval.
func (w *Watcher) schedule(project string, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[project]; ok {
		t.Stop()
	}
	w.pending[project] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, project)
		w.mu.Unlock()
		fn()
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for p, t := range w.pending {
		t.Stop()
		delete(w.pending, p)
	}
}
