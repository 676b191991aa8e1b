package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"softarchitect/apps/ingest/internal/loader"
	"softarchitect/apps/ingest/internal/security"
)

const DefaultDebounce = 500 * time.Millisecond

// Ingester applies file changes to the knowledge store.
type Ingester interface {
	IngestFile(ctx context.Context, path string) (int, error)
	ForgetFile(ctx context.Context, path string) error
}

type Config struct {
	Root     string
	MaxDepth int
	Debounce time.Duration
}

type op int

const (
	opIngest op = iota
	opForget
)

type change struct {
	path string
	op   op
}

// Watcher re-ingests markdown files as they change under the root.
// Bursts of events for one path collapse into a single action once the path
// has been quiet for the debounce interval; the last event wins.
type Watcher struct {
	cfg       Config
	ingester  Ingester
	fsw       *fsnotify.Watcher
	validator *security.Validator

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending map[string]op

	ready chan change
	done  chan struct{}
}

func New(cfg Config, ing Ingester) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = security.DefaultMaxDepth
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	cfg.Root = root

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		cfg:       cfg,
		ingester:  ing,
		fsw:       fsw,
		validator: security.NewValidator(),
		timers:    make(map[string]*time.Timer),
		pending:   make(map[string]op),
		ready:     make(chan change, 64),
		done:      make(chan struct{}),
	}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is done. It closes the watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.close()
	slog.InfoContext(ctx, "watching knowledge base", "root", w.cfg.Root, "debounce", w.cfg.Debounce)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "watch error", "error", err)
		case c := <-w.ready:
			w.apply(ctx, c)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	name := filepath.Base(ev.Name)

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if loader.IsHiddenDir(name) || w.tooDeep(ev.Name) {
				return
			}
			if err := w.addTree(ev.Name); err != nil {
				slog.WarnContext(ctx, "failed to watch new directory", "path", ev.Name, "error", err)
			}
			return
		}
	}

	if !loader.IsCandidate(name) {
		return
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.schedule(ev.Name, opForget)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.schedule(ev.Name, opIngest)
	}
}

func (w *Watcher) schedule(path string, o op) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = o
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.cfg.Debounce, func() {
		w.mu.Lock()
		o, ok := w.pending[path]
		delete(w.pending, path)
		delete(w.timers, path)
		w.mu.Unlock()
		if !ok {
			return
		}
		select {
		case w.ready <- change{path: path, op: o}:
		case <-w.done:
		}
	})
}

func (w *Watcher) apply(ctx context.Context, c change) {
	switch c.op {
	case opForget:
		if err := w.ingester.ForgetFile(ctx, c.path); err != nil {
			slog.ErrorContext(ctx, "failed to remove document", "path", c.path, "error", err)
		}
	case opIngest:
		if _, err := w.ingester.IngestFile(ctx, c.path); err != nil {
			// Editors often replace files via rename; the file may be gone again.
			if errors.Is(err, fs.ErrNotExist) {
				slog.DebugContext(ctx, "changed document vanished", "path", c.path)
				return
			}
			slog.ErrorContext(ctx, "failed to ingest changed document", "path", c.path, "error", err)
		}
	}
}

// addTree watches dir and every visible subdirectory within the depth limit.
// Markdown files already present in a newly created directory are ingested.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			slog.Warn("cannot read directory", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			if dir != w.cfg.Root && loader.IsCandidate(d.Name()) {
				w.schedule(path, opIngest)
			}
			return nil
		}
		if path != w.cfg.Root && (loader.IsHiddenDir(d.Name()) || w.tooDeep(path)) {
			return fs.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return err
		}
		return nil
	})
}

func (w *Watcher) tooDeep(dir string) bool {
	return w.validator.ValidateDepth(depth(w.cfg.Root, dir), w.cfg.MaxDepth)
}

func depth(root, dir string) int {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return 0
	}
	return len(strings.Split(filepath.ToSlash(rel), "/"))
}

// WatchList returns the directories currently watched.
func (w *Watcher) WatchList() []string {
	return w.fsw.WatchList()
}

func (w *Watcher) close() {
	close(w.done)
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()
	if err := w.fsw.Close(); err != nil {
		slog.Warn("failed to close file watcher", "error", err)
	}
}
