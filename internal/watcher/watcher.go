// Package watcher keeps the index in sync with watched directories using fsnotify.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/ragapi/internal/indexer"
	"github.com/hyperjump/ragapi/internal/models"
)

const defaultDebounce = 400 * time.Millisecond

// ErrNotRunning is returned when roots are changed before Start or after Stop.
var ErrNotRunning = errors.New("watcher is not running")

// Handler applies file changes to the index. *indexer.Indexer implements it.
type Handler interface {
	Reindex(ctx context.Context, path string) (*models.IngestResult, error)
	RemoveFile(ctx context.Context, path string) (int64, error)
}

// Watcher watches root directories and reindexes files that change in them.
type Watcher struct {
	handler    Handler
	extensions []string
	recursive  bool
	debounce   time.Duration
	logger     *zap.Logger // optional; when set, logs events and failures

	mu        sync.Mutex
	ctx       context.Context
	roots     []string
	rootPaths map[string][]string // root -> directories added to fsnotify
	pending   map[string]*time.Timer
	fsw       *fsnotify.Watcher
	done      chan struct{}
	stopOnce  sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for file events and indexing failures.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a file must stay quiet before it is reindexed.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New creates a watcher over roots. Only files whose extension is in extensions
// are indexed; an empty list accepts every file.
func New(handler Handler, roots, extensions []string, recursive bool, opts ...Option) *Watcher {
	w := &Watcher{
		handler:    handler,
		extensions: extensions,
		recursive:  recursive,
		debounce:   defaultDebounce,
		roots:      cleanRoots(roots),
		rootPaths:  make(map[string][]string),
		pending:    make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
// Missing roots are created.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	w.ctx = ctx
	for _, root := range w.roots {
		if err := w.watchRootLocked(root); err != nil {
			_ = fsw.Close()
			w.fsw = nil
			return err
		}
	}
	w.debugf("watcher started", zap.Strings("roots", w.roots), zap.Strings("extensions", w.extensions), zap.Bool("recursive", w.recursive))
	go w.run(ctx, fsw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.underRoot(path) {
		return
	}
	w.debugf("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancelPending(path)
		if w.accepts(path) {
			w.remove(path)
		}
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if w.accepts(path) {
			w.schedule(path)
		}
	}
}

// handleNewDirectory watches a directory created under a root and indexes its files.
func (w *Watcher) handleNewDirectory(dir string) {
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return
	}
	if w.recursive {
		root := w.rootOf(dir)
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			if err := w.fsw.Add(path); err != nil {
				w.debugf("watcher failed to add directory", zap.String("path", path), zap.Error(err))
				return nil
			}
			w.rootPaths[root] = append(w.rootPaths[root], path)
			return nil
		})
	}
	w.mu.Unlock()
	if w.recursive {
		w.syncDirectory(dir)
	}
}

func (w *Watcher) underRoot(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rootOf(path) != ""
}

// rootOf returns the watched root containing path. Callers hold mu.
func (w *Watcher) rootOf(path string) string {
	for _, root := range w.roots {
		if root == path || inDir(root, path) {
			return root
		}
	}
	return ""
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Watcher) accepts(path string) bool {
	return indexer.ExtensionAllowed(filepath.Ext(path), w.extensions)
}

// schedule reindexes path once it has been quiet for the debounce interval.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.reindex(path)
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) reindex(path string) {
	res, err := w.handler.Reindex(w.context(), path)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("watcher reindex failed", zap.String("path", path), zap.Error(err))
		}
		return
	}
	w.debugf("watcher file indexed", zap.String("path", path), zap.String("doc_id", res.DocID), zap.Int("chunks", res.NumChunks))
}

func (w *Watcher) remove(path string) {
	n, err := w.handler.RemoveFile(w.context(), path)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("watcher remove failed", zap.String("path", path), zap.Error(err))
		}
		return
	}
	w.debugf("watcher file removed", zap.String("path", path), zap.Int64("chunks", n))
}

func (w *Watcher) context() context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx == nil {
		return context.Background()
	}
	return w.ctx
}

// AddDirectory adds a root to watch. With syncExisting, files already in it are
// indexed in the background. Adding a watched root again is a no-op.
func (w *Watcher) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return ErrNotRunning
	}
	for _, r := range w.roots {
		if r == abs {
			return nil
		}
	}
	if err := w.watchRootLocked(abs); err != nil {
		return err
	}
	w.roots = append(w.roots, abs)
	w.debugf("watcher directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if syncExisting {
		go w.syncDirectory(abs)
	}
	return nil
}

func (w *Watcher) watchRootLocked(root string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	if !w.recursive {
		if err := w.fsw.Add(root); err != nil {
			return err
		}
		w.rootPaths[root] = []string{root}
		return nil
	}
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return err
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return err
	}
	w.rootPaths[root] = paths
	return nil
}

// syncDirectory reindexes every accepted file under dir, descending only when recursive.
func (w *Watcher) syncDirectory(dir string) {
	w.debugf("watcher syncing directory", zap.String("path", dir))
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && !w.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && w.accepts(path) {
			w.reindex(path)
		}
		return nil
	})
}

// RemoveDirectory stops watching root. Documents already indexed from it are kept.
func (w *Watcher) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return ErrNotRunning
	}
	for i, r := range w.roots {
		if r != abs {
			continue
		}
		for _, p := range w.rootPaths[abs] {
			_ = w.fsw.Remove(p)
		}
		delete(w.rootPaths, abs)
		w.roots = append(w.roots[:i], w.roots[i+1:]...)
		w.debugf("watcher directory removed", zap.String("path", abs))
		return nil
	}
	return nil
}

// Directories returns the watched roots.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// SyncExistingFiles indexes the files already present in every root.
func (w *Watcher) SyncExistingFiles() {
	for _, root := range w.Directories() {
		w.syncDirectory(root)
	}
}

// Stop stops watching and drops pending reindexes.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) debugf(msg string, fields ...zap.Field) {
	if w.logger != nil {
		w.logger.Debug(msg, fields...)
	}
}

func cleanRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if abs, err := filepath.Abs(r); err == nil {
			out = append(out, filepath.Clean(abs))
		}
	}
	return out
}
