// Package drafts publishes posts edited in a local drafts directory. A
// draft at <dir>/<rel>.md is published to <posts root>/<rel>.md.
package drafts

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"postbot/internal/batch"
	"postbot/internal/inventory"
)

// Publisher writes a post, creating or updating it as needed.
type Publisher interface {
	Publish(ctx context.Context, path string, data []byte, message string) (string, error)
}

type Watcher struct {
	dir       string
	postsRoot string
	publisher Publisher
	watcher   *fsnotify.Watcher
	debounce  time.Duration
	ignore    map[string]bool
	logger    *zap.Logger
}

type Option func(*Watcher)

// WithDebounce sets how long a draft must stay untouched before it is
// published. Editors tend to write a file several times per save.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

func NewWatcher(dir, postsRoot string, publisher Publisher, logger *zap.Logger, opts ...Option) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		dir:       dir,
		postsRoot: strings.Trim(postsRoot, "/"),
		publisher: publisher,
		watcher:   fw,
		debounce:  500 * time.Millisecond,
		ignore: map[string]bool{
			".git":         true,
			"node_modules": true,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addDirs(dir); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addDirs(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && w.shouldIgnore(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) shouldIgnore(name string) bool {
	return strings.HasPrefix(name, ".") || w.ignore[name]
}

// RemotePath maps a draft path relative to the drafts directory to its
// path in the repository.
func (w *Watcher) RemotePath(rel string) string {
	rel = filepath.ToSlash(rel)
	if w.postsRoot == "" {
		return rel
	}
	return path.Join(w.postsRoot, rel)
}

// draft returns the relative path of a publishable draft.
func (w *Watcher) draft(name string) (string, bool) {
	rel, err := filepath.Rel(w.dir, name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if w.shouldIgnore(part) {
			return "", false
		}
	}
	return rel, inventory.IsPost(filepath.Base(rel))
}

// Run publishes drafts as they change until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	d := newDebouncer(w.debounce)
	defer d.stop()

	w.logger.Info("watching drafts", zap.String("dir", w.dir), zap.String("posts_root", w.postsRoot))
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if rel, ok := w.handleEvent(event); ok {
				d.trigger(rel)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))

		case f := <-d.ready:
			if !d.accept(f) {
				continue
			}
			if err := w.publish(ctx, f.key); err != nil {
				w.logger.Warn("publishing draft failed", zap.String("draft", f.key), zap.Error(err))
			}
		}
	}
}

type firing struct {
	key string
	seq uint64
}

// debouncer delivers a key on ready once no trigger for it arrived within
// delay. It is owned by a single goroutine.
type debouncer struct {
	delay  time.Duration
	ready  chan firing
	done   chan struct{}
	seq    uint64
	latest map[string]uint64
	timers map[string]*time.Timer
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:  delay,
		ready:  make(chan firing),
		done:   make(chan struct{}),
		latest: make(map[string]uint64),
		timers: make(map[string]*time.Timer),
	}
}

// trigger replaces any pending timer for key. A timer that already fired
// and is waiting on ready is left to deliver; accept discards it.
func (d *debouncer) trigger(key string) {
	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	d.seq++
	f := firing{key: key, seq: d.seq}
	d.latest[key] = f.seq
	d.timers[key] = time.AfterFunc(d.delay, func() {
		select {
		case d.ready <- f:
		case <-d.done:
		}
	})
}

// accept reports whether f is the latest firing for its key.
func (d *debouncer) accept(f firing) bool {
	if d.latest[f.key] != f.seq {
		return false
	}
	delete(d.latest, f.key)
	delete(d.timers, f.key)
	return true
}

func (d *debouncer) stop() {
	close(d.done)
	for _, t := range d.timers {
		t.Stop()
	}
}

// handleEvent reports the draft an event should publish, if any.
func (w *Watcher) handleEvent(event fsnotify.Event) (string, bool) {
	switch {
	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.shouldIgnore(info.Name()) {
				return "", false
			}
			if err := w.addDirs(event.Name); err != nil {
				w.logger.Error("watching new directory", zap.String("dir", event.Name), zap.Error(err))
			}
			return "", false
		}
		return w.draft(event.Name)

	case event.Has(fsnotify.Write):
		return w.draft(event.Name)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// published posts are only removed on request
		if rel, ok := w.draft(event.Name); ok {
			w.logger.Debug("draft removed", zap.String("draft", rel))
		}
	}
	return "", false
}

func (w *Watcher) publish(ctx context.Context, rel string) error {
	data, err := os.ReadFile(filepath.Join(w.dir, rel))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading draft: %w", err)
	}

	target := w.RemotePath(rel)
	sha, err := w.publisher.Publish(ctx, target, data, "")
	if err != nil {
		return err
	}
	w.logger.Info("draft published", zap.String("draft", rel), zap.String("path", target), zap.String("sha", sha))
	return nil
}

// SyncAll publishes every draft once. Each draft succeeds or fails on its
// own; the result is keyed by repository path.
func (w *Watcher) SyncAll(ctx context.Context) (batch.Result, error) {
	var drafts []string
	err := filepath.WalkDir(w.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != w.dir && w.shouldIgnore(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if rel, ok := w.draft(p); ok {
			drafts = append(drafts, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking drafts: %w", err)
	}

	return batch.Run(ctx, drafts, w.RemotePath,
		func(ctx context.Context, rel string) (string, error) {
			return "", w.publish(ctx, rel)
		},
		batch.WithLogger(w.logger),
	), nil
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
