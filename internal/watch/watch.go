// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

// Package watch reloads scripted plugins when their files change on disk.
//
// It is a development aid. A change to a plugin's *.lua files or its
// plugin.yaml drops the plugin's cached module so the next resolution
// compiles the new source, and retries the active slot when the changed
// plugin is the one mounted. Normal operation never evicts cached modules,
// so the watcher is only started when asked for.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/decouple-mfe/mfeshell/internal/loader"
	"github.com/decouple-mfe/mfeshell/internal/plugin"
)

// DefaultDebounce is how long a file must be quiet before it is reloaded.
const DefaultDebounce = 250 * time.Millisecond

// sourcePattern selects the files that trigger a reload.
var sourcePattern = glob.MustCompile("{*.lua," + plugin.ManifestFile + "}")

// Plugins locates the plugin that owns a file.
type Plugins interface {
	Owner(file string) (string, bool)
	Discover(ctx context.Context) ([]*plugin.DiscoveredPlugin, error)
}

// Cache holds resolved modules.
type Cache interface {
	Forget(name string)
}

// Reloader re-activates the mounted plugin.
type Reloader interface {
	Current() loader.Slot
	Retry(ctx context.Context) (*loader.Attempt, error)
}

// Watcher turns file changes under a plugins directory into reloads.
type Watcher struct {
	dir      string
	plugins  Plugins
	cache    Cache
	reloader Reloader
	debounce time.Duration
	logger   *slog.Logger
	onReload func(name string, err error)

	mu      sync.Mutex
	pending map[string]time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a changed file is reloaded.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// WithOnReload sets a callback invoked after each plugin reload.
func WithOnReload(fn func(name string, err error)) Option {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// New creates a watcher for dir. reloader may be nil, in which case the
// mounted plugin is left alone and picks up changes on its next activation.
func New(dir string, plugins Plugins, cache Cache, reloader Reloader, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		plugins:  plugins,
		cache:    cache,
		reloader: reloader,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		pending:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is done. fsnotify is not recursive, so the plugins
// directory and each plugin directory are watched individually; plugin
// directories created later are added as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return oops.In("watch").Hint("create watcher").Wrap(err)
	}
	defer func() { _ = fsw.Close() }()

	if err := w.addTree(fsw); err != nil {
		return err
	}
	w.logger.Info("watching plugins for changes", "dir", w.dir, "debounce", w.debounce)

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher) error {
	if err := fsw.Add(w.dir); err != nil {
		return oops.In("watch").With("dir", w.dir).Hint("watch plugins directory").Wrap(err)
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return oops.In("watch").With("dir", w.dir).Hint("read plugins directory").Wrap(err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(w.dir, entry.Name())
		if err := fsw.Add(sub); err != nil {
			w.logger.Warn("cannot watch plugin directory", "dir", sub, "error", err)
		}
	}
	return nil
}

func (w *Watcher) handle(fsw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Has(fsnotify.Create) && filepath.Dir(event.Name) == filepath.Clean(w.dir) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fsw.Add(event.Name); err != nil {
				w.logger.Warn("cannot watch plugin directory", "dir", event.Name, "error", err)
			}
			return
		}
	}

	if !sourcePattern.Match(filepath.Base(event.Name)) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

// flush reloads every plugin with a file that has been quiet for the
// debounce period.
func (w *Watcher) flush(ctx context.Context) {
	now := time.Now()
	var ready []string

	w.mu.Lock()
	for file, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, file)
			delete(w.pending, file)
		}
	}
	w.mu.Unlock()

	if len(ready) == 0 {
		return
	}

	manifestChanged := slices.ContainsFunc(ready, func(file string) bool {
		return filepath.Base(file) == plugin.ManifestFile
	})
	if manifestChanged {
		if _, err := w.plugins.Discover(ctx); err != nil {
			w.logger.Warn("rediscovering plugins failed", "error", err)
		}
	}

	var names []string
	for _, file := range ready {
		name, ok := w.plugins.Owner(file)
		if !ok {
			w.logger.Debug("changed file belongs to no known plugin", "file", file)
			continue
		}
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	for _, name := range names {
		w.reload(ctx, name)
	}
}

func (w *Watcher) reload(ctx context.Context, name string) {
	w.cache.Forget(name)
	w.logger.Info("plugin changed, cache dropped", "plugin", name)

	var err error
	if w.reloader != nil && w.reloader.Current().Name == name {
		var attempt *loader.Attempt
		attempt, err = w.reloader.Retry(ctx)
		if err == nil {
			var outcome loader.Outcome
			outcome, err = attempt.Wait(ctx)
			w.logger.Info("reloaded active plugin", "plugin", name, "outcome", outcome.String())
		}
	}
	if err != nil {
		w.logger.Warn("reloading active plugin failed", "plugin", name, "error", err)
	}
	if w.onReload != nil {
		w.onReload(name, err)
	}
}
