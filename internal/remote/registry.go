// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

// Package remote resolves plugin names to loaded modules.
//
// Each registered name maps to an asynchronous Loader. The first successful
// load of a name is cached for the life of the process; a failed load is not
// cached, so the next Resolve retries. Concurrent resolutions of the same
// uncached name share a single Loader invocation.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/decouple-mfe/mfeshell/pkg/contract"
)

// Loader fetches and instantiates a plugin module.
type Loader func(ctx context.Context) (*contract.Module, error)

// Registry maps plugin names to loaders and memoises their results.
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]Loader
	cache   map[string]*contract.Module
	group   singleflight.Group

	loadTimeout time.Duration
	retries     uint64
	retryBase   time.Duration
	metrics     *Metrics
	logger      *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLoadTimeout bounds each load. Zero means no timeout; a hung load then
// leaves its caller waiting until the caller's own context ends.
func WithLoadTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.loadTimeout = d
	}
}

// WithRetry retries a failing loader up to max times within one resolution,
// with exponential backoff starting at base.
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(r *Registry) {
		r.retries = maxRetries
		r.retryBase = base
	}
}

// WithMetrics records resolution metrics.
func WithMetrics(m *Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		loaders:   make(map[string]Loader),
		cache:     make(map[string]*contract.Module),
		retryBase: 100 * time.Millisecond,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a loader for name.
func (r *Registry) Register(name string, loader Loader) error {
	if name == "" {
		return oops.In("remote").Errorf("plugin name is empty")
	}
	if loader == nil {
		return oops.In("remote").With("plugin", name).Errorf("loader is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.loaders[name]; exists {
		return ErrAlreadyRegistered(name)
	}
	r.loaders[name] = loader
	r.logger.Debug("plugin registered", "plugin", name)
	return nil
}

// RegisterModule registers an already available module, such as one
// compiled into the shell.
func (r *Registry) RegisterModule(mod *contract.Module) error {
	if mod == nil {
		return oops.In("remote").Errorf("module is nil")
	}
	return r.Register(mod.Name, func(context.Context) (*contract.Module, error) {
		return mod, nil
	})
}

// Names returns the registered plugin names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.loaders))
	for name := range r.loaders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.loaders[name]
	return ok
}

// Cached reports whether name has a cached module.
func (r *Registry) Cached(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.cache[name]
	return ok
}

// Forget drops the cached module for name so the next Resolve reloads it.
// Normal operation never evicts; this exists for development hot reload.
func (r *Registry) Forget(name string) {
	r.mu.Lock()
	delete(r.cache, name)
	r.mu.Unlock()
	r.group.Forget(name)
}

// Resolve returns the module for name, loading it on first use.
//
// The load runs detached from ctx cancellation so that one abandoned caller
// does not fail a load shared with others. Resolve itself returns as soon as
// ctx is done.
func (r *Registry) Resolve(ctx context.Context, name string) (*contract.Module, error) {
	r.mu.RLock()
	loader, ok := r.loaders[name]
	mod := r.cache[name]
	r.mu.RUnlock()

	if !ok {
		r.metrics.observe(name, resultUnknown, 0)
		return nil, ErrUnknownPlugin(name)
	}
	if mod != nil {
		r.metrics.observe(name, resultCached, 0)
		return mod, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(name, func() (any, error) {
		return r.load(loadCtx, name, loader)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		//nolint:forcetypeassert // load only returns *contract.Module
		return res.Val.(*contract.Module), nil
	case <-ctx.Done():
		return nil, ErrLoad(name, ctx.Err())
	}
}

func (r *Registry) load(ctx context.Context, name string, loader Loader) (*contract.Module, error) {
	if r.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.loadTimeout)
		defer cancel()
	}

	start := time.Now()
	var mod *contract.Module

	attempt := func(ctx context.Context) error {
		m, err := callLoader(ctx, loader)
		if err != nil {
			return err
		}
		mod = m
		return nil
	}

	var err error
	if r.retries > 0 {
		backoff := retry.WithMaxRetries(r.retries, retry.NewExponential(r.retryBase))
		err = retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := attempt(ctx); err != nil {
				r.logger.DebugContext(ctx, "plugin load attempt failed", "plugin", name, "error", err)
				return retry.RetryableError(err)
			}
			return nil
		})
	} else {
		err = attempt(ctx)
	}

	if err == nil {
		err = validateModule(name, mod)
	}
	if err != nil {
		r.metrics.observe(name, resultFailed, time.Since(start))
		return nil, ErrLoad(name, err)
	}

	r.mu.Lock()
	if existing, ok := r.cache[name]; ok {
		mod = existing
	} else {
		r.cache[name] = mod
	}
	r.mu.Unlock()

	r.metrics.observe(name, resultLoaded, time.Since(start))
	r.logger.InfoContext(ctx, "plugin resolved",
		"plugin", name,
		"version", mod.Version,
		"duration", time.Since(start))
	return mod, nil
}

// callLoader runs loader, turning a panic into an error.
func callLoader(ctx context.Context, loader Loader) (mod *contract.Module, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("loader panicked: %v", p)
		}
	}()
	return loader(ctx)
}

func validateModule(name string, mod *contract.Module) error {
	if mod == nil {
		return fmt.Errorf("loader for %s returned no module", name)
	}
	if mod.New == nil {
		return fmt.Errorf("module %s has no constructor", name)
	}
	return nil
}
