// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

// Package shell maps shell-level paths onto plugin slots and keeps the
// mounted plugin in step with the shell's address bar.
package shell

import (
	"context"
	"log/slog"
	"sync"

	"github.com/decouple-mfe/mfeshell/internal/loader"
	"github.com/decouple-mfe/mfeshell/pkg/contract"
)

// Router drives one loader.Controller from path changes.
//
// On each change it selects the route owning the path. A different route
// deactivates the old slot and activates the new one with the full path; the
// same route only syncs the path, so repeated navigation inside a loading or
// failed slot never starts another load. Failed slots are retried through
// Retry.
type Router struct {
	table    *RouteTable
	ctrl     *loader.Controller
	services contract.ServiceBag
	history  *History
	logger   *slog.Logger
	onChange func(source, path string)

	mu      sync.Mutex
	current loader.Slot
	attempt *loader.Attempt
	closed  bool
}

// Navigation sources passed to the navigation hook.
const (
	SourceShell   = "shell"
	SourcePlugin  = "plugin"
	SourceBack    = "back"
	SourceForward = "forward"
)

type routerConfig struct {
	initial     string
	logger      *slog.Logger
	onChange    func(source, path string)
	controllers []loader.Option
}

// RouterOption configures a Router.
type RouterOption func(*routerConfig)

// WithInitialPath sets the first history entry. Defaults to "/".
func WithInitialPath(path string) RouterOption {
	return func(c *routerConfig) {
		c.initial = path
	}
}

// WithRouterLogger sets the logger. Defaults to slog.Default().
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(c *routerConfig) {
		c.logger = l
	}
}

// WithNavigationHook calls fn after every path change with its source.
// fn runs under the router lock and must not call back into the router.
func WithNavigationHook(fn func(source, path string)) RouterOption {
	return func(c *routerConfig) {
		c.onChange = fn
	}
}

// WithControllerOptions passes options to the underlying controller.
// A navigator option is overridden by the router.
func WithControllerOptions(opts ...loader.Option) RouterOption {
	return func(c *routerConfig) {
		c.controllers = append(c.controllers, opts...)
	}
}

// NewRouter creates a Router that mounts plugins resolved by resolver onto
// surface. The initial path is not applied until Start or Navigate.
func NewRouter(table *RouteTable, resolver loader.Resolver, surface contract.Surface, services contract.ServiceBag, opts ...RouterOption) *Router {
	cfg := routerConfig{initial: "/", logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Router{
		table:    table,
		services: services,
		history:  NewHistory(cfg.initial),
		logger:   cfg.logger,
		onChange: cfg.onChange,
	}
	ctrlOpts := append(cfg.controllers,
		loader.WithLogger(cfg.logger),
		loader.WithNavigator(r.followPlugin))
	r.ctrl = loader.New(resolver, surface, ctrlOpts...)
	return r
}

// Start applies the initial location.
func (r *Router) Start(ctx context.Context) (*loader.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	return r.applyLocked(ctx, r.history.Current()), nil
}

// Navigate pushes path onto the history and updates the mounted plugin.
// It returns the activation started by the change, or nil when none was.
func (r *Router) Navigate(ctx context.Context, path string) (*loader.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	r.history.Push(path)
	r.notifyLocked(SourceShell, path)
	return r.applyLocked(ctx, path), nil
}

// Back moves the history back one entry. It reports false at the first entry.
func (r *Router) Back(ctx context.Context) (*loader.Attempt, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false, ErrClosed
	}
	path, ok := r.history.Back()
	if !ok {
		return nil, false, nil
	}
	r.notifyLocked(SourceBack, path)
	return r.applyLocked(ctx, path), true, nil
}

// Forward re-applies the entry after the cursor. It reports false at the
// last entry.
func (r *Router) Forward(ctx context.Context) (*loader.Attempt, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false, ErrClosed
	}
	path, ok := r.history.Forward()
	if !ok {
		return nil, false, nil
	}
	r.notifyLocked(SourceForward, path)
	return r.applyLocked(ctx, path), true, nil
}

// Retry re-activates the current slot at the current location. It is the
// only way a failed slot is loaded again without leaving it.
func (r *Router) Retry(ctx context.Context) (*loader.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if r.current.IsZero() {
		return nil, ErrNoActiveSlot
	}
	r.logger.Info("retrying plugin", "plugin", r.current.Name, "slot", r.current.String())
	r.attempt = r.ctrl.Activate(ctx, r.current, r.history.Current(), r.services)
	return r.attempt, nil
}

// Location returns the current shell path.
func (r *Router) Location() string {
	return r.history.Current()
}

// History returns the address bar entries.
func (r *Router) History() []string {
	return r.history.Entries()
}

// Current returns the active slot, or the zero Slot.
func (r *Router) Current() loader.Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Attempt returns the most recent activation, or nil.
func (r *Router) Attempt() *loader.Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempt
}

// Session returns the controller session.
func (r *Router) Session() loader.Session {
	return r.ctrl.Session()
}

// Routes returns the route table.
func (r *Router) Routes() *RouteTable {
	return r.table
}

// Close deactivates the current slot and waits for pending loads, bounded
// by ctx.
func (r *Router) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.current = loader.Slot{}
	r.mu.Unlock()

	return r.ctrl.Close(ctx)
}

func (r *Router) applyLocked(ctx context.Context, path string) *loader.Attempt {
	route, ok := r.table.Match(path)
	if !ok {
		if !r.current.IsZero() {
			r.logger.Debug("no route for path, deactivating",
				"path", path,
				"slot", r.current.String())
			r.ctrl.Deactivate()
			r.current = loader.Slot{}
		}
		return nil
	}

	slot := loader.Slot{Name: route.Name, BasePath: route.BasePath}
	if slot == r.current {
		r.ctrl.Sync(path)
		return nil
	}

	if !r.current.IsZero() {
		r.ctrl.Deactivate()
	}
	r.current = slot
	r.attempt = r.ctrl.Activate(ctx, slot, path, r.services)
	return r.attempt
}

// followPlugin records a navigation made inside the mounted plugin. A report
// from an instance the shell has since replaced is dropped.
func (r *Router) followPlugin(origin loader.Origin, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if origin.Slot != r.current || !origin.Current(r.ctrl.Session()) {
		r.logger.Debug("dropping navigation from replaced plugin",
			"path", path,
			"slot", origin.Slot.String(),
			"generation", origin.Generation)
		return
	}
	r.logger.Debug("plugin navigated", "path", path, "slot", r.current.String())
	r.history.Push(path)
	r.notifyLocked(SourcePlugin, path)
	r.applyLocked(context.Background(), path)
}

func (r *Router) notifyLocked(source, path string) {
	if r.onChange != nil {
		r.onChange(source, path)
	}
}
