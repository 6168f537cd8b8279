// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

// Package loader runs the load and mount sequence for one mount point.
//
// A Controller owns a single host surface and at most one mounted plugin
// instance. Loads are asynchronous; each activation allocates a new
// generation, and a load that completes after its generation has been
// superseded is discarded before anything is mounted.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/decouple-mfe/mfeshell/internal/logging"
	"github.com/decouple-mfe/mfeshell/internal/rebase"
	"github.com/decouple-mfe/mfeshell/pkg/contract"
	"github.com/decouple-mfe/mfeshell/pkg/errutil"
)

var tracer = otel.Tracer("mfeshell/loader")

// Resolver resolves a plugin name to a module.
type Resolver interface {
	Resolve(ctx context.Context, name string) (*contract.Module, error)
}

// Controller binds plugin instances to one host surface.
type Controller struct {
	resolver Resolver
	surface  contract.Surface
	navigate func(origin Origin, absolutePath string)
	observer func(Session)
	metrics  *Metrics
	logger   *slog.Logger

	mu         sync.Mutex
	session    Session
	generation uint64
	handle     contract.Plugin
	live       *guard
	cancelWait context.CancelFunc
	closed     bool
	wg         sync.WaitGroup
}

// guard gates navigation callbacks of one plugin instance. Reports made
// while Mount runs are held and handed back once the mount commits.
type guard struct {
	active atomic.Bool

	mu       sync.Mutex
	mounting bool
	held     []string
}

func newGuard() *guard {
	return &guard{mounting: true}
}

// hold queues subPath if the instance is still mounting.
func (g *guard) hold(subPath string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.mounting {
		return false
	}
	g.held = append(g.held, subPath)
	return true
}

// release ends the mounting phase and returns the held reports.
func (g *guard) release() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mounting = false
	held := g.held
	g.held = nil
	return held
}

// Option configures a Controller.
type Option func(*Controller)

// WithNavigator sets the function that receives shell-absolute paths when a
// mounted plugin navigates internally. fn is never called with the
// controller lock held. origin names the reporting instance; by the time fn
// runs it may already have been replaced, which the receiver checks with
// Origin.Current.
func WithNavigator(fn func(origin Origin, absolutePath string)) Option {
	return func(c *Controller) {
		c.navigate = fn
	}
}

// WithObserver sets a function called on every session transition. It is
// called with the controller lock held and must not call back into the
// Controller.
func WithObserver(fn func(Session)) Option {
	return func(c *Controller) {
		c.observer = fn
	}
}

// WithMetrics records controller metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// New creates a controller for surface.
// Panics if resolver or surface is nil.
func New(resolver Resolver, surface contract.Surface, opts ...Option) *Controller {
	if resolver == nil {
		panic("loader: resolver cannot be nil")
	}
	if surface == nil {
		panic("loader: surface cannot be nil")
	}
	c := &Controller{
		resolver: resolver,
		surface:  surface,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns a snapshot of the current session.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Activate starts loading slot and mounts it once resolved, unless a later
// Activate, Deactivate or Close supersedes it first.
//
// Any mounted instance is unmounted before Activate returns, whether it
// belongs to another slot or to slot itself (an explicit reload).
func (c *Controller) Activate(ctx context.Context, slot Slot, absolutePath string, services contract.ServiceBag) *Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		a := newAttempt(c.generation)
		a.finish(OutcomeFailed, ErrClosed)
		return a
	}

	c.unmountLocked()
	if c.cancelWait != nil {
		c.cancelWait()
	}

	c.generation++
	gen := c.generation
	waitCtx, cancel := context.WithCancel(ctx)
	c.cancelWait = cancel
	c.session = Session{
		ID:         newSessionID(),
		Slot:       slot,
		Status:     StatusLoading,
		Generation: gen,
		Path:       absolutePath,
	}
	c.notifyLocked()

	c.logger.Debug("activating plugin",
		"plugin", slot.Name,
		"base_path", slot.BasePath,
		"generation", gen,
		"session", c.session.ID.String())

	attempt := newAttempt(gen)
	c.wg.Add(1)
	go c.run(waitCtx, cancel, slot, services, attempt)
	return attempt
}

// Sync records the latest shell path for the current slot without starting
// a new load. A pending load mounts at the synced path.
func (c *Controller) Sync(absolutePath string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.session.Status {
	case StatusLoading, StatusMounted:
		c.session.Path = absolutePath
	case StatusIdle, StatusFailed:
	}
}

// Deactivate unmounts the current instance, if any, and invalidates a
// pending load so its result is ignored. The remote fetch itself is not
// aborted.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deactivateLocked()
}

// Close deactivates the controller and waits for in-flight attempts to
// settle or for ctx to end. Later activations fail with ErrClosed.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.deactivateLocked()
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return oops.In("loader").With("operation", "close").Wrap(ctx.Err())
	}
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, slot Slot, services contract.ServiceBag, attempt *Attempt) {
	defer c.wg.Done()
	defer cancel()

	gen := attempt.Generation()
	ctx, span := tracer.Start(ctx, "loader.activate",
		trace.WithAttributes(
			attribute.String("plugin.name", slot.Name),
			attribute.String("plugin.base_path", slot.BasePath),
			attribute.Int64("loader.generation", int64(gen)), //nolint:gosec // generation never exceeds int64
		),
	)
	defer span.End()
	ctx = logging.WithAttrs(ctx,
		slog.String("slot", slot.String()),
		slog.Uint64("generation", gen))

	mod, err := c.resolver.Resolve(ctx, slot.Name)

	c.mu.Lock()
	if gen != c.generation || c.closed {
		current := c.generation
		c.mu.Unlock()
		span.SetAttributes(attribute.String("loader.outcome", OutcomeDiscarded.String()))
		c.metrics.discarded(slot.Name)
		c.logger.DebugContext(ctx, "discarding superseded load",
			"current_generation", current)
		attempt.finish(OutcomeDiscarded, nil)
		return
	}

	var flush func()
	if err == nil {
		flush, err = c.mountLocked(slot, mod, services)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.session.Status = StatusFailed
		c.session.Err = err
		c.notifyLocked()
		c.mu.Unlock()
		c.metrics.failed(slot.Name, err)
		errutil.LogError(ctx, c.logger, "plugin activation failed", err)
		attempt.finish(OutcomeFailed, err)
		return
	}
	c.mu.Unlock()

	// Redirects made while mounting reach the shell before the attempt
	// settles, so a caller waiting on it sees the final location.
	flush()
	span.SetAttributes(attribute.String("loader.outcome", OutcomeMounted.String()))
	attempt.finish(OutcomeMounted, nil)
}

// mountLocked instantiates mod and mounts it at the session's latest path.
// The returned flush forwards navigation held during Mount and must be
// called after c.mu is released.
func (c *Controller) mountLocked(slot Slot, mod *contract.Module, services contract.ServiceBag) (func(), error) {
	g := newGuard()
	origin := Origin{Slot: slot, Generation: c.generation}
	initialPath := rebase.ToSubPath(c.session.Path, slot.BasePath)
	opts := contract.MountOptions{
		Services: services,
		Navigation: contract.NavigationHandle{
			InitialPath: initialPath,
			OnNavigate:  c.onNavigate(g, origin),
		},
	}

	instance := mod.New()
	if instance == nil {
		return nil, ErrMount(slot.Name, fmt.Errorf("module %s returned a nil instance", mod.Name))
	}
	if err := safeMount(instance, c.surface, opts); err != nil {
		g.release()
		// Release whatever a partial mount registered.
		instance.Unmount()
		return nil, ErrMount(slot.Name, err)
	}

	g.active.Store(true)
	held := g.release()
	c.handle = instance
	c.live = g
	c.session.Status = StatusMounted
	c.session.Err = nil
	c.notifyLocked()
	c.metrics.mounted(slot.Name)

	c.logger.Info("plugin mounted",
		"plugin", slot.Name,
		"version", mod.Version,
		"initial_path", initialPath,
		"surface", c.surface.ID(),
		"session", c.session.ID.String())

	return func() {
		last := initialPath
		for _, subPath := range held {
			// The initial location is already the shell's.
			if subPath == last {
				continue
			}
			last = subPath
			c.forward(g, origin, subPath)
		}
	}, nil
}

// onNavigate builds the callback handed to one plugin instance. Calls made
// during Mount are held until it commits; calls once the instance is no
// longer mounted are dropped.
func (c *Controller) onNavigate(g *guard, origin Origin) func(string) {
	return func(subPath string) {
		if g.hold(subPath) {
			return
		}
		c.forward(g, origin, subPath)
	}
}

func (c *Controller) forward(g *guard, origin Origin, subPath string) {
	if !g.active.Load() {
		c.logger.Debug("dropping navigation from inactive plugin",
			"plugin", origin.Slot.Name,
			"path", subPath)
		return
	}
	if c.navigate != nil {
		c.navigate(origin, rebase.ToAbsolutePath(subPath, origin.Slot.BasePath))
	}
}

func (c *Controller) deactivateLocked() {
	if c.cancelWait != nil {
		c.cancelWait()
		c.cancelWait = nil
	}

	switch c.session.Status {
	case StatusLoading:
		c.generation++
	case StatusMounted:
		c.unmountLocked()
	case StatusIdle, StatusFailed:
	}

	if c.session.Status == StatusIdle && c.session.Slot.IsZero() {
		return
	}
	c.session = Session{Status: StatusIdle, Generation: c.generation, Path: c.session.Path}
	c.notifyLocked()
}

// unmountLocked unmounts the current instance. A panicking Unmount is a
// contract violation and propagates.
func (c *Controller) unmountLocked() {
	if c.handle == nil {
		return
	}
	handle, slot := c.handle, c.session.Slot
	c.live.active.Store(false)
	c.handle = nil
	c.live = nil

	handle.Unmount()

	c.metrics.unmounted(slot.Name)
	c.logger.Info("plugin unmounted",
		"plugin", slot.Name,
		"surface", c.surface.ID(),
		"session", c.session.ID.String())
}

func (c *Controller) notifyLocked() {
	if c.observer != nil {
		c.observer(c.session)
	}
}

// safeMount calls Mount, turning a panic into an error.
func safeMount(p contract.Plugin, surface contract.Surface, opts contract.MountOptions) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mount panicked: %v", r)
		}
	}()
	return p.Mount(surface, opts)
}
