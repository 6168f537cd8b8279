// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/decouple-mfe/mfeshell/internal/config"
	"github.com/decouple-mfe/mfeshell/internal/loader"
	"github.com/decouple-mfe/mfeshell/internal/observability"
	"github.com/decouple-mfe/mfeshell/internal/plugin"
	"github.com/decouple-mfe/mfeshell/internal/plugin/capability"
	pluginlua "github.com/decouple-mfe/mfeshell/internal/plugin/lua"
	"github.com/decouple-mfe/mfeshell/internal/remote"
	"github.com/decouple-mfe/mfeshell/internal/services"
	"github.com/decouple-mfe/mfeshell/internal/shell"
	"github.com/decouple-mfe/mfeshell/internal/surface"
	"github.com/decouple-mfe/mfeshell/internal/watch"
	"github.com/decouple-mfe/mfeshell/pkg/contract"
	"github.com/decouple-mfe/mfeshell/plugins/analytics"
	"github.com/decouple-mfe/mfeshell/plugins/dashboard"
)

// shutdownTimeout bounds Close.
const shutdownTimeout = 5 * time.Second

// builtinModules are the plugins compiled into the binary.
var builtinModules = map[string]func() *contract.Module{
	dashboard.Name: dashboard.Module,
	analytics.Name: analytics.Module,
}

// PluginInfo describes a registered plugin for the plugins command.
type PluginInfo struct {
	Name     string `json:"name"`
	Source   string `json:"source"`
	BasePath string `json:"base_path,omitempty"`
	Cached   bool   `json:"cached"`
}

// lockedWriter serialises writes from the REPL, the controller observer and
// the watcher.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// shellApp wires the shell together: registry, plugin manager, router and
// the optional metrics server and watcher.
type shellApp struct {
	cfg      *config.Config
	logger   *slog.Logger
	out      io.Writer
	registry *remote.Registry
	manager  *plugin.Manager
	router   *shell.Router
	surface  *surface.Buffer
	auth     *services.Auth
	obs      *observability.Server
	builtins []string
	lua      []string
	ready    atomic.Bool

	stopWatch context.CancelFunc
	watchDone chan struct{}
}

// newShellApp builds the shell from cfg. Nothing is mounted until start.
func newShellApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (*shellApp, error) {
	a := &shellApp{
		cfg:     cfg,
		logger:  logger,
		out:     &lockedWriter{w: out},
		surface: surface.New("main"),
		auth:    services.NewAuth(services.DefaultToken),
	}

	var reg prometheus.Registerer
	if cfg.Metrics.Addr != "" {
		a.obs = observability.NewServer(cfg.Metrics.Addr, version,
			observability.WithReadiness(a.ready.Load),
			observability.WithSessionReport(a.report),
			observability.WithLogger(logger))
		reg = a.obs.Registry()
	} else {
		reg = prometheus.NewRegistry()
	}

	a.registry = remote.NewRegistry(
		remote.WithLoadTimeout(cfg.Remote.LoadTimeout),
		remote.WithRetry(cfg.Remote.Retries, cfg.Remote.RetryBase),
		remote.WithMetrics(remote.NewMetrics(reg)),
		remote.WithLogger(logger),
	)

	for _, name := range slices.Sorted(maps.Keys(builtinModules)) {
		if !cfg.BuiltinEnabled(name) {
			logger.Debug("builtin plugin disabled", "plugin", name)
			continue
		}
		if err := a.registry.RegisterModule(builtinModules[name]()); err != nil {
			return nil, err
		}
		a.builtins = append(a.builtins, name)
	}

	limits := pluginlua.DefaultLimits()
	limits.CallTimeout = cfg.Plugins.CallTimeout
	hostOpts := []pluginlua.HostOption{
		pluginlua.WithLogger(logger),
		pluginlua.WithLimits(limits),
	}
	if cfg.Plugins.Enforce {
		hostOpts = append(hostOpts, pluginlua.WithEnforcer(capability.NewEnforcer()))
	}
	a.manager = plugin.NewManager(cfg.Plugins.Dir,
		plugin.WithLuaHost(pluginlua.NewHost(hostOpts...)),
		plugin.WithFetcher(remote.NewHTTPSource(remote.HTTPOptions{
			Retries: 2,
			Timeout: cfg.Remote.FetchTimeout,
			Logger:  logger,
		})),
		plugin.WithManagerLogger(logger),
	)
	names, err := a.manager.RegisterAll(ctx, a.registry)
	if err != nil {
		return nil, err
	}
	a.lua = names

	table, err := shell.NewRouteTable(cfg.Routes)
	if err != nil {
		return nil, err
	}

	bag := services.Bag(a.auth,
		services.NewTelemetry(logger, reg),
		services.NewConfig(cfg.Koanf(), config.ServicesConfigKey))

	routerOpts := []shell.RouterOption{
		shell.WithInitialPath(cfg.InitialPath),
		shell.WithRouterLogger(logger),
		shell.WithControllerOptions(
			loader.WithObserver(a.observe),
			loader.WithMetrics(loader.NewMetrics(reg)),
		),
	}
	if a.obs != nil {
		routerOpts = append(routerOpts, shell.WithNavigationHook(a.obs.Metrics().RecordNavigation))
	}
	a.router = shell.NewRouter(table, a.registry, a.surface, bag, routerOpts...)

	for _, route := range table.Routes() {
		if !a.registry.Has(route.Name) {
			logger.Warn("route points at an unregistered plugin",
				"plugin", route.Name,
				"base_path", route.BasePath)
		}
	}
	return a, nil
}

// start begins serving metrics, applies the initial path and starts the
// watcher when enabled. cancel is called if the metrics server fails.
func (a *shellApp) start(ctx context.Context, cancel context.CancelFunc) error {
	if a.obs != nil {
		errCh, err := a.obs.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		go monitorServerErrors(ctx, cancel, errCh, "observability")
		a.logger.Info("observability server started", "addr", a.obs.Addr())
	}

	if a.cfg.Watch {
		watchCtx, stop := context.WithCancel(ctx)
		a.stopWatch = stop
		a.watchDone = make(chan struct{})
		w := watch.New(a.manager.Dir(), a.manager, a.registry, a.router,
			watch.WithLogger(a.logger),
			watch.WithOnReload(a.reloaded))
		go func() {
			defer close(a.watchDone)
			if err := w.Run(watchCtx); err != nil {
				a.logger.Error("plugin watcher stopped", "error", err)
			}
		}()
	}

	attempt, err := a.router.Start(ctx)
	if err != nil {
		return err
	}
	a.ready.Store(true)
	a.wait(ctx, attempt)
	return nil
}

// wait blocks until attempt settles. Failures are shown in the view, so
// only an expired ctx is logged.
func (a *shellApp) wait(ctx context.Context, attempt *loader.Attempt) {
	if attempt == nil {
		return
	}
	if _, err := attempt.Wait(ctx); err != nil && ctx.Err() != nil {
		a.logger.Debug("stopped waiting for plugin", "error", err)
	}
}

// observe shows the loading placeholder as soon as an activation starts
// and tracks the mounted plugin metric.
func (a *shellApp) observe(s loader.Session) {
	if s.Status == loader.StatusLoading {
		fmt.Fprintln(a.out, shell.UserMessage(s))
	}
	if a.obs != nil {
		mounted := ""
		if s.Status == loader.StatusMounted {
			mounted = s.Slot.Name
		}
		a.obs.Metrics().SetMounted(mounted)
	}
}

// SessionReport is the /debug/session payload.
type SessionReport struct {
	Location   string   `json:"location"`
	Plugin     string   `json:"plugin,omitempty"`
	BasePath   string   `json:"base_path,omitempty"`
	Status     string   `json:"status"`
	Generation uint64   `json:"generation"`
	Message    string   `json:"message,omitempty"`
	History    []string `json:"history"`
}

func (a *shellApp) report() any {
	s := a.router.Session()
	return SessionReport{
		Location:   a.router.Location(),
		Plugin:     s.Slot.Name,
		BasePath:   s.Slot.BasePath,
		Status:     s.Status.String(),
		Generation: s.Generation,
		Message:    shell.UserMessage(s),
		History:    a.router.History(),
	}
}

func (a *shellApp) reloaded(name string, err error) {
	if err != nil {
		fmt.Fprintf(a.out, "\nreload of %s failed: %v\n", name, err)
		return
	}
	fmt.Fprintf(a.out, "\nreloaded %s\n", name)
	a.printView()
}

// printView writes the shell location followed by the mounted plugin, the
// loader message or the home page.
func (a *shellApp) printView() {
	path := a.router.Location()
	session := a.router.Session()

	var b strings.Builder
	fmt.Fprintf(&b, "shell: %s\n", path)
	switch {
	case session.Slot.IsZero() || session.Status == loader.StatusIdle:
		b.WriteString(a.home(path))
	case session.Status == loader.StatusMounted:
		b.WriteString(a.surface.Content())
	default:
		b.WriteString(shell.UserMessage(session))
		b.WriteString("\n")
	}
	content := b.String()
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	_, _ = io.WriteString(a.out, content)
}

func (a *shellApp) home(path string) string {
	if path != "/" {
		return fmt.Sprintf("No plugin is routed at %s\n", path)
	}

	var b strings.Builder
	b.WriteString("Micro-Frontend Shell\n")
	for _, route := range a.router.Routes().Routes() {
		fmt.Fprintf(&b, "  %-8s %s\n", route.BasePath, route.Name)
	}
	b.WriteString("Try a deep link such as /mfe-a/settings/profile.\n")
	return b.String()
}

// plugins lists every registered plugin with the first route it owns.
func (a *shellApp) plugins() []PluginInfo {
	basePaths := make(map[string]string)
	for _, route := range a.router.Routes().Routes() {
		if _, ok := basePaths[route.Name]; !ok {
			basePaths[route.Name] = route.BasePath
		}
	}

	var infos []PluginInfo
	for _, name := range a.registry.Names() {
		source := "lua"
		if slices.Contains(a.builtins, name) {
			source = "builtin"
		}
		infos = append(infos, PluginInfo{
			Name:     name,
			Source:   source,
			BasePath: basePaths[name],
			Cached:   a.registry.Cached(name),
		})
	}
	return infos
}

// close stops the watcher, unmounts the plugin and stops the metrics server.
func (a *shellApp) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.ready.Store(false)
	if a.stopWatch != nil {
		a.stopWatch()
		<-a.watchDone
	}

	var errs []error
	if err := a.router.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close router: %w", err))
	}
	if err := a.manager.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close plugin manager: %w", err))
	}
	if a.obs != nil {
		if err := a.obs.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop observability server: %w", err))
		}
	}
	return errors.Join(errs...)
}

// monitorServerErrors cancels ctx when a background server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			slog.Error("server error, shutting down", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
