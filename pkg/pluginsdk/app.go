// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package pluginsdk

import (
	"fmt"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/decouple-mfe/mfeshell/pkg/contract"
)

// Route is one page of a plugin.
type Route struct {
	Path  string
	Title string
	// Body renders the page content. Nil renders the title only.
	Body func(svc contract.ServiceBag) string
}

// AppConfig describes a Go-authored plugin.
type AppConfig struct {
	// Name is the plugin identifier, used for the "<name>:mounted" event.
	Name string
	// Title is shown in the plugin header.
	Title string
	// Routes lists the pages, in navigation bar order.
	Routes []Route
}

// App implements contract.Plugin on top of a MemoryRouter.
type App struct {
	cfg AppConfig

	mu       sync.Mutex
	surface  contract.Surface
	services contract.ServiceBag
	router   *MemoryRouter
	unlisten func()
	mounted  bool
}

// Compile-time interface check.
var _ contract.Plugin = (*App)(nil)

// NewApp creates an unmounted plugin instance.
func NewApp(cfg AppConfig) *App {
	return &App{cfg: cfg}
}

// Module wraps cfg into a module whose instances are fresh Apps.
func Module(cfg AppConfig, version string) *contract.Module {
	return &contract.Module{
		Name:    cfg.Name,
		Version: version,
		New:     func() contract.Plugin { return NewApp(cfg) },
	}
}

// Mount renders the plugin into surface at opts.Navigation.InitialPath.
func (a *App) Mount(surface contract.Surface, opts contract.MountOptions) error {
	if surface == nil {
		return oops.In("pluginsdk").With("plugin", a.cfg.Name).New("surface is nil")
	}

	a.mu.Lock()
	if a.mounted {
		a.mu.Unlock()
		return oops.In("pluginsdk").With("plugin", a.cfg.Name).New("already mounted")
	}
	a.surface = surface
	a.services = opts.Services
	a.mounted = true
	a.mu.Unlock()

	router := NewMemoryRouter(opts.Navigation, a.render)
	unlisten := surface.Listen(func(link string) {
		router.Navigate(link)
	})

	a.mu.Lock()
	a.router = router
	a.unlisten = unlisten
	a.mu.Unlock()

	if opts.Services.Telemetry != nil {
		opts.Services.Telemetry.Track(a.cfg.Name+":mounted", nil)
	}
	return nil
}

// Unmount detaches the router and surface listener. It is idempotent.
func (a *App) Unmount() {
	a.mu.Lock()
	router, unlisten := a.router, a.unlisten
	a.router, a.unlisten = nil, nil
	a.surface = nil
	a.mounted = false
	a.mu.Unlock()

	if unlisten != nil {
		unlisten()
	}
	if router != nil {
		router.Close()
	}
}

// Router returns the mounted router, or nil when unmounted.
func (a *App) Router() *MemoryRouter {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.router
}

func (a *App) render(path string) {
	a.mu.Lock()
	surface, services := a.surface, a.services
	a.mu.Unlock()
	if surface == nil {
		return
	}
	surface.Render(a.view(path, services))
}

func (a *App) view(path string, services contract.ServiceBag) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", a.cfg.Title)

	links := make([]string, 0, len(a.cfg.Routes))
	for _, r := range a.cfg.Routes {
		links = append(links, r.Path)
	}
	fmt.Fprintf(&b, "nav: %s\n", strings.Join(links, " | "))
	b.WriteString("--\n")

	route, ok := a.lookup(path)
	if !ok {
		fmt.Fprintf(&b, "Not found: %s\n", path)
		return b.String()
	}
	b.WriteString(route.Title)
	b.WriteString("\n")
	if route.Body != nil {
		b.WriteString(route.Body(services))
		b.WriteString("\n")
	}
	return b.String()
}

func (a *App) lookup(path string) (Route, bool) {
	for _, r := range a.cfg.Routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}
