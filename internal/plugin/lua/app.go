// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package lua

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/decouple-mfe/mfeshell/internal/plugin"
	"github.com/decouple-mfe/mfeshell/pkg/contract"
	"github.com/decouple-mfe/mfeshell/pkg/pluginsdk"
)

// maxRedirects bounds chained shell.navigate calls made while rendering.
const maxRedirects = 8

// app is one mounted instance of a Lua plugin.
//
// Script globals:
//
//	routes            path -> title string or {title=..., body=...}
//	render(path)      optional, returns the full page text or nil
//	on_mount(path)    optional
//	on_unmount()      optional
type app struct {
	host     *Host
	manifest *plugin.Manifest
	code     string

	// mu serialises every call into the state.
	mu       sync.Mutex
	state    *lua.LState
	binds    *bindings
	surface  contract.Surface
	router   *pluginsdk.MemoryRouter
	unlisten func()
	depth    int
}

// Compile-time interface check.
var _ contract.Plugin = (*app)(nil)

func newApp(host *Host, manifest *plugin.Manifest, code string) *app {
	return &app{host: host, manifest: manifest, code: code}
}

func (a *app) errb() oops.OopsErrorBuilder {
	return oops.In("lua").With("plugin", a.manifest.Name)
}

// Mount runs the script in a fresh state and renders the initial path.
func (a *app) Mount(surface contract.Surface, opts contract.MountOptions) error {
	if surface == nil {
		return a.errb().With("operation", "mount").New("surface is nil")
	}

	a.mu.Lock()
	if a.state != nil {
		a.mu.Unlock()
		return a.errb().With("operation", "mount").New("already mounted")
	}

	sb := a.host.sandbox
	L, err := sb.Open()
	if err != nil {
		a.mu.Unlock()
		return a.errb().With("operation", "mount").Hint("failed to create state").Wrap(err)
	}
	binds := a.host.bindings(a.manifest.Name, opts.Services)
	registerShell(L, binds)
	if err := sb.Run(context.Background(), L, func() error { return L.DoString(a.code) }); err != nil {
		L.Close()
		a.mu.Unlock()
		return a.errb().With("operation", "mount").Hint("script failed").Wrap(err)
	}
	a.state = L
	a.binds = binds
	a.surface = surface
	a.mu.Unlock()

	router := pluginsdk.NewMemoryRouter(opts.Navigation, a.render)
	unlisten := surface.Listen(func(link string) {
		router.Navigate(link)
	})

	a.mu.Lock()
	a.router = router
	a.unlisten = unlisten
	a.mu.Unlock()

	if _, err := a.call("on_mount", lua.LString(router.Location())); err != nil {
		return a.errb().With("operation", "on_mount").Wrap(err)
	}
	a.drain()

	if opts.Services.Telemetry != nil {
		opts.Services.Telemetry.Track(a.manifest.Name+":mounted", nil)
	}
	return nil
}

// Unmount closes the router and the state. It is idempotent.
func (a *app) Unmount() {
	if _, err := a.call("on_unmount"); err != nil {
		a.host.logger.Warn("on_unmount failed", "plugin", a.manifest.Name, "error", err)
	}

	a.mu.Lock()
	router, unlisten, L := a.router, a.unlisten, a.state
	a.router, a.unlisten, a.state = nil, nil, nil
	a.surface = nil
	a.mu.Unlock()

	if unlisten != nil {
		unlisten()
	}
	if router != nil {
		router.Close()
	}
	if L != nil {
		L.Close()
	}
}

// call invokes the global function fn if the script defines it.
func (a *app) call(fn string, args ...lua.LValue) (lua.LValue, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.callLocked(fn, args...)
}

func (a *app) callLocked(fn string, args ...lua.LValue) (lua.LValue, error) {
	if a.state == nil {
		return lua.LNil, nil
	}
	f, ok := a.state.GetGlobal(fn).(*lua.LFunction)
	if !ok {
		return lua.LNil, nil
	}
	return a.invokeLocked(f, args...)
}

// invokeLocked calls f within the sandbox limits and returns its single
// result.
func (a *app) invokeLocked(f *lua.LFunction, args ...lua.LValue) (lua.LValue, error) {
	L := a.state
	err := a.host.sandbox.Run(context.Background(), L, func() error {
		return L.CallByParam(lua.P{Fn: f, NRet: 1, Protect: true}, args...)
	})
	if err != nil {
		return lua.LNil, err
	}
	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}

// render draws path and then applies navigations the script requested.
func (a *app) render(path string) {
	a.mu.Lock()
	surface := a.surface
	if surface == nil {
		a.mu.Unlock()
		return
	}
	content := a.viewLocked(path)
	a.mu.Unlock()

	surface.Render(content)
	a.drain()
}

func (a *app) drain() {
	a.mu.Lock()
	router, binds := a.router, a.binds
	if router == nil || binds == nil {
		a.mu.Unlock()
		return
	}
	if a.depth >= maxRedirects {
		a.mu.Unlock()
		dropped := binds.takePending()
		a.host.logger.Warn("dropping script navigation: too many redirects",
			"plugin", a.manifest.Name,
			"dropped", dropped)
		return
	}
	a.depth++
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.depth--
		a.mu.Unlock()
	}()

	for _, path := range binds.takePending() {
		router.Navigate(path)
	}
}

func (a *app) viewLocked(path string) string {
	if _, ok := a.state.GetGlobal("render").(*lua.LFunction); ok {
		ret, err := a.callLocked("render", lua.LString(path))
		if err != nil {
			return fmt.Sprintf("Error rendering %s: %v\n", path, err)
		}
		// nil falls through to the routes view.
		if ret != lua.LNil {
			return lua.LVAsString(ret)
		}
	}

	routes, _ := a.state.GetGlobal("routes").(*lua.LTable)

	var b strings.Builder
	title := a.manifest.Title
	if title == "" {
		title = a.manifest.Name
	}
	fmt.Fprintf(&b, "[%s]\n", title)
	fmt.Fprintf(&b, "nav: %s\n", strings.Join(routePaths(routes), " | "))
	b.WriteString("--\n")

	if routes == nil {
		fmt.Fprintf(&b, "Not found: %s\n", path)
		return b.String()
	}

	switch page := routes.RawGetString(path).(type) {
	case lua.LString:
		b.WriteString(string(page))
		b.WriteString("\n")
	case *lua.LTable:
		b.WriteString(lua.LVAsString(page.RawGetString("title")))
		b.WriteString("\n")
		if body := page.RawGetString("body"); body != lua.LNil {
			b.WriteString(a.bodyLocked(body, path))
			b.WriteString("\n")
		}
	default:
		fmt.Fprintf(&b, "Not found: %s\n", path)
	}
	return b.String()
}

// bodyLocked renders a page body that is either a string or a function of
// the path.
func (a *app) bodyLocked(body lua.LValue, path string) string {
	f, ok := body.(*lua.LFunction)
	if !ok {
		return lua.LVAsString(body)
	}
	ret, err := a.invokeLocked(f, lua.LString(path))
	if err != nil {
		return fmt.Sprintf("Error rendering %s: %v", path, err)
	}
	return lua.LVAsString(ret)
}

func routePaths(routes *lua.LTable) []string {
	if routes == nil {
		return nil
	}
	var paths []string
	routes.ForEach(func(k, _ lua.LValue) {
		if s, ok := k.(lua.LString); ok {
			paths = append(paths, string(s))
		}
	})
	slices.Sort(paths)
	return paths
}
