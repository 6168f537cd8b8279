// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

// Package contract defines the shapes every micro-frontend plugin and every
// host must agree on: the mount/unmount lifecycle, the navigation hand-off and
// the services injected at mount time.
package contract

import "context"

// ContractVersion is the version of this contract implemented by the host.
// Plugin manifests may constrain it with a semver range.
const ContractVersion = "1.0.0"

// Plugin is a single mountable micro-frontend instance.
//
// Mount is called at most once per instance. Calling it twice is undefined.
// Unmount releases everything the instance owns and guarantees that no call
// to MountOptions.Navigation.OnNavigate happens after it returns. Unmount
// must be safe after a Mount that returned an error.
type Plugin interface {
	// Mount renders the plugin into surface, starting at
	// opts.Navigation.InitialPath.
	Mount(surface Surface, opts MountOptions) error

	// Unmount tears the instance down.
	Unmount()
}

// Module is a resolved plugin bundle. Each mount obtains a fresh instance
// from New.
type Module struct {
	Name    string
	Version string
	New     func() Plugin
}

// MountOptions is handed to Plugin.Mount once and is immutable for the
// mounted lifetime of the instance.
type MountOptions struct {
	Services   ServiceBag
	Navigation NavigationHandle
}

// NavigationHandle carries the navigation hand-off between host and plugin.
type NavigationHandle struct {
	// InitialPath is the plugin-relative path to render first. It always
	// begins with "/". It is a one-shot value, not a live binding.
	InitialPath string

	// OnNavigate is called by the plugin on every internal route change
	// after the first render. The first render must not call it. Calls
	// made before Mount returns are delivered once the mount succeeds.
	OnNavigate func(path string)
}

// ServiceBag holds host capabilities shared with plugins. Plugins never
// create their own services.
type ServiceBag struct {
	Auth      AuthService
	Telemetry TelemetryService
	Config    ConfigService
}

// AuthService exposes the host's authentication state.
type AuthService interface {
	Token(ctx context.Context) (string, error)
	IsAuthenticated() bool
	// OnAuthChange registers cb and returns a function that unregisters it.
	OnAuthChange(cb func(authenticated bool)) (unsubscribe func())
}

// TelemetryService records plugin events.
type TelemetryService interface {
	Track(event string, props map[string]any)
}

// ConfigService reads host configuration values.
type ConfigService interface {
	Get(key string) (any, bool)
}

// Surface is the host-owned rendering target handed to Mount. A plugin
// renders only within its surface.
type Surface interface {
	// ID identifies the surface in logs.
	ID() string

	// Render replaces the surface content.
	Render(content string)

	// Listen registers fn for link activations on the surface and returns a
	// function that removes the listener.
	Listen(fn func(link string)) (cancel func())
}
