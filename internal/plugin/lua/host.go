// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package lua

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/decouple-mfe/mfeshell/internal/plugin"
	"github.com/decouple-mfe/mfeshell/internal/plugin/capability"
	"github.com/decouple-mfe/mfeshell/pkg/contract"
)

// Compile-time interface check.
var _ plugin.Host = (*Host)(nil)

// Host compiles Lua plugin scripts into modules.
type Host struct {
	sandbox  *Sandbox
	logger   *slog.Logger
	enforcer *capability.Enforcer

	mu     sync.RWMutex
	closed bool
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithLimits sets the limits of every plugin state. Defaults to
// DefaultLimits.
func WithLimits(l Limits) HostOption {
	return func(h *Host) {
		h.sandbox = NewSandbox(l)
	}
}

// WithLogger sets the logger plugins write to through shell.log.
func WithLogger(l *slog.Logger) HostOption {
	return func(h *Host) {
		h.logger = l
	}
}

// WithEnforcer restricts every plugin to the capabilities its manifest
// declares. Without an enforcer all shell functions are available.
func WithEnforcer(e *capability.Enforcer) HostOption {
	return func(h *Host) {
		h.enforcer = e
	}
}

// NewHost creates a Lua plugin host.
func NewHost(opts ...HostOption) *Host {
	h := &Host{
		sandbox: NewSandbox(DefaultLimits()),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Compile validates source and returns a module whose instances each run
// the script in a fresh state.
//
// The script must define a global routes table. Validation runs the script
// once in a throwaway state without host functions bound to any surface.
func (h *Host) Compile(ctx context.Context, manifest *plugin.Manifest, source []byte) (*contract.Module, error) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()

	errb := oops.In("lua").With("plugin", manifest.Name).With("operation", "compile")
	if closed {
		return nil, errb.New("host is closed")
	}

	if h.enforcer != nil {
		if err := h.enforcer.SetGrants(manifest.Name, manifest.Capabilities); err != nil {
			return nil, errb.Hint("invalid capabilities").Wrap(err)
		}
	}

	L, err := h.sandbox.Open()
	if err != nil {
		return nil, errb.Hint("failed to create validation state").Wrap(err)
	}
	defer L.Close()

	registerShell(L, h.bindings(manifest.Name, contract.ServiceBag{}))
	if err := h.sandbox.Run(ctx, L, func() error { return L.DoString(string(source)) }); err != nil {
		return nil, errb.Hint("script failed to load").Wrap(err)
	}
	if _, ok := L.GetGlobal("routes").(*lua.LTable); !ok {
		return nil, errb.New("script must define a global routes table")
	}

	code := string(source)
	return &contract.Module{
		Name:    manifest.Name,
		Version: manifest.Version,
		New: func() contract.Plugin {
			return newApp(h, manifest, code)
		},
	}, nil
}

func (h *Host) bindings(name string, services contract.ServiceBag) *bindings {
	return &bindings{name: name, logger: h.logger, services: services, enforcer: h.enforcer}
}

// Close shuts down the host. Mounted instances keep running until
// unmounted.
func (h *Host) Close(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}
