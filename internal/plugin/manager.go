// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package plugin

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/decouple-mfe/mfeshell/internal/remote"
	"github.com/decouple-mfe/mfeshell/pkg/contract"
)

// ManifestFile is the manifest file name inside a plugin directory.
const ManifestFile = "plugin.yaml"

// Manager discovers plugins and turns them into registry loaders.
type Manager struct {
	pluginsDir string
	luaHost    Host
	fetcher    Fetcher
	logger     *slog.Logger

	mu         sync.RWMutex
	discovered map[string]*DiscoveredPlugin
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithLuaHost sets the Lua host for the manager.
func WithLuaHost(h Host) ManagerOption {
	return func(m *Manager) {
		m.luaHost = h
	}
}

// WithFetcher sets the source used for lua-plugin.url manifests.
func WithFetcher(f Fetcher) ManagerOption {
	return func(m *Manager) {
		m.fetcher = f
	}
}

// WithManagerLogger sets the logger. Defaults to slog.Default().
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a plugin manager.
func NewManager(pluginsDir string, opts ...ManagerOption) *Manager {
	m := &Manager{
		pluginsDir: pluginsDir,
		logger:     slog.Default(),
		discovered: make(map[string]*DiscoveredPlugin),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DiscoveredPlugin contains a manifest and its directory.
type DiscoveredPlugin struct {
	Manifest *Manifest
	Dir      string
}

// Dir returns the plugins directory.
func (m *Manager) Dir() string {
	return m.pluginsDir
}

// Discover finds all valid plugins in the plugins directory.
// Invalid plugins are logged and skipped.
func (m *Manager) Discover(_ context.Context) ([]*DiscoveredPlugin, error) {
	entries, err := os.ReadDir(m.pluginsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, oops.In("plugin").With("dir", m.pluginsDir).Hint("failed to read plugins directory").Wrap(err)
	}

	var plugins []*DiscoveredPlugin
	seen := make(map[string]string)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		pluginDir := filepath.Join(m.pluginsDir, entry.Name())
		manifestPath := filepath.Join(pluginDir, ManifestFile)

		data, err := os.ReadFile(manifestPath) //nolint:gosec // manifestPath is constructed from ReadDir entries
		if err != nil {
			m.logger.Warn("skipping plugin without manifest",
				"dir", entry.Name(),
				"error", err)
			continue
		}

		manifest, err := ParseManifest(data)
		if err != nil {
			m.logger.Warn("skipping plugin with invalid manifest",
				"dir", entry.Name(),
				"error", err)
			continue
		}

		if other, dup := seen[manifest.Name]; dup {
			m.logger.Warn("skipping plugin with duplicate name",
				"plugin", manifest.Name,
				"dir", entry.Name(),
				"first_dir", other)
			continue
		}
		seen[manifest.Name] = entry.Name()

		plugins = append(plugins, &DiscoveredPlugin{
			Manifest: manifest,
			Dir:      pluginDir,
		})
	}

	m.mu.Lock()
	m.discovered = make(map[string]*DiscoveredPlugin, len(plugins))
	for _, dp := range plugins {
		m.discovered[dp.Manifest.Name] = dp
	}
	m.mu.Unlock()

	return plugins, nil
}

// RegisterAll discovers plugins and registers a loader for every Lua plugin
// with reg. Source is read and compiled when the loader runs, not here.
//
// Individual failures are logged and skipped so one broken plugin does not
// keep the shell from starting. Go plugins are compiled in and registered
// by the caller.
func (m *Manager) RegisterAll(ctx context.Context, reg Registrar) ([]string, error) {
	discovered, err := m.Discover(ctx)
	if err != nil {
		return nil, err
	}

	var registered []string
	for _, dp := range discovered {
		switch dp.Manifest.Type {
		case TypeLua:
			if m.luaHost == nil {
				m.logger.Warn("no Lua host configured, skipping Lua plugin",
					"plugin", dp.Manifest.Name)
				continue
			}
		case TypeGo:
			m.logger.Debug("skipping compiled-in plugin manifest",
				"plugin", dp.Manifest.Name)
			continue
		default:
			continue
		}

		if err := reg.Register(dp.Manifest.Name, m.Loader(dp)); err != nil {
			m.logger.Error("failed to register plugin",
				"plugin", dp.Manifest.Name,
				"error", err)
			continue
		}
		registered = append(registered, dp.Manifest.Name)

		m.logger.Info("registered plugin",
			"plugin", dp.Manifest.Name,
			"type", dp.Manifest.Type,
			"version", dp.Manifest.Version)
	}

	return registered, nil
}

// Loader returns the registry loader for a discovered Lua plugin. The loader
// uses the latest discovered manifest for the plugin's name, so a manifest
// edited and rediscovered takes effect on the next load.
func (m *Manager) Loader(dp *DiscoveredPlugin) remote.Loader {
	return func(ctx context.Context) (*contract.Module, error) {
		current := dp
		if latest, ok := m.Lookup(dp.Manifest.Name); ok {
			current = latest
		}
		manifest := current.Manifest
		if err := manifest.CompatibleWithHost(); err != nil {
			return nil, oops.In("plugin").
				With("plugin", manifest.Name).
				With("contract", manifest.Contract).
				With("host_contract", contract.ContractVersion).
				Wrap(err)
		}

		source, err := m.readSource(ctx, current)
		if err != nil {
			return nil, err
		}
		return m.luaHost.Compile(ctx, manifest, source)
	}
}

func (m *Manager) readSource(ctx context.Context, dp *DiscoveredPlugin) ([]byte, error) {
	cfg := dp.Manifest.LuaPlugin
	if cfg.URL != "" {
		if m.fetcher == nil {
			return nil, oops.In("plugin").
				With("plugin", dp.Manifest.Name).
				With("url", cfg.URL).
				New("no fetcher configured for remote plugin")
		}
		return m.fetcher.Fetch(ctx, cfg.URL)
	}

	entryPath := filepath.Join(dp.Dir, filepath.FromSlash(cfg.Entry))
	source, err := os.ReadFile(filepath.Clean(entryPath))
	if err != nil {
		return nil, oops.In("plugin").
			With("plugin", dp.Manifest.Name).
			With("path", entryPath).
			Hint("failed to read entry file").
			Wrap(err)
	}
	return source, nil
}

// Lookup returns the discovered plugin with the given name.
func (m *Manager) Lookup(name string) (*DiscoveredPlugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dp, ok := m.discovered[name]
	return dp, ok
}

// Owner returns the name of the discovered plugin whose directory contains
// file.
func (m *Manager) Owner(file string) (string, bool) {
	file = filepath.Clean(file)

	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, dp := range m.discovered {
		if file == dp.Dir || strings.HasPrefix(file, dp.Dir+string(filepath.Separator)) {
			return name, true
		}
	}
	return "", false
}

// ListPlugins returns names of all discovered plugins.
func (m *Manager) ListPlugins() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.discovered))
	for name := range m.discovered {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

// Close shuts down the manager and its hosts.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.discovered = make(map[string]*DiscoveredPlugin)
	m.mu.Unlock()

	if m.luaHost != nil {
		if err := m.luaHost.Close(ctx); err != nil {
			return oops.In("plugin").Hint("close lua host").Wrap(err)
		}
	}
	return nil
}
