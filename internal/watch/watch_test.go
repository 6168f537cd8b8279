// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package watch_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/decouple-mfe/mfeshell/internal/loader"
	"github.com/decouple-mfe/mfeshell/internal/plugin"
	pluginlua "github.com/decouple-mfe/mfeshell/internal/plugin/lua"
	"github.com/decouple-mfe/mfeshell/internal/remote"
	"github.com/decouple-mfe/mfeshell/internal/shell"
	"github.com/decouple-mfe/mfeshell/internal/surface"
	"github.com/decouple-mfe/mfeshell/internal/watch"
	"github.com/decouple-mfe/mfeshell/pkg/contract/contracttest"
)

const manifest = "name: mfeC\nversion: 1.0.0\ntype: lua\nlua-plugin:\n  entry: main.lua\n"

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func writeScript(t *testing.T, dir, title string) {
	t.Helper()
	script := `routes = { ["/"] = "` + title + `" }`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.lua"), []byte(script), 0o600))
}

func setupPluginDir(t *testing.T) (root, pluginDir string) {
	t.Helper()
	root = t.TempDir()
	pluginDir = filepath.Join(root, "admin")
	require.NoError(t, os.MkdirAll(pluginDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, plugin.ManifestFile), []byte(manifest), 0o600))
	writeScript(t, pluginDir, "Version one")
	return root, pluginDir
}

// start runs w in the background. The returned func stops it.
func start(t *testing.T, w *watch.Watcher) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return func() {
		cancel()
		assert.NoError(t, <-done)
	}
}

type recordingCache struct {
	mu     sync.Mutex
	forgot []string
}

func (c *recordingCache) Forget(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forgot = append(c.forgot, name)
}

func (c *recordingCache) Forgotten() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.forgot...)
}

type idleReloader struct {
	mu      sync.Mutex
	slot    loader.Slot
	retries int
}

func (r *idleReloader) Current() loader.Slot {
	return r.slot
}

func (r *idleReloader) Retry(context.Context) (*loader.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries++
	return nil, shell.ErrNoActiveSlot
}

func (r *idleReloader) Retries() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retries
}

func TestWatcher_ReloadsActivePlugin(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	root, pluginDir := setupPluginDir(t)

	mgr := plugin.NewManager(root,
		plugin.WithLuaHost(pluginlua.NewHost(pluginlua.WithLogger(quiet()))),
		plugin.WithManagerLogger(quiet()))
	reg := remote.NewRegistry()
	_, err := mgr.RegisterAll(ctx, reg)
	require.NoError(t, err)

	table, err := shell.NewRouteTable(shell.DefaultRoutes())
	require.NoError(t, err)
	buf := surface.New("main")
	router := shell.NewRouter(table, reg, buf,
		contracttest.Services(&contracttest.Telemetry{}, nil),
		shell.WithInitialPath("/mfe-c"),
		shell.WithRouterLogger(quiet()))
	defer func() { assert.NoError(t, router.Close(ctx)) }()

	a, err := router.Start(ctx)
	require.NoError(t, err)
	outcome, err := a.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, loader.OutcomeMounted, outcome)
	require.Contains(t, buf.Content(), "Version one")

	stop := start(t, watch.New(root, mgr, reg, router,
		watch.WithDebounce(20*time.Millisecond),
		watch.WithLogger(quiet())))
	defer stop()

	// The watcher may not be subscribed yet, so keep touching the file.
	require.Eventually(t, func() bool {
		writeScript(t, pluginDir, "Version two")
		return bytes.Contains([]byte(buf.Content()), []byte("Version two"))
	}, 5*time.Second, 100*time.Millisecond)
}

func TestWatcher_InactivePluginOnlyDropsCache(t *testing.T) {
	defer goleak.VerifyNone(t)
	root, pluginDir := setupPluginDir(t)

	mgr := plugin.NewManager(root, plugin.WithManagerLogger(quiet()))
	_, err := mgr.Discover(context.Background())
	require.NoError(t, err)

	cache := &recordingCache{}
	reloader := &idleReloader{slot: loader.Slot{Name: "mfeA", BasePath: "/mfe-a"}}
	reloaded := make(chan string, 16)

	stop := start(t, watch.New(root, mgr, cache, reloader,
		watch.WithDebounce(20*time.Millisecond),
		watch.WithLogger(quiet()),
		watch.WithOnReload(func(name string, err error) {
			assert.NoError(t, err)
			select {
			case reloaded <- name:
			default:
			}
		})))
	defer stop()

	require.Eventually(t, func() bool {
		writeScript(t, pluginDir, "Edited")
		return len(cache.Forgotten()) > 0
	}, 5*time.Second, 100*time.Millisecond)

	assert.Equal(t, "mfeC", <-reloaded)
	assert.Contains(t, cache.Forgotten(), "mfeC")
	assert.Zero(t, reloader.Retries())
}

func TestWatcher_ManifestChangeRediscovers(t *testing.T) {
	defer goleak.VerifyNone(t)
	root, pluginDir := setupPluginDir(t)

	mgr := plugin.NewManager(root, plugin.WithManagerLogger(quiet()))
	_, err := mgr.Discover(context.Background())
	require.NoError(t, err)

	cache := &recordingCache{}
	stop := start(t, watch.New(root, mgr, cache, nil,
		watch.WithDebounce(20*time.Millisecond),
		watch.WithLogger(quiet())))
	defer stop()

	updated := "name: mfeC\nversion: 1.1.0\ntype: lua\nlua-plugin:\n  entry: main.lua\n"
	require.Eventually(t, func() bool {
		require.NoError(t, os.WriteFile(filepath.Join(pluginDir, plugin.ManifestFile), []byte(updated), 0o600))
		dp, ok := mgr.Lookup("mfeC")
		return ok && dp.Manifest.Version == "1.1.0"
	}, 5*time.Second, 100*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(cache.Forgotten()) > 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_RunFailsForMissingDirectory(t *testing.T) {
	defer goleak.VerifyNone(t)
	w := watch.New(filepath.Join(t.TempDir(), "missing"), plugin.NewManager(""), &recordingCache{}, nil,
		watch.WithLogger(quiet()))
	require.Error(t, w.Run(context.Background()))
}
