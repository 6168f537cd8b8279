// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decouple-mfe/mfeshell/internal/config"
)

func startApp(t *testing.T, args ...string) *shellApp {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse(append([]string{"--plugins-dir", "../../plugins"}, args...)))

	cfg, err := config.Load("", fs)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := newShellApp(ctx, cfg, logger, io.Discard)
	require.NoError(t, err)
	require.NoError(t, app.start(ctx, cancel))
	t.Cleanup(func() {
		assert.NoError(t, app.close())
		cancel()
	})
	return app
}

func fetch(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestShellApp_ObservabilityEndpoints(t *testing.T) {
	app := startApp(t, "--metrics-addr", "127.0.0.1:0", "--initial-path", "/mfe-a/settings")
	base := "http://" + app.obs.Addr()

	var report SessionReport
	require.NoError(t, json.Unmarshal([]byte(fetch(t, base+"/debug/session")), &report))
	assert.Equal(t, "/mfe-a/settings", report.Location)
	assert.Equal(t, "mfeA", report.Plugin)
	assert.Equal(t, "/mfe-a", report.BasePath)
	assert.Equal(t, "mounted", report.Status)
	assert.Equal(t, []string{"/mfe-a/settings"}, report.History)

	metrics := fetch(t, base+"/metrics")
	assert.Contains(t, metrics, `mfeshell_mounted_plugin{plugin="mfeA"} 1`)
	assert.Contains(t, fetch(t, base+"/healthz/readiness"), "ok")
}

func TestShellApp_ReportWithoutMetricsServer(t *testing.T) {
	app := startApp(t)

	assert.Nil(t, app.obs)
	report, ok := app.report().(SessionReport)
	require.True(t, ok)
	assert.Equal(t, "/", report.Location)
	assert.Equal(t, "idle", report.Status)
	assert.Empty(t, report.Plugin)
}
