// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decouple-mfe/mfeshell/internal/config"
	"github.com/decouple-mfe/mfeshell/internal/shell"
)

func flags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mfeshell.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("", flags(t))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultLogFormat, cfg.Log.Format)
	assert.Equal(t, config.DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, config.DefaultPluginsDir, cfg.Plugins.Dir)
	assert.True(t, cfg.Plugins.Enforce)
	assert.Equal(t, config.DefaultCallTimeout, cfg.Plugins.CallTimeout)
	assert.Equal(t, shell.DefaultRoutes(), cfg.Routes)
	assert.Equal(t, "/", cfg.InitialPath)
	assert.Zero(t, cfg.Remote.LoadTimeout)
	assert.Equal(t, config.DefaultRetryBase, cfg.Remote.RetryBase)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.False(t, cfg.Watch)
}

func TestLoad_WithoutFlags(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultLogFormat, cfg.Log.Format)
	assert.Equal(t, config.DefaultFetchTimeout, cfg.Remote.FetchTimeout)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log:
  format: json
  level: debug
plugins:
  dir: /srv/plugins
  builtin: [mfeA]
remote:
  load-timeout: 5s
  retries: 2
metrics:
  addr: 127.0.0.1:9100
initial-path: /mfe-b/reports
routes:
  - name: mfeA
    base-path: /dashboard
  - name: mfeC
    base-path: /admin
services:
  config:
    apiUrl: https://api.example.com
    env: staging
`)

	cfg, err := config.Load(path, flags(t))
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/srv/plugins", cfg.Plugins.Dir)
	assert.Equal(t, 5*time.Second, cfg.Remote.LoadTimeout)
	assert.Equal(t, uint64(2), cfg.Remote.Retries)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Addr)
	assert.Equal(t, "/mfe-b/reports", cfg.InitialPath)
	assert.Equal(t, []shell.Route{
		{Name: "mfeA", BasePath: "/dashboard"},
		{Name: "mfeC", BasePath: "/admin"},
	}, cfg.Routes)
	assert.Equal(t, "staging", cfg.Koanf().String(config.ServicesConfigKey+".env"))

	assert.True(t, cfg.BuiltinEnabled("mfeA"))
	assert.False(t, cfg.BuiltinEnabled("mfeB"))
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "log:\n  format: json\nplugins:\n  dir: /from/file\n")

	cfg, err := config.Load(path, flags(t, "--log-format=text", "--watch", "--retries=3", "--lua-call-timeout=250ms"))
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Plugins.CallTimeout)
	assert.Equal(t, "text", cfg.Log.Format, "changed flag wins")
	assert.Equal(t, "/from/file", cfg.Plugins.Dir, "unchanged flag default does not override file")
	assert.True(t, cfg.Watch)
	assert.Equal(t, uint64(3), cfg.Remote.Retries)
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]struct {
		file string
		args []string
	}{
		"bad log format":   {args: []string{"--log-format=xml"}},
		"bad log level":    {args: []string{"--log-level=loud"}},
		"relative initial": {args: []string{"--initial-path=mfe-a"}},
		"negative timeout": {args: []string{"--load-timeout=-1s"}},
		"negative call":    {args: []string{"--lua-call-timeout=-1s"}},
		"bad route":        {file: "routes:\n  - name: mfeA\n    base-path: mfe-a\n"},
		"duplicate route": {file: "routes:\n  - name: mfeA\n    base-path: /a\n" +
			"  - name: mfeB\n    base-path: /a\n"},
		"bad yaml": {file: "log: ["},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}
			_, err := config.Load(path, flags(t, tt.args...))
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), flags(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuiltinEnabled_EmptyMeansAll(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.True(t, cfg.BuiltinEnabled("anything"))
}
