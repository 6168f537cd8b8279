// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package services_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/knadh/koanf/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decouple-mfe/mfeshell/internal/services"
)

func TestAuth_Token(t *testing.T) {
	auth := services.NewAuth(services.DefaultToken)

	token, err := auth.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mock-jwt-token", token)
	assert.True(t, auth.IsAuthenticated())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = auth.Token(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAuth_OnAuthChange(t *testing.T) {
	auth := services.NewAuth("t")

	var got []bool
	unsubscribe := auth.OnAuthChange(func(v bool) { got = append(got, v) })

	auth.SetAuthenticated(false)
	auth.SetAuthenticated(false)
	unsubscribe()
	auth.SetAuthenticated(true)

	assert.Equal(t, []bool{false}, got)
	assert.True(t, auth.IsAuthenticated())
}

func TestTelemetry_Track(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	reg := prometheus.NewRegistry()
	tel := services.NewTelemetry(logger, reg)

	tel.Track("mfeA:mounted", map[string]any{"path": "/"})
	tel.Track("mfeA:mounted", nil)

	assert.Contains(t, buf.String(), `"event":"mfeA:mounted"`)
	assert.Contains(t, buf.String(), `"path":"/"`)

	count, err := testutil.GatherAndCount(reg, "mfeshell_telemetry_events_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTelemetry_NilRegisterer(t *testing.T) {
	tel := services.NewTelemetry(nil, nil)
	assert.NotPanics(t, func() { tel.Track("x", nil) })
}

func TestConfig_Defaults(t *testing.T) {
	cfg := services.NewConfig(nil, "services.config")

	v, ok := cfg.Get("apiUrl")
	require.True(t, ok)
	assert.Equal(t, "http://localhost:8080", v)

	v, ok = cfg.Get("env")
	require.True(t, ok)
	assert.Equal(t, "development", v)

	_, ok = cfg.Get("missing")
	assert.False(t, ok)
}

func TestConfig_FromKoanf(t *testing.T) {
	k := koanf.New(".")
	require.NoError(t, k.Set("services.config.apiUrl", "https://api.example.com"))
	require.NoError(t, k.Set("log.level", "debug"))

	cfg := services.NewConfig(k, "services.config")

	v, ok := cfg.Get("apiUrl")
	require.True(t, ok)
	assert.Equal(t, "https://api.example.com", v)

	_, ok = cfg.Get("env")
	assert.False(t, ok, "configured values replace the defaults")
	assert.Equal(t, []string{"apiUrl"}, cfg.Keys())
}

func TestDefault(t *testing.T) {
	bag := services.Default(slog.Default(), nil, nil)
	require.NotNil(t, bag.Auth)
	require.NotNil(t, bag.Telemetry)
	require.NotNil(t, bag.Config)
	assert.True(t, bag.Auth.IsAuthenticated())
}
