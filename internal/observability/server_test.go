// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package observability

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	server := NewServer("127.0.0.1:0", "1.2.3")
	server.Metrics().RecordNavigation("plugin", "/mfe-a/settings")

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "mfeshell_test_total", Help: "test"})
	server.Registry().MustRegister(counter)
	counter.Inc()

	code, body := get(t, server.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, "process_")
	assert.Contains(t, body, `mfeshell_build_info{version="1.2.3"} 1`)
	assert.Contains(t, body, `mfeshell_navigations_total{source="plugin"} 1`)
	assert.Contains(t, body, "mfeshell_test_total 1")
}

func TestServer_Liveness(t *testing.T) {
	code, body := get(t, NewServer("", "dev", WithReadiness(func() bool { return false })).Handler(), "/healthz/liveness")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok\n", body)
}

func TestServer_Readiness(t *testing.T) {
	var ready atomic.Bool
	h := NewServer("", "dev", WithReadiness(ready.Load)).Handler()

	code, body := get(t, h, "/healthz/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready\n", body)

	ready.Store(true)
	code, _ = get(t, h, "/healthz/readiness")
	assert.Equal(t, http.StatusOK, code)
}

func TestServer_ReadinessWithNilChecker(t *testing.T) {
	code, _ := get(t, NewServer("", "dev").Handler(), "/healthz/readiness")
	assert.Equal(t, http.StatusOK, code)
}

func TestServer_StartServesAndStops(t *testing.T) {
	server := NewServer("127.0.0.1:0", "dev")
	errCh, err := server.Start()
	require.NoError(t, err)

	_, err = server.Start()
	require.Error(t, err, "double start must fail")

	resp, err := http.Get("http://" + server.Addr() + "/healthz/liveness")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))
	require.NoError(t, server.Stop(ctx), "stop is idempotent")

	select {
	case err, ok := <-errCh:
		assert.False(t, ok, "unexpected serve error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("error channel not closed after shutdown")
	}
}

func TestServer_StartFailsOnBadAddress(t *testing.T) {
	_, err := NewServer("256.0.0.1:99999", "dev").Start()
	require.Error(t, err)
}

func TestServer_AddrEmptyBeforeStart(t *testing.T) {
	assert.Empty(t, NewServer("127.0.0.1:0", "dev").Addr())
}

func TestServer_SessionReport(t *testing.T) {
	type report struct {
		Location string `json:"location"`
		Status   string `json:"status"`
	}
	h := NewServer("", "dev", WithSessionReport(func() any {
		return report{Location: "/mfe-a/settings", Status: "mounted"}
	})).Handler()

	code, body := get(t, h, "/debug/session")
	require.Equal(t, http.StatusOK, code)

	var got report
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, report{Location: "/mfe-a/settings", Status: "mounted"}, got)
}

func TestServer_SessionReportNotConfigured(t *testing.T) {
	code, _ := get(t, NewServer("", "dev").Handler(), "/debug/session")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMetrics_SetMounted(t *testing.T) {
	server := NewServer("", "dev")
	m := server.Metrics()

	m.SetMounted("mfeA")
	m.SetMounted("mfeB")

	_, body := get(t, server.Handler(), "/metrics")
	assert.Contains(t, body, `mfeshell_mounted_plugin{plugin="mfeB"} 1`)
	assert.NotContains(t, body, `plugin="mfeA"`)

	m.SetMounted("")
	_, body = get(t, server.Handler(), "/metrics")
	assert.NotContains(t, body, "mfeshell_mounted_plugin{")
}
