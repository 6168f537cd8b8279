// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

// Package observability serves the shell's Prometheus metrics, health probes
// and a JSON view of the current mount session.
package observability

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// Metrics contains shell-level metrics. Loader, resolver and telemetry
// metrics are registered by their own packages on the same registry.
type Metrics struct {
	BuildInfo        *prometheus.GaugeVec
	NavigationsTotal *prometheus.CounterVec
	MountedPlugin    *prometheus.GaugeVec

	mu      sync.Mutex
	mounted string
}

// NewMetrics creates and registers shell metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mfeshell_build_info",
				Help: "Build information, always 1",
			},
			[]string{"version"},
		),
		NavigationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mfeshell_navigations_total",
				Help: "Total number of shell path changes by source",
			},
			[]string{"source"},
		),
		MountedPlugin: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mfeshell_mounted_plugin",
				Help: "1 for the plugin currently mounted in the main surface",
			},
			[]string{"plugin"},
		),
	}

	reg.MustRegister(m.BuildInfo, m.NavigationsTotal, m.MountedPlugin)
	return m
}

// RecordNavigation counts a path change from source. Its signature matches
// the shell router's navigation hook.
func (m *Metrics) RecordNavigation(source, _ string) {
	m.NavigationsTotal.WithLabelValues(source).Inc()
}

// SetMounted marks plugin as the mounted one. An empty name clears it.
func (m *Metrics) SetMounted(plugin string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if plugin == m.mounted {
		return
	}
	if m.mounted != "" {
		m.MountedPlugin.DeleteLabelValues(m.mounted)
	}
	m.mounted = plugin
	if plugin != "" {
		m.MountedPlugin.WithLabelValues(plugin).Set(1)
	}
}

// Option configures a Server.
type Option func(*Server)

// WithReadiness sets the readiness probe. Without one the server always
// reports ready.
func WithReadiness(fn func() bool) Option {
	return func(s *Server) {
		s.isReady = fn
	}
}

// WithSessionReport serves the value returned by fn as JSON on
// /debug/session.
func WithSessionReport(fn func() any) Option {
	return func(s *Server) {
		s.report = fn
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// Server serves /metrics, the health probes and /debug/session.
type Server struct {
	addr     string
	registry *prometheus.Registry
	metrics  *Metrics
	isReady  func() bool
	report   func() any
	logger   *slog.Logger
	running  atomic.Bool

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
}

// NewServer creates a server listening on addr ("host:port", port 0 picks a
// free one) with its own registry.
func NewServer(addr, version string, opts ...Option) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics := NewMetrics(registry)
	metrics.BuildInfo.WithLabelValues(version).Set(1)

	s := &Server{
		addr:     addr,
		registry: registry,
		metrics:  metrics,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Metrics returns the shell metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Registry returns the registry other components register their metrics on.
func (s *Server) Registry() prometheus.Registerer {
	return s.registry
}

// Start listens and serves in the background. The returned channel receives
// a serve error, if any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.In("observability").Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.In("observability").With("addr", s.addr).Wrap(err)
	}
	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = httpSrv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()
	return errCh, nil
}

// Handler returns the HTTP handler for all endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("GET /healthz/liveness", s.handleLiveness)
	mux.HandleFunc("GET /healthz/readiness", s.handleReadiness)
	mux.HandleFunc("GET /debug/session", s.handleSession)
	return mux
}

// Stop shuts the server down, waiting for open requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.mu.Lock()
	httpSrv := s.httpServer
	s.mu.Unlock()

	if httpSrv != nil {
		if err := httpSrv.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.In("observability").With("operation", "shutdown").Wrap(err)
		}
	}
	s.logger.Info("observability server stopped")
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	//nolint:errcheck // client may have disconnected
	w.Write([]byte(body))
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok\n")
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	if s.isReady == nil || s.isReady() {
		writeText(w, http.StatusOK, "ok\n")
		return
	}
	writeText(w, http.StatusServiceUnavailable, "not ready\n")
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.report == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.report()); err != nil {
		s.logger.Warn("failed to encode session report", "error", err)
	}
}
