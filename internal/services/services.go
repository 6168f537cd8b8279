// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

// Package services builds the service bag the shell hands to every plugin.
// Plugins never construct their own services.
package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/knadh/koanf/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/decouple-mfe/mfeshell/pkg/contract"
)

// DefaultToken is the development bearer token.
const DefaultToken = "mock-jwt-token"

// DefaultConfig holds the configuration values exposed to plugins when none
// are configured.
func DefaultConfig() map[string]any {
	return map[string]any{
		"apiUrl": "http://localhost:8080",
		"env":    "development",
	}
}

// Auth is a development AuthService with a fixed token.
type Auth struct {
	token string

	mu            sync.Mutex
	authenticated bool
	subs          map[uint64]func(bool)
	nextID        uint64
}

// NewAuth creates an authenticated Auth returning token.
func NewAuth(token string) *Auth {
	return &Auth{
		token:         token,
		authenticated: true,
		subs:          make(map[uint64]func(bool)),
	}
}

// Token returns the bearer token.
func (a *Auth) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return a.token, nil
}

// IsAuthenticated reports the current state.
func (a *Auth) IsAuthenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authenticated
}

// OnAuthChange registers cb and returns its unsubscribe function.
func (a *Auth) OnAuthChange(cb func(authenticated bool)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextID
	a.nextID++
	a.subs[id] = cb
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.subs, id)
	}
}

// SetAuthenticated changes the state and notifies subscribers if it changed.
func (a *Auth) SetAuthenticated(authenticated bool) {
	a.mu.Lock()
	if a.authenticated == authenticated {
		a.mu.Unlock()
		return
	}
	a.authenticated = authenticated
	cbs := make([]func(bool), 0, len(a.subs))
	for _, cb := range a.subs {
		cbs = append(cbs, cb)
	}
	a.mu.Unlock()

	for _, cb := range cbs {
		cb(authenticated)
	}
}

// Telemetry logs tracked events and counts them.
type Telemetry struct {
	logger *slog.Logger
	events *prometheus.CounterVec
}

// NewTelemetry creates a Telemetry. A nil registerer disables counting.
func NewTelemetry(logger *slog.Logger, reg prometheus.Registerer) *Telemetry {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Telemetry{logger: logger}
	if reg != nil {
		t.events = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mfeshell_telemetry_events_total",
				Help: "Total number of telemetry events tracked by plugins",
			},
			[]string{"event"},
		)
		reg.MustRegister(t.events)
	}
	return t
}

// Track records event with its properties.
func (t *Telemetry) Track(event string, props map[string]any) {
	attrs := make([]any, 0, 2+2*len(props))
	attrs = append(attrs, "event", event)
	for k, v := range props {
		attrs = append(attrs, k, v)
	}
	t.logger.Info("telemetry", attrs...)

	if t.events != nil {
		t.events.WithLabelValues(event).Inc()
	}
}

// Config serves plugin configuration from a koanf subtree.
type Config struct {
	k *koanf.Koanf
}

// NewConfig creates a Config over the keys under path in k. An empty subtree
// falls back to DefaultConfig.
func NewConfig(k *koanf.Koanf, path string) *Config {
	sub := koanf.New(".")
	if k != nil && k.Exists(path) {
		sub = k.Cut(path)
	}
	if len(sub.Keys()) == 0 {
		for key, v := range DefaultConfig() {
			_ = sub.Set(key, v)
		}
	}
	return &Config{k: sub}
}

// Get returns the value for key.
func (c *Config) Get(key string) (any, bool) {
	if !c.k.Exists(key) {
		return nil, false
	}
	return c.k.Get(key), true
}

// Keys returns all configured keys.
func (c *Config) Keys() []string {
	return c.k.Keys()
}

// Bag assembles a contract.ServiceBag.
func Bag(auth contract.AuthService, telemetry contract.TelemetryService, config contract.ConfigService) contract.ServiceBag {
	return contract.ServiceBag{Auth: auth, Telemetry: telemetry, Config: config}
}

// Default returns the development service bag.
func Default(logger *slog.Logger, reg prometheus.Registerer, k *koanf.Koanf) contract.ServiceBag {
	return Bag(NewAuth(DefaultToken), NewTelemetry(logger, reg), NewConfig(k, "services.config"))
}
