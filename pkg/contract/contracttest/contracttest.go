// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

// Package contracttest provides test doubles for the plugin contract.
package contracttest

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/decouple-mfe/mfeshell/pkg/contract"
)

// MockPlugin is a testify mock implementing contract.Plugin.
type MockPlugin struct {
	mock.Mock
}

// Mount records the call.
func (m *MockPlugin) Mount(surface contract.Surface, opts contract.MountOptions) error {
	args := m.Called(surface, opts)
	return args.Error(0)
}

// Unmount records the call.
func (m *MockPlugin) Unmount() {
	m.Called()
}

// Surface is an in-memory contract.Surface.
type Surface struct {
	mu        sync.Mutex
	id        string
	content   string
	renders   int
	listeners map[int]func(string)
	nextID    int
}

// NewSurface creates an empty surface.
func NewSurface(id string) *Surface {
	return &Surface{id: id, listeners: make(map[int]func(string))}
}

// ID returns the surface identifier.
func (s *Surface) ID() string { return s.id }

// Render replaces the content.
func (s *Surface) Render(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = content
	s.renders++
}

// Listen registers a link listener.
func (s *Surface) Listen(fn func(link string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Click delivers a link activation to every listener.
func (s *Surface) Click(link string) {
	s.mu.Lock()
	fns := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(link)
	}
}

// Content returns the last rendered content.
func (s *Surface) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

// Listeners returns the number of registered listeners.
func (s *Surface) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Services returns a ServiceBag backed by Telemetry and a static config.
func Services(tel *Telemetry, cfg map[string]any) contract.ServiceBag {
	return contract.ServiceBag{
		Auth:      Auth{Authenticated: true},
		Telemetry: tel,
		Config:    Config(cfg),
	}
}

// Auth is a fixed AuthService.
type Auth struct {
	Authenticated bool
}

// Token returns a fixed token.
func (a Auth) Token(_ context.Context) (string, error) { return "test-token", nil }

// IsAuthenticated returns the fixed state.
func (a Auth) IsAuthenticated() bool { return a.Authenticated }

// OnAuthChange never fires.
func (a Auth) OnAuthChange(_ func(bool)) func() { return func() {} }

// Telemetry records tracked events.
type Telemetry struct {
	mu     sync.Mutex
	events []string
}

// Track records event.
func (t *Telemetry) Track(event string, _ map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

// Events returns the tracked event names in order.
func (t *Telemetry) Events() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.events))
	copy(out, t.events)
	return out
}

// Config is a map-backed ConfigService.
type Config map[string]any

// Get returns the value for key.
func (c Config) Get(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}
