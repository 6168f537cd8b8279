// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

// Package pluginsdk provides helpers for writing micro-frontend plugins in Go.
//
// A plugin owns its route state after mount. MemoryRouter keeps that state in
// memory, starts on the host-provided initial path without reporting it, and
// reports every later change through the navigation callback.
package pluginsdk

import (
	"strings"
	"sync"

	"github.com/decouple-mfe/mfeshell/pkg/contract"
)

// MemoryRouter is an in-memory history stack for a mounted plugin.
type MemoryRouter struct {
	mu         sync.Mutex
	entries    []string
	onNavigate func(path string)
	onChange   func(path string)
	closed     bool
}

// NewMemoryRouter creates a router positioned at nav.InitialPath. The
// initial location is never reported through nav.OnNavigate because the host
// already knows it.
//
// onChange, if non-nil, is called for every location the router settles on,
// including the initial one, so the plugin can render.
func NewMemoryRouter(nav contract.NavigationHandle, onChange func(path string)) *MemoryRouter {
	initial := nav.InitialPath
	if !strings.HasPrefix(initial, "/") {
		initial = "/" + initial
	}
	r := &MemoryRouter{
		entries:    []string{initial},
		onNavigate: nav.OnNavigate,
		onChange:   onChange,
	}
	if onChange != nil {
		onChange(initial)
	}
	return r
}

// Location returns the current plugin-relative path.
func (r *MemoryRouter) Location() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[len(r.entries)-1]
}

// Entries returns a copy of the history stack, oldest first.
func (r *MemoryRouter) Entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	copy(out, r.entries)
	return out
}

// Navigate pushes path onto the history stack. It reports whether the
// location changed. Navigating to the current location is a no-op.
func (r *MemoryRouter) Navigate(path string) bool {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	r.mu.Lock()
	if r.closed || r.entries[len(r.entries)-1] == path {
		r.mu.Unlock()
		return false
	}
	r.entries = append(r.entries, path)
	r.mu.Unlock()

	r.settle(path)
	return true
}

// Back pops the current entry. It reports whether the location changed.
func (r *MemoryRouter) Back() bool {
	r.mu.Lock()
	if r.closed || len(r.entries) < 2 {
		r.mu.Unlock()
		return false
	}
	r.entries = r.entries[:len(r.entries)-1]
	path := r.entries[len(r.entries)-1]
	r.mu.Unlock()

	r.settle(path)
	return true
}

// Close detaches the router from the host. No callback fires after Close
// returns.
func (r *MemoryRouter) Close() {
	r.mu.Lock()
	r.closed = true
	r.onNavigate = nil
	r.onChange = nil
	r.mu.Unlock()
}

// settle reports path before rendering it, so a redirect issued while
// rendering reaches the host after the path that caused it.
func (r *MemoryRouter) settle(path string) {
	r.mu.Lock()
	onChange, onNavigate := r.onChange, r.onNavigate
	r.mu.Unlock()

	if onNavigate != nil {
		onNavigate(path)
	}
	if onChange != nil {
		onChange(path)
	}
}
