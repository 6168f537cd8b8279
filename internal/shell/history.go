// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package shell

import (
	"slices"
	"sync"
)

// History is the shell's address bar: a stack of absolute paths with a
// cursor.
type History struct {
	mu      sync.Mutex
	entries []string
	index   int
}

// NewHistory creates a history positioned at initial.
func NewHistory(initial string) *History {
	return &History{entries: []string{initial}}
}

// Current returns the path under the cursor.
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.index]
}

// Push appends path after the cursor, dropping any forward entries. Pushing
// the current path is a no-op.
func (h *History) Push(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.entries[h.index] == path {
		return
	}
	h.entries = append(h.entries[:h.index+1], path)
	h.index++
}

// Replace overwrites the current entry.
func (h *History) Replace(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.index] = path
}

// Back moves the cursor back one entry.
func (h *History) Back() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.index == 0 {
		return h.entries[0], false
	}
	h.index--
	return h.entries[h.index], true
}

// Forward moves the cursor forward one entry.
func (h *History) Forward() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.index == len(h.entries)-1 {
		return h.entries[h.index], false
	}
	h.index++
	return h.entries[h.index], true
}

// Entries returns a copy of all entries.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.entries)
}
